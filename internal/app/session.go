// internal/app/session.go
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"libradesk/internal/catalog"
	"libradesk/internal/circulation"
	"libradesk/internal/clients"
	"libradesk/internal/config"
	"libradesk/internal/ledger"
	"libradesk/internal/membership"
	"libradesk/internal/pipeline"
	"libradesk/internal/view"
)

// Sources are the record sources of one session.
type Sources struct {
	Books   pipeline.Source[catalog.Book]
	Users   pipeline.Source[membership.User]
	Borrows pipeline.Source[circulation.Transaction]
	Finance pipeline.Source[ledger.Transaction]
}

// RemoteSources points every entity at the record API.
func RemoteSources(cfg config.API, tp trace.TracerProvider) Sources {
	opts := []clients.Option{
		clients.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if cfg.RateLimit > 0 {
		opts = append(opts, clients.WithRateLimit(cfg.RateLimit, max(cfg.RateBurst, 1)))
	}
	if tp != nil {
		opts = append(opts, clients.WithTracerProvider(tp))
	}
	return Sources{
		Books:   clients.NewRemoteSource[catalog.Book](cfg.BaseURL, catalog.Schema.Entity, opts...),
		Users:   clients.NewRemoteSource[membership.User](cfg.BaseURL, membership.Schema.Entity, opts...),
		Borrows: clients.NewRemoteSource[circulation.Transaction](cfg.BaseURL, circulation.Schema.Entity, opts...),
		Finance: clients.NewRemoteSource[ledger.Transaction](cfg.BaseURL, ledger.Schema.Entity, opts...),
	}
}

type options struct {
	logger *slog.Logger
	clock  func() time.Time
	tp     trace.TracerProvider
}

type Option func(*options)

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tp = tp }
}

// Session is everything one application run owns: a collection per entity
// and the services that operate on them.
type Session struct {
	Books   *pipeline.Collection[catalog.Book]
	Users   *pipeline.Collection[membership.User]
	Borrows *pipeline.Collection[circulation.Transaction]
	Finance *pipeline.Collection[ledger.Transaction]

	Catalog     catalog.Service
	Membership  membership.Service
	Circulation circulation.Service
	Ledger      ledger.Service
}

func NewSession(src Sources, cfg *config.Config, opts ...Option) (*Session, error) {
	o := options{logger: slog.Default(), clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	tag, err := language.Parse(cfg.View.SortLanguage)
	if err != nil {
		return nil, fmt.Errorf("sort language %q: %w", cfg.View.SortLanguage, err)
	}

	popts := []pipeline.Option{pipeline.WithLogger(o.logger)}
	if o.tp != nil {
		popts = append(popts, pipeline.WithTracerProvider(o.tp))
	}

	s := &Session{
		Books:   pipeline.New(tune(catalog.Schema, cfg.View, tag), src.Books, popts...),
		Users:   pipeline.New(tune(membership.Schema, cfg.View, tag), src.Users, popts...),
		Borrows: pipeline.New(tune(circulation.NewSchema(o.clock), cfg.View, tag), src.Borrows, popts...),
		Finance: pipeline.New(tune(ledger.Schema, cfg.View, tag), src.Finance, popts...),
	}

	copts := []circulation.Option{
		circulation.WithInventory(s.Books),
		circulation.WithClock(o.clock),
		circulation.WithLogger(o.logger),
	}
	if period := cfg.Circulation.LoanPeriod(); period > 0 {
		copts = append(copts, circulation.WithLoanPeriod(period))
	}

	s.Catalog = catalog.NewService(s.Books)
	s.Membership = membership.NewService(s.Users)
	s.Circulation = circulation.NewService(s.Borrows, s.Users, copts...)
	s.Ledger = ledger.NewService(s.Finance)
	return s, nil
}

func tune[T any](s view.Schema[T], v config.View, tag language.Tag) view.Schema[T] {
	if v.PageSize > 0 {
		s.DefaultPageSize = v.PageSize
	}
	return s.WithLanguage(tag)
}

// Load fetches every collection in parallel. The first failure cancels the
// rest.
func (s *Session) Load(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.Books.Load(ctx) })
	g.Go(func() error { return s.Users.Load(ctx) })
	g.Go(func() error { return s.Borrows.Load(ctx) })
	g.Go(func() error { return s.Finance.Load(ctx) })
	return g.Wait()
}
