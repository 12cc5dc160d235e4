// internal/pipeline/collection.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"libradesk/internal/records"
	"libradesk/internal/view"
)

const (
	logMsgLoadDiscarded   = "pipeline: stale load discarded"
	logMsgCommitDiscarded = "pipeline: stale commit discarded"
	logMsgCommitRejected  = "pipeline: local commit rejected"
	logMsgRemoteFailed    = "pipeline: remote call failed"
	logAttrEntity         = "entity"
	logAttrOperation      = "operation"
	logAttrError          = "error"
)

// Frame is everything the rendering layer may read about a list.
type Frame[T any] struct {
	Result  view.Result[T]
	Spec    view.Spec
	Loading bool
	Err     error
}

// Token identifies a unit of work started with Begin. Every Begin must be
// closed by exactly one Commit or Abort.
type Token struct {
	epoch uint64
}

type options struct {
	logger *slog.Logger
	tracer trace.Tracer
	meter  metric.Meter
}

type Option func(*options)

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracer = tp.Tracer("libradesk/pipeline") }
}

func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meter = mp.Meter("libradesk/pipeline") }
}

// Collection owns the Store of one entity type, its current view spec and
// the derived page. Every mutation goes remote first and is committed
// locally only when the remote call succeeded; the page is re-derived after
// every commit and every spec change.
type Collection[T records.Entity[T]] struct {
	schema view.Schema[T]
	source Source[T]
	logger *slog.Logger
	tracer trace.Tracer

	mutations metric.Int64Counter

	mu       sync.Mutex
	store    *records.Store[T]
	spec     view.Spec
	result   view.Result[T]
	epoch    uint64
	loadSeq  uint64
	inFlight int
	lastErr  error

	watchers    map[int]func(Frame[T])
	nextWatcher int
}

func New[T records.Entity[T]](schema view.Schema[T], source Source[T], opts ...Option) *Collection[T] {
	o := options{
		logger: slog.Default(),
		tracer: otel.Tracer("libradesk/pipeline"),
		meter:  otel.Meter("libradesk/pipeline"),
	}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Collection[T]{
		schema:   schema,
		source:   source,
		logger:   o.logger,
		tracer:   o.tracer,
		store:    records.NewStore[T](),
		spec:     schema.DefaultSpec(),
		watchers: make(map[int]func(Frame[T])),
	}

	counter, err := o.meter.Int64Counter("libradesk.pipeline.mutations",
		metric.WithDescription("Committed local mutations per entity"))
	if err != nil {
		o.logger.Warn("pipeline: mutation counter unavailable", logAttrError, err)
	}
	c.mutations = counter

	c.rederive()
	return c
}

func (c *Collection[T]) Entity() string { return c.schema.Entity }

func (c *Collection[T]) Schema() view.Schema[T] { return c.schema }

func (c *Collection[T]) Source() Source[T] { return c.source }

// Frame returns the current derived page and status flags.
func (c *Collection[T]) Frame() Frame[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frameLocked()
}

func (c *Collection[T]) frameLocked() Frame[T] {
	items := make([]T, len(c.result.Items))
	copy(items, c.result.Items)
	return Frame[T]{
		Result:  view.Result[T]{Items: items, TotalItems: c.result.TotalItems, TotalPages: c.result.TotalPages},
		Spec:    c.spec.Clone(),
		Loading: c.inFlight > 0,
		Err:     c.lastErr,
	}
}

// Get is a lookup for collaborators that own cross-entity side effects.
func (c *Collection[T]) Get(id string) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Get(id)
}

// All returns every loaded record in store order.
func (c *Collection[T]) All() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.All()
}

func (c *Collection[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Len()
}

// Watch registers fn to receive a Frame after every change. The returned
// func unregisters it.
func (c *Collection[T]) Watch(fn func(Frame[T])) func() {
	c.mu.Lock()
	id := c.nextWatcher
	c.nextWatcher++
	c.watchers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.watchers, id)
		c.mu.Unlock()
	}
}

// SetSpec validates and applies a new spec, then re-derives.
func (c *Collection[T]) SetSpec(spec view.Spec) error {
	if err := view.Validate(c.schema, spec); err != nil {
		return err
	}
	c.mu.Lock()
	c.spec = spec.Clone()
	c.rederive()
	c.mu.Unlock()

	c.notify()
	return nil
}

func (c *Collection[T]) update(fn func(view.Spec) view.Spec) error {
	c.mu.Lock()
	next := fn(c.spec)
	c.mu.Unlock()
	return c.SetSpec(next)
}

func (c *Collection[T]) Search(term string) error {
	return c.update(func(s view.Spec) view.Spec { return s.WithSearch(term) })
}

func (c *Collection[T]) Filter(field, value string) error {
	return c.update(func(s view.Spec) view.Spec { return s.WithFilter(field, value) })
}

func (c *Collection[T]) Sort(field string, dir view.Direction) error {
	return c.update(func(s view.Spec) view.Spec { return s.WithSort(field, dir) })
}

func (c *Collection[T]) GoToPage(page int) error {
	return c.update(func(s view.Spec) view.Spec { return s.WithPage(page) })
}

func (c *Collection[T]) SetPageSize(size int) error {
	return c.update(func(s view.Spec) view.Spec { return s.WithPageSize(size) })
}

// Load replaces the store with the source's full listing. A response that
// arrives after a newer Load was started is dropped with ErrStale.
func (c *Collection[T]) Load(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "pipeline.load",
		trace.WithAttributes(attribute.String("entity", c.schema.Entity)))
	defer span.End()

	c.mu.Lock()
	c.loadSeq++
	seq := c.loadSeq
	c.inFlight++
	c.mu.Unlock()
	c.notify()

	res, err := c.source.List(ctx, ListAll)

	c.mu.Lock()
	c.inFlight--
	if seq != c.loadSeq {
		c.mu.Unlock()
		c.logger.Debug(logMsgLoadDiscarded, logAttrEntity, c.schema.Entity)
		c.notify()
		return fmt.Errorf("load %s: %w", c.schema.Entity, ErrStale)
	}
	if err == nil {
		var store *records.Store[T]
		store, err = records.Load(res.Items)
		if err == nil {
			c.store = store
			c.epoch++
			c.lastErr = nil
			c.rederive()
		}
	}
	if err != nil {
		c.lastErr = err
	}
	c.mu.Unlock()
	c.notify()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn(logMsgRemoteFailed, logAttrEntity, c.schema.Entity, logAttrOperation, "load", logAttrError, err)
		return fmt.Errorf("load %s: %w", c.schema.Entity, err)
	}
	span.SetAttributes(attribute.Int("records.loaded", len(res.Items)))
	return nil
}

// Begin opens a unit of work against the current store generation.
func (c *Collection[T]) Begin() Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight++
	return Token{epoch: c.epoch}
}

// Abort closes a unit of work whose remote step failed. Nothing local changes
// except the surfaced error.
func (c *Collection[T]) Abort(tok Token, err error) {
	c.mu.Lock()
	c.inFlight--
	if tok.epoch == c.epoch {
		c.lastErr = err
	}
	c.mu.Unlock()
	c.notify()
}

// Commit applies fn to a copy of the store and swaps it in only if fn
// succeeds, then re-derives. If the store was reloaded since Begin the commit
// is dropped with ErrStale: the reload is newer than the captured state.
func (c *Collection[T]) Commit(ctx context.Context, tok Token, op string, fn func(*records.Store[T]) error) error {
	c.mu.Lock()
	c.inFlight--
	if tok.epoch != c.epoch {
		c.mu.Unlock()
		c.logger.Debug(logMsgCommitDiscarded, logAttrEntity, c.schema.Entity, logAttrOperation, op)
		c.notify()
		return fmt.Errorf("%s %s: %w", op, c.schema.Entity, ErrStale)
	}

	next := c.store.Clone()
	if err := fn(next); err != nil {
		c.lastErr = err
		c.mu.Unlock()
		c.logger.Warn(logMsgCommitRejected, logAttrEntity, c.schema.Entity, logAttrOperation, op, logAttrError, err)
		c.notify()
		return fmt.Errorf("%s %s: %w", op, c.schema.Entity, err)
	}
	c.store = next
	c.lastErr = nil
	c.rederive()
	c.mu.Unlock()

	if c.mutations != nil {
		c.mutations.Add(ctx, 1, metric.WithAttributes(
			attribute.String("entity", c.schema.Entity),
			attribute.String("operation", op),
		))
	}
	c.notify()
	return nil
}

// Create asks the source to create a record and inserts what it returns.
func (c *Collection[T]) Create(ctx context.Context, fields records.Patch) (T, error) {
	ctx, span := c.startSpan(ctx, "create", "")
	defer span.End()

	var zero T
	tok := c.Begin()
	created, err := c.source.Create(ctx, fields)
	if err != nil {
		return zero, c.remoteFailed(span, tok, "create", err)
	}
	if err := c.Commit(ctx, tok, "create", func(s *records.Store[T]) error {
		return s.Insert(created)
	}); err != nil {
		span.RecordError(err)
		return zero, err
	}
	span.SetAttributes(attribute.String("record.id", created.RecordID()))
	return created, nil
}

// Update validates patch against the local copy, sends it to the source and
// stores the record the source returns.
func (c *Collection[T]) Update(ctx context.Context, id string, patch records.Patch) (T, error) {
	ctx, span := c.startSpan(ctx, "update", id)
	defer span.End()

	var zero T
	current, err := c.Get(id)
	if err != nil {
		return zero, fmt.Errorf("update %s: %w", c.schema.Entity, err)
	}
	if _, err := current.WithPatch(patch); err != nil {
		return zero, fmt.Errorf("update %s: %w", c.schema.Entity, err)
	}

	tok := c.Begin()
	updated, err := c.source.Update(ctx, id, patch)
	if err != nil {
		return zero, c.remoteFailed(span, tok, "update", err)
	}
	if err := c.Commit(ctx, tok, "update", func(s *records.Store[T]) error {
		return s.Replace(updated)
	}); err != nil {
		span.RecordError(err)
		return zero, err
	}
	return updated, nil
}

// Delete removes the record remotely, then locally.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	ctx, span := c.startSpan(ctx, "delete", id)
	defer span.End()

	if _, err := c.Get(id); err != nil {
		return fmt.Errorf("delete %s: %w", c.schema.Entity, err)
	}

	tok := c.Begin()
	if err := c.source.Delete(ctx, id); err != nil {
		return c.remoteFailed(span, tok, "delete", err)
	}
	err := c.Commit(ctx, tok, "delete", func(s *records.Store[T]) error {
		return s.Remove(id)
	})
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (c *Collection[T]) startSpan(ctx context.Context, op, id string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("entity", c.schema.Entity)}
	if id != "" {
		attrs = append(attrs, attribute.String("record.id", id))
	}
	return c.tracer.Start(ctx, "pipeline."+op, trace.WithAttributes(attrs...))
}

func (c *Collection[T]) remoteFailed(span trace.Span, tok Token, op string, err error) error {
	c.Abort(tok, err)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	var remote *RemoteError
	if errors.As(err, &remote) {
		c.logger.Warn(logMsgRemoteFailed, logAttrEntity, c.schema.Entity, logAttrOperation, op,
			logAttrError, err, "status", remote.Status)
	} else {
		c.logger.Warn(logMsgRemoteFailed, logAttrEntity, c.schema.Entity, logAttrOperation, op, logAttrError, err)
	}
	return fmt.Errorf("%s %s: %w", op, c.schema.Entity, err)
}

// rederive recomputes the page from scratch; callers hold mu. A page pushed
// past the end by a shrinking result is clamped back into range.
func (c *Collection[T]) rederive() {
	all := c.store.All()
	c.result = view.Derive(all, c.schema, c.spec)
	if c.spec.Page > c.result.TotalPages {
		c.spec = view.ClampPage(c.spec, c.result.TotalPages)
		c.result = view.Derive(all, c.schema, c.spec)
	}
}

func (c *Collection[T]) notify() {
	c.mu.Lock()
	if len(c.watchers) == 0 {
		c.mu.Unlock()
		return
	}
	frame := c.frameLocked()
	fns := make([]func(Frame[T]), 0, len(c.watchers))
	for _, fn := range c.watchers {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(frame)
	}
}
