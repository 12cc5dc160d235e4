// internal/clients/record_client.go
package clients

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"libradesk/internal/pipeline"
	"libradesk/internal/records"
	"libradesk/internal/view"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	DefaultTimeout = 10 * time.Second
	maxErrorBody   = 64 << 10
)

type options struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	tracer     trace.Tracer
}

type Option func(*options)

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithRateLimit throttles outgoing requests to r per second with the given burst.
func WithRateLimit(r float64, burst int) Option {
	return func(o *options) { o.limiter = rate.NewLimiter(rate.Limit(r), burst) }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracer = tp.Tracer("libradesk/clients") }
}

// RemoteSource talks to the record API for one entity and implements
// pipeline.Source.
type RemoteSource[T any] struct {
	endpoint   string
	entity     string
	httpClient *http.Client
	limiter    *rate.Limiter
	tracer     trace.Tracer
}

// NewRemoteSource returns a source for baseURL/entity, for example
// http://localhost:8080/api/v1 and "books".
func NewRemoteSource[T any](baseURL, entity string, opts ...Option) *RemoteSource[T] {
	o := options{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Inf, 0),
		tracer:     otel.Tracer("libradesk/clients"),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &RemoteSource[T]{
		endpoint:   strings.TrimRight(baseURL, "/") + "/" + entity,
		entity:     entity,
		httpClient: o.httpClient,
		limiter:    o.limiter,
		tracer:     o.tracer,
	}
}

var _ pipeline.Source[struct{}] = (*RemoteSource[struct{}])(nil)

func (c *RemoteSource[T]) List(ctx context.Context, spec view.Spec) (view.Result[T], error) {
	target := c.endpoint
	if q := spec.Values().Encode(); q != "" {
		target += "?" + q
	}
	var res view.Result[T]
	if err := c.do(ctx, http.MethodGet, target, nil, &res, http.StatusOK); err != nil {
		return view.Result[T]{}, err
	}
	if res.Items == nil {
		res.Items = []T{}
	}
	return res, nil
}

func (c *RemoteSource[T]) Create(ctx context.Context, fields records.Patch) (T, error) {
	var out T
	err := c.do(ctx, http.MethodPost, c.endpoint, fields, &out, http.StatusCreated, http.StatusOK)
	return out, err
}

func (c *RemoteSource[T]) Update(ctx context.Context, id string, patch records.Patch) (T, error) {
	var out T
	err := c.do(ctx, http.MethodPatch, c.recordURL(id), patch, &out, http.StatusOK)
	return out, err
}

func (c *RemoteSource[T]) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, c.recordURL(id), nil, nil, http.StatusNoContent, http.StatusOK)
}

func (c *RemoteSource[T]) recordURL(id string) string {
	return c.endpoint + "/" + url.PathEscape(id)
}

func (c *RemoteSource[T]) do(ctx context.Context, method, target string, body, out any, ok ...int) error {
	ctx, span := c.tracer.Start(ctx, "clients."+strings.ToLower(method),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("entity", c.entity),
			attribute.String("http.request.method", method),
		))
	defer span.End()

	err := c.roundTrip(ctx, span, method, target, body, out, ok)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *RemoteSource[T]) roundTrip(ctx context.Context, span trace.Span, method, target string, body, out any, ok []int) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if !slices.Contains(ok, resp.StatusCode) {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", c.entity, err)
	}
	return nil
}

// decodeError turns a non-success response into a *pipeline.RemoteError.
// Bodies that are not the API's error shape keep only the status.
func decodeError(resp *http.Response) error {
	remote := &pipeline.RemoteError{Status: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return remote
	}
	var payload struct {
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		remote.Message = strings.TrimSpace(string(raw))
		return remote
	}
	remote.Message = payload.Message
	remote.Fields = payload.Fields
	return remote
}
