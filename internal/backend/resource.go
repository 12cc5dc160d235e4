// internal/backend/resource.go
package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"libradesk/internal/records"
	"libradesk/internal/view"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Record is an entity the backend can validate after a patch.
type Record[T any] interface {
	records.Entity[T]
	Validate() error
}

// Resource serves one entity: ids are assigned here, every write is
// validated here, and listings go through view.Derive like the client.
type Resource[T Record[T]] struct {
	schema view.Schema[T]
	build  func(id string, fields records.Patch) (T, error)
	repo   Repository[T]
	stamp  string
	now    func() time.Time
}

// NewResource binds a schema, a constructor and a repository.
func NewResource[T Record[T]](schema view.Schema[T], build func(string, records.Patch) (T, error), repo Repository[T]) *Resource[T] {
	return &Resource[T]{schema: schema, build: build, repo: repo, now: time.Now}
}

// Stamped makes Create fill field with the creation time when the client
// did not send it.
func (r *Resource[T]) Stamped(field string) *Resource[T] {
	r.stamp = field
	return r
}

func (r *Resource[T]) Entity() string { return r.schema.Entity }

func (r *Resource[T]) List(ctx context.Context, spec view.Spec) (view.Result[T], error) {
	if err := view.Validate(r.schema, spec); err != nil {
		return view.Result[T]{}, err
	}
	all, err := r.repo.List(ctx)
	if err != nil {
		return view.Result[T]{}, err
	}
	return view.Derive(all, r.schema, spec), nil
}

func (r *Resource[T]) Get(ctx context.Context, id string) (T, error) {
	return r.repo.Get(ctx, id)
}

func (r *Resource[T]) Create(ctx context.Context, fields records.Patch) (T, error) {
	var zero T
	if r.stamp != "" && !fields.Has(r.stamp) {
		fields = fields.Without()
		fields[r.stamp] = r.now().UTC().Format(time.RFC3339)
	}
	rec, err := r.build(uuid.NewString(), fields)
	if err != nil {
		return zero, invalid(err)
	}
	if err := r.repo.Insert(ctx, rec); err != nil {
		return zero, err
	}
	return rec, nil
}

func (r *Resource[T]) Update(ctx context.Context, id string, patch records.Patch) (T, error) {
	var zero T
	if patch.Has("id") {
		return zero, fmt.Errorf("%w: id cannot be changed", records.ErrInvalidValue)
	}
	current, err := r.repo.Get(ctx, id)
	if err != nil {
		return zero, err
	}
	next, err := current.WithPatch(patch)
	if err != nil {
		return zero, invalid(err)
	}
	if err := next.Validate(); err != nil {
		return zero, invalid(err)
	}
	if err := r.repo.Replace(ctx, next); err != nil {
		return zero, err
	}
	return next, nil
}

func (r *Resource[T]) Delete(ctx context.Context, id string) error {
	return r.repo.Delete(ctx, id)
}

// invalid marks a domain rule violation as bad input unless it already is.
func invalid(err error) error {
	if errors.Is(err, records.ErrInvalidValue) || errors.Is(err, records.ErrUnknownField) {
		return err
	}
	return fmt.Errorf("%w: %w", records.ErrInvalidValue, err)
}
