// internal/pipeline/source.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"libradesk/internal/records"
	"libradesk/internal/view"
)

// ErrStale is returned when a response arrives after the state it was issued
// against has been replaced; its effects are dropped.
var ErrStale = errors.New("response superseded by newer state")

// ListAll asks a Source for every record on a single page.
var ListAll = view.Spec{Page: 1}

// Source is the remote system of record for one entity type.
type Source[T any] interface {
	List(ctx context.Context, spec view.Spec) (view.Result[T], error)
	Create(ctx context.Context, fields records.Patch) (T, error)
	Update(ctx context.Context, id string, patch records.Patch) (T, error)
	Delete(ctx context.Context, id string) error
}

// RemoteError is a failure reported by a Source. Fields carries per-field
// validation messages when the remote rejected input.
type RemoteError struct {
	Status  int
	Message string
	Fields  map[string]string
}

func (e *RemoteError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if len(e.Fields) > 0 {
		return fmt.Sprintf("remote error (%d): %s: %v", e.Status, msg, records.FieldErrors(e.Fields))
	}
	return fmt.Sprintf("remote error (%d): %s", e.Status, msg)
}

// Unwrap maps well-known statuses onto the local error taxonomy so callers
// can use errors.Is regardless of where the failure happened.
func (e *RemoteError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return records.ErrNotFound
	case http.StatusConflict:
		return records.ErrDuplicateID
	case http.StatusUnprocessableEntity, http.StatusBadRequest:
		return records.ErrInvalidValue
	default:
		return nil
	}
}
