// internal/records/errors.go
package records

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrDuplicateID  = errors.New("duplicate record id")
	ErrNotFound     = errors.New("record not found")
	ErrUnknownField = errors.New("unknown field")
	ErrInvalidValue = errors.New("invalid field value")
)

// FieldErrors maps a field name to a human readable validation message.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, fe[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Unwrap lets callers match validation failures with errors.Is(err, ErrInvalidValue).
func (fe FieldErrors) Unwrap() error {
	return ErrInvalidValue
}

// OrNil returns nil when no field failed.
func (fe FieldErrors) OrNil() error {
	if len(fe) == 0 {
		return nil
	}
	return fe
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

func duplicate(id string) error {
	return fmt.Errorf("%w: %s", ErrDuplicateID, id)
}
