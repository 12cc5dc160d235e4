// internal/view/schema.go
package view

import (
	"math"
	"strconv"
	"time"

	"golang.org/x/text/language"

	"libradesk/internal/records"
)

// Kind selects how a field is compared and rendered for exact-match filters.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindDate
	KindBool
)

// Field describes one named, readable attribute of T.
// Value returns string, int, float64, bool, time.Time, records.Date or *records.Date.
type Field[T any] struct {
	Name  string
	Kind  Kind
	Value func(T) any
}

// Schema is the per-entity declaration of what can be searched, filtered and sorted.
type Schema[T any] struct {
	Entity           string
	Fields           []Field[T]
	Searchable       []string
	Sortable         []string
	DefaultSort      string
	DefaultDirection Direction
	DefaultPageSize  int
	// Language drives string collation; language.Und when unset.
	Language language.Tag
}

func (s Schema[T]) Field(name string) (Field[T], bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field[T]{}, false
}

func (s Schema[T]) IsSortable(name string) bool {
	for _, f := range s.Sortable {
		if f == name {
			return true
		}
	}
	return false
}

// DefaultSpec is the spec a freshly mounted list starts with.
func (s Schema[T]) DefaultSpec() Spec {
	dir := s.DefaultDirection
	if dir == "" {
		dir = Asc
	}
	size := s.DefaultPageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	return Spec{
		Filters:       map[string]string{},
		SortField:     s.DefaultSort,
		SortDirection: dir,
		Page:          1,
		PageSize:      size,
	}
}

// WithLanguage returns a copy of s collating strings for tag.
func (s Schema[T]) WithLanguage(tag language.Tag) Schema[T] {
	s.Language = tag
	return s
}

// Canonical is the string form used for exact-match filtering.
func Canonical(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case records.Date:
		return t.String()
	case *records.Date:
		if t == nil {
			return ""
		}
		return t.String()
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	default:
		return ""
	}
}

func numeric(v any) float64 {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case float64:
		return t
	default:
		return math.NaN()
	}
}

// instant returns the comparable time of a date-like value; ok is false for
// missing values, which sort before everything else.
func instant(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case records.Date:
		return t.Time, !t.IsZero()
	case *records.Date:
		if t == nil {
			return time.Time{}, false
		}
		return t.Time, !t.IsZero()
	default:
		return time.Time{}, false
	}
}
