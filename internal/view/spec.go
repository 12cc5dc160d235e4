// internal/view/spec.go
package view

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// DefaultPageSize applies when a schema does not declare one.
const DefaultPageSize = 10

// FilterAll is the UI's "no filter" choice.
const FilterAll = "all"

var ErrInvalidSpec = errors.New("invalid view spec")

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Spec is the search/filter/sort/page state of one list.
type Spec struct {
	Search        string
	Filters       map[string]string
	SortField     string
	SortDirection Direction
	// Page is 1-based.
	Page int
	// PageSize <= 0 puts every match on a single page.
	PageSize int
}

// Clone deep-copies the filter map.
func (s Spec) Clone() Spec {
	filters := make(map[string]string, len(s.Filters))
	for k, v := range s.Filters {
		filters[k] = v
	}
	s.Filters = filters
	return s
}

func (s Spec) WithSearch(term string) Spec {
	s = s.Clone()
	s.Search = term
	s.Page = 1
	return s
}

func (s Spec) WithFilter(field, value string) Spec {
	s = s.Clone()
	if value == "" || value == FilterAll {
		delete(s.Filters, field)
	} else {
		s.Filters[field] = value
	}
	s.Page = 1
	return s
}

func (s Spec) WithSort(field string, dir Direction) Spec {
	s = s.Clone()
	s.SortField = field
	s.SortDirection = dir
	return s
}

func (s Spec) WithPage(page int) Spec {
	s = s.Clone()
	s.Page = page
	return s
}

func (s Spec) WithPageSize(size int) Spec {
	s = s.Clone()
	s.PageSize = size
	s.Page = 1
	return s
}

// ActiveFilters returns the filters that actually constrain results, sorted by field.
func (s Spec) ActiveFilters() [][2]string {
	out := make([][2]string, 0, len(s.Filters))
	for k, v := range s.Filters {
		if v == "" || v == FilterAll {
			continue
		}
		out = append(out, [2]string{k, v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

// Validate checks spec against what schema declares.
func Validate[T any](schema Schema[T], spec Spec) error {
	if spec.SortField != "" && !schema.IsSortable(spec.SortField) {
		return fmt.Errorf("%w: %s cannot be sorted by %q", ErrInvalidSpec, schema.Entity, spec.SortField)
	}
	switch spec.SortDirection {
	case "", Asc, Desc:
	default:
		return fmt.Errorf("%w: sort direction %q", ErrInvalidSpec, spec.SortDirection)
	}
	for _, f := range spec.ActiveFilters() {
		if _, ok := schema.Field(f[0]); !ok {
			return fmt.Errorf("%w: %s has no field %q", ErrInvalidSpec, schema.Entity, f[0])
		}
	}
	if spec.Page < 1 {
		return fmt.Errorf("%w: page %d", ErrInvalidSpec, spec.Page)
	}
	if spec.PageSize < 0 {
		return fmt.Errorf("%w: page size %d", ErrInvalidSpec, spec.PageSize)
	}
	return nil
}

// ClampPage pulls spec.Page back into [1, totalPages].
func ClampPage(spec Spec, totalPages int) Spec {
	if totalPages < 1 {
		totalPages = 1
	}
	switch {
	case spec.Page < 1:
		return spec.WithPage(1)
	case spec.Page > totalPages:
		return spec.WithPage(totalPages)
	}
	return spec
}

const filterPrefix = "filter."

// Values encodes spec as list query parameters.
func (s Spec) Values() url.Values {
	v := url.Values{}
	if s.Search != "" {
		v.Set("search", s.Search)
	}
	for _, f := range s.ActiveFilters() {
		v.Set(filterPrefix+f[0], f[1])
	}
	if s.SortField != "" {
		v.Set("sort", s.SortField)
		if s.SortDirection != "" {
			v.Set("dir", string(s.SortDirection))
		}
	}
	if s.Page > 0 {
		v.Set("page", strconv.Itoa(s.Page))
	}
	if s.PageSize > 0 {
		v.Set("pageSize", strconv.Itoa(s.PageSize))
	}
	return v
}

// ParseValues is the inverse of Spec.Values. Missing page means 1, missing
// page size means everything.
func ParseValues(v url.Values) (Spec, error) {
	spec := Spec{
		Search:        v.Get("search"),
		Filters:       map[string]string{},
		SortField:     v.Get("sort"),
		SortDirection: Direction(strings.ToLower(v.Get("dir"))),
		Page:          1,
	}
	for key, vals := range v {
		if strings.HasPrefix(key, filterPrefix) && len(vals) > 0 {
			spec.Filters[strings.TrimPrefix(key, filterPrefix)] = vals[0]
		}
	}
	if p := v.Get("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Spec{}, fmt.Errorf("%w: page %q", ErrInvalidSpec, p)
		}
		spec.Page = n
	}
	if ps := v.Get("pageSize"); ps != "" {
		n, err := strconv.Atoi(ps)
		if err != nil {
			return Spec{}, fmt.Errorf("%w: page size %q", ErrInvalidSpec, ps)
		}
		spec.PageSize = n
	}
	return spec, nil
}
