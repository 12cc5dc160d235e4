// internal/view/derive.go
package view

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
)

// Result is one rendered page of a list.
type Result[T any] struct {
	Items      []T `json:"items"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}

// Derive filters, sorts and paginates items. It is a pure function of its
// arguments: items is never modified and nothing is cached between calls.
//
//	search:  case-folded substring match over schema.Searchable (OR)
//	filters: exact match on Canonical(value), composed with AND
//	sort:    stable; desc reverses the comparator, ties keep input order
//	page:    items[(page-1)*size : page*size], TotalPages >= 1
//
// An empty or undeclared sort field keeps input order. Out-of-range pages
// come back empty; clamping is the caller's job (see ClampPage).
func Derive[T any](items []T, schema Schema[T], spec Spec) Result[T] {
	matched := filter(items, schema, spec)
	sortStable(matched, schema, spec)
	return paginate(matched, spec)
}

func filter[T any](items []T, schema Schema[T], spec Spec) []T {
	folder := cases.Fold()
	term := folder.String(strings.TrimSpace(spec.Search))

	type exact struct {
		field Field[T]
		want  string
	}
	var exacts []exact
	for _, f := range spec.ActiveFilters() {
		field, ok := schema.Field(f[0])
		if !ok {
			// an undeclared field can never equal anything
			return []T{}
		}
		exacts = append(exacts, exact{field: field, want: f[1]})
	}

	var searchable []Field[T]
	if term != "" {
		for _, name := range schema.Searchable {
			if f, ok := schema.Field(name); ok {
				searchable = append(searchable, f)
			}
		}
	}

	out := make([]T, 0, len(items))
	for _, item := range items {
		if term != "" && !matchesSearch(item, searchable, term, folder) {
			continue
		}
		keep := true
		for _, e := range exacts {
			if Canonical(e.field.Value(item)) != e.want {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, item)
		}
	}
	return out
}

func matchesSearch[T any](item T, fields []Field[T], term string, folder cases.Caser) bool {
	for _, f := range fields {
		if strings.Contains(folder.String(Canonical(f.Value(item))), term) {
			return true
		}
	}
	return false
}

func sortStable[T any](items []T, schema Schema[T], spec Spec) {
	if spec.SortField == "" || !schema.IsSortable(spec.SortField) {
		return
	}
	field, ok := schema.Field(spec.SortField)
	if !ok {
		return
	}

	compare := comparator(field, schema)
	if spec.SortDirection == Desc {
		asc := compare
		compare = func(a, b T) int { return -asc(a, b) }
	}
	slices.SortStableFunc(items, compare)
}

func comparator[T any](field Field[T], schema Schema[T]) func(a, b T) int {
	switch field.Kind {
	case KindNumber:
		return func(a, b T) int {
			return cmp.Compare(numeric(field.Value(a)), numeric(field.Value(b)))
		}
	case KindDate:
		return func(a, b T) int {
			ta, okA := instant(field.Value(a))
			tb, okB := instant(field.Value(b))
			switch {
			case !okA && !okB:
				return 0
			case !okA:
				return -1
			case !okB:
				return 1
			}
			return ta.Compare(tb)
		}
	case KindBool:
		return func(a, b T) int {
			return cmp.Compare(Canonical(field.Value(a)), Canonical(field.Value(b)))
		}
	default:
		col := collate.New(schema.Language)
		return func(a, b T) int {
			return col.CompareString(Canonical(field.Value(a)), Canonical(field.Value(b)))
		}
	}
}

func paginate[T any](items []T, spec Spec) Result[T] {
	total := len(items)
	if spec.PageSize <= 0 {
		return Result[T]{Items: items, TotalItems: total, TotalPages: 1}
	}

	pages := (total + spec.PageSize - 1) / spec.PageSize
	if pages < 1 {
		pages = 1
	}

	page := spec.Page
	if page < 1 {
		page = 1
	}
	// compare pages before multiplying: (page-1)*size overflows for huge pages
	if page > pages {
		return Result[T]{Items: []T{}, TotalItems: total, TotalPages: pages}
	}
	start := (page - 1) * spec.PageSize
	if start >= total {
		return Result[T]{Items: []T{}, TotalItems: total, TotalPages: pages}
	}
	end := min(start+spec.PageSize, total)

	return Result[T]{
		Items:      slices.Clone(items[start:end]),
		TotalItems: total,
		TotalPages: pages,
	}
}
