// internal/catalog/schema.go
package catalog

import "libradesk/internal/view"

// Schema is the list declaration for books.
var Schema = view.Schema[Book]{
	Entity: "books",
	Fields: []view.Field[Book]{
		{Name: "id", Kind: view.KindString, Value: func(b Book) any { return b.ID }},
		{Name: "isbn", Kind: view.KindString, Value: func(b Book) any { return b.ISBN }},
		{Name: "title", Kind: view.KindString, Value: func(b Book) any { return b.Title }},
		{Name: "author", Kind: view.KindString, Value: func(b Book) any { return b.Author }},
		{Name: "publisher", Kind: view.KindString, Value: func(b Book) any { return b.Publisher }},
		{Name: "category", Kind: view.KindString, Value: func(b Book) any { return b.Category }},
		{Name: "publishYear", Kind: view.KindNumber, Value: func(b Book) any { return b.PublishYear }},
		{Name: "quantity", Kind: view.KindNumber, Value: func(b Book) any { return b.Quantity }},
		{Name: "available", Kind: view.KindNumber, Value: func(b Book) any { return b.Available }},
		{Name: "status", Kind: view.KindString, Value: func(b Book) any { return b.Status }},
		{Name: "createdAt", Kind: view.KindDate, Value: func(b Book) any { return b.CreatedAt }},
	},
	Searchable:       []string{"title", "author", "isbn", "publisher"},
	Sortable:         []string{"title", "author", "publishYear", "quantity", "available", "createdAt"},
	DefaultSort:      "title",
	DefaultDirection: view.Asc,
	DefaultPageSize:  10,
}
