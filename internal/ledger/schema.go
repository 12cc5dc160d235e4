// internal/ledger/schema.go
package ledger

import "libradesk/internal/view"

var Schema = view.Schema[Transaction]{
	Entity: "finance",
	Fields: []view.Field[Transaction]{
		{Name: "id", Kind: view.KindString, Value: func(t Transaction) any { return t.ID }},
		{Name: "userId", Kind: view.KindString, Value: func(t Transaction) any { return t.UserID }},
		{Name: "type", Kind: view.KindString, Value: func(t Transaction) any { return t.Type }},
		{Name: "amount", Kind: view.KindNumber, Value: func(t Transaction) any { return t.Amount }},
		{Name: "status", Kind: view.KindString, Value: func(t Transaction) any { return t.Status }},
		{Name: "description", Kind: view.KindString, Value: func(t Transaction) any { return t.Description }},
		{Name: "createdAt", Kind: view.KindDate, Value: func(t Transaction) any { return t.CreatedAt }},
	},
	Searchable:       []string{"userId", "description"},
	Sortable:         []string{"amount", "createdAt", "type", "status"},
	DefaultSort:      "createdAt",
	DefaultDirection: view.Desc,
	DefaultPageSize:  10,
}
