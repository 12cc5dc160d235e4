// internal/circulation/schema.go
package circulation

import (
	"time"

	"libradesk/internal/view"
)

// Schema lists transactions with status derived against the wall clock.
var Schema = NewSchema(time.Now)

// NewSchema builds the transaction schema. The status field is read through
// StatusAt(clock()), so filtering on "overdue" never depends on the last sweep.
func NewSchema(clock func() time.Time) view.Schema[Transaction] {
	return view.Schema[Transaction]{
		Entity: "borrows",
		Fields: []view.Field[Transaction]{
			{Name: "id", Kind: view.KindString, Value: func(t Transaction) any { return t.ID }},
			{Name: "borrowerId", Kind: view.KindString, Value: func(t Transaction) any { return t.BorrowerID }},
			{Name: "bookId", Kind: view.KindString, Value: func(t Transaction) any { return t.BookID }},
			{Name: "borrowDate", Kind: view.KindDate, Value: func(t Transaction) any { return t.BorrowDate }},
			{Name: "dueDate", Kind: view.KindDate, Value: func(t Transaction) any { return t.DueDate }},
			{Name: "returnDate", Kind: view.KindDate, Value: func(t Transaction) any { return t.ReturnDate }},
			{Name: "status", Kind: view.KindString, Value: func(t Transaction) any { return t.StatusAt(clock()) }},
		},
		Searchable:       []string{"borrowerId", "bookId"},
		Sortable:         []string{"borrowDate", "dueDate", "returnDate", "status"},
		DefaultSort:      "borrowDate",
		DefaultDirection: view.Desc,
		DefaultPageSize:  10,
	}
}
