// internal/membership/schema.go
package membership

import "libradesk/internal/view"

var Schema = view.Schema[User]{
	Entity: "users",
	Fields: []view.Field[User]{
		{Name: "id", Kind: view.KindString, Value: func(u User) any { return u.ID }},
		{Name: "userId", Kind: view.KindString, Value: func(u User) any { return u.UserID }},
		{Name: "name", Kind: view.KindString, Value: func(u User) any { return u.Name }},
		{Name: "email", Kind: view.KindString, Value: func(u User) any { return u.Email }},
		{Name: "role", Kind: view.KindString, Value: func(u User) any { return u.Role }},
		{Name: "status", Kind: view.KindString, Value: func(u User) any { return u.Status }},
		{Name: "totalBorrowed", Kind: view.KindNumber, Value: func(u User) any { return u.TotalBorrowed }},
		{Name: "currentBorrowed", Kind: view.KindNumber, Value: func(u User) any { return u.CurrentBorrowed }},
	},
	Searchable:       []string{"name", "userId", "email"},
	Sortable:         []string{"name", "userId", "totalBorrowed", "currentBorrowed"},
	DefaultSort:      "name",
	DefaultDirection: view.Asc,
	DefaultPageSize:  10,
}
