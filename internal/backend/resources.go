// internal/backend/resources.go
package backend

import (
	"database/sql"

	"libradesk/internal/catalog"
	"libradesk/internal/circulation"
	"libradesk/internal/ledger"
	"libradesk/internal/membership"
)

// Repositories holds one repository per entity.
type Repositories struct {
	Books   Repository[catalog.Book]
	Users   Repository[membership.User]
	Borrows Repository[circulation.Transaction]
	Finance Repository[ledger.Transaction]
}

// MemoryRepositories returns empty in-memory repositories.
func MemoryRepositories() Repositories {
	books, _ := NewMemoryRepository[catalog.Book]()
	users, _ := NewMemoryRepository[membership.User]()
	borrows, _ := NewMemoryRepository[circulation.Transaction]()
	finance, _ := NewMemoryRepository[ledger.Transaction]()
	return Repositories{Books: books, Users: users, Borrows: borrows, Finance: finance}
}

// PostgresRepositories shares db between every entity.
func PostgresRepositories(db *sql.DB) Repositories {
	return Repositories{
		Books:   NewPostgresRepository[catalog.Book](db, catalog.Schema.Entity),
		Users:   NewPostgresRepository[membership.User](db, membership.Schema.Entity),
		Borrows: NewPostgresRepository[circulation.Transaction](db, circulation.Schema.Entity),
		Finance: NewPostgresRepository[ledger.Transaction](db, ledger.Schema.Entity),
	}
}

// Resources binds every entity's schema and constructor to repos.
func Resources(repos Repositories) []Mountable {
	return []Mountable{
		NewResource[catalog.Book](catalog.Schema, catalog.NewBook, repos.Books).Stamped("createdAt"),
		NewResource[membership.User](membership.Schema, membership.NewUser, repos.Users),
		NewResource[circulation.Transaction](circulation.Schema, circulation.NewTransaction, repos.Borrows),
		NewResource[ledger.Transaction](ledger.Schema, ledger.NewTransaction, repos.Finance).Stamped("createdAt"),
	}
}
