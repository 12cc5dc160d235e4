// internal/catalog/service.go
package catalog

import (
	"context"

	"libradesk/internal/records"
)

// Service defines the interface for the catalog service.
type Service interface {
	AddBook(ctx context.Context, fields records.Patch) (Book, error)
	GetBook(id string) (Book, error)
	UpdateCopies(ctx context.Context, id string, quantity int) (Book, error)
	RetireBook(ctx context.Context, id string) (Book, error)
	RemoveBook(ctx context.Context, id string) error
	Search(query string) []Book
}
