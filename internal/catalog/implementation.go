// internal/catalog/implementation.go
package catalog

import (
	"context"
	"fmt"

	"libradesk/internal/pipeline"
	"libradesk/internal/records"
	"libradesk/internal/view"
)

const searchLimit = 10

// service implements the Service interface.
type service struct {
	books *pipeline.Collection[Book]
}

// NewService creates a new catalog service over the books collection.
func NewService(books *pipeline.Collection[Book]) Service {
	return &service{books: books}
}

// AddBook validates the fields locally before creating the book remotely.
func (s *service) AddBook(ctx context.Context, fields records.Patch) (Book, error) {
	if _, err := NewBook("", fields); err != nil {
		return Book{}, fmt.Errorf("failed to add book: %w", err)
	}
	return s.books.Create(ctx, fields)
}

func (s *service) GetBook(id string) (Book, error) {
	return s.books.Get(id)
}

// UpdateCopies changes the number of owned copies. Copies on loan stay on
// loan, so the shelf count moves by the same delta.
func (s *service) UpdateCopies(ctx context.Context, id string, quantity int) (Book, error) {
	book, err := s.books.Get(id)
	if err != nil {
		return Book{}, err
	}
	if quantity < book.OnLoan() {
		return Book{}, fmt.Errorf("book %s has %d copies on loan: %w", id, book.OnLoan(), ErrCopiesOnLoan)
	}
	patch := records.Patch{"quantity": quantity, "available": quantity - book.OnLoan()}
	next, err := book.WithPatch(patch)
	if err != nil {
		return Book{}, err
	}
	if err := next.Validate(); err != nil {
		return Book{}, err
	}
	return s.books.Update(ctx, id, patch)
}

// RetireBook takes a title out of circulation without deleting it.
func (s *service) RetireBook(ctx context.Context, id string) (Book, error) {
	return s.books.Update(ctx, id, records.Patch{"status": StatusRetired})
}

// RemoveBook deletes a book that has no copies out.
func (s *service) RemoveBook(ctx context.Context, id string) error {
	book, err := s.books.Get(id)
	if err != nil {
		return err
	}
	if book.OnLoan() > 0 {
		return fmt.Errorf("book %s: %w", id, ErrCopiesOnLoan)
	}
	return s.books.Delete(ctx, id)
}

// Search returns the first matches for query across the searchable fields.
func (s *service) Search(query string) []Book {
	schema := s.books.Schema()
	spec := schema.DefaultSpec().WithSearch(query).WithPageSize(searchLimit)
	return view.Derive(s.books.All(), schema, spec).Items
}
