// internal/catalog/catalog_test.go
package catalog

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libradesk/internal/pipeline"
	"libradesk/internal/records"
	"libradesk/internal/testutil"
	"libradesk/internal/view"
)

func setupService(t *testing.T, seed ...Book) (Service, *pipeline.Collection[Book]) {
	t.Helper()
	src := testutil.NewSource("book", NewBook, seed...)
	books := pipeline.New(Schema, src)
	require.NoError(t, books.Load(context.Background()))
	return NewService(books), books
}

func TestNewBookDefaultsAvailableToQuantity(t *testing.T) {
	b, err := NewBook("b1", records.Patch{"title": "Dune", "author": "Frank Herbert", "quantity": float64(3)})
	require.NoError(t, err)
	assert.Equal(t, 3, b.Available)
	assert.Equal(t, StatusActive, b.Status)

	_, err = NewBook("b2", records.Patch{"title": "", "author": "x", "quantity": 1})
	var fe records.FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe, "title")

	_, err = NewBook("b3", records.Patch{"title": "t", "author": "a", "quantity": 1, "available": 2})
	assert.ErrorIs(t, err, records.ErrInvalidValue)

	_, err = NewBook("b4", records.Patch{"title": "t", "author": "a", "pages": 100})
	assert.ErrorIs(t, err, records.ErrUnknownField)
}

func TestCheckOutAndCheckIn(t *testing.T) {
	b := Book{ID: "b1", Quantity: 2, Available: 1, Status: StatusActive}

	p, err := b.CheckOut()
	require.NoError(t, err)
	assert.Equal(t, records.Patch{"available": 0}, p)

	_, err = Book{Quantity: 2, Available: 0, Status: StatusActive}.CheckOut()
	assert.ErrorIs(t, err, ErrNoCopiesAvailable)

	_, err = Book{Quantity: 2, Available: 2, Status: StatusRetired}.CheckOut()
	assert.ErrorIs(t, err, ErrNoCopiesAvailable)

	assert.Equal(t, records.Patch{"available": 2}, b.CheckIn())
	assert.Equal(t, records.Patch{"available": 2}, Book{Quantity: 2, Available: 2}.CheckIn())
}

func TestServiceAddAndSearch(t *testing.T) {
	svc, books := setupService(t)
	ctx := context.Background()

	for i, title := range []string{"Lập trình Python", "Go in Action", "Python Crash Course"} {
		_, err := svc.AddBook(ctx, records.Patch{"title": title, "author": fmt.Sprintf("Author %d", i), "quantity": 1})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, books.Len())

	found := svc.Search("PYTHON")
	require.Len(t, found, 2)
	assert.Equal(t, "Lập trình Python", found[0].Title)
	assert.Equal(t, "Python Crash Course", found[1].Title)

	_, err := svc.AddBook(ctx, records.Patch{"author": "nobody"})
	assert.ErrorIs(t, err, records.ErrInvalidValue)
	assert.Equal(t, 3, books.Len(), "invalid books never reach the source")
}

func TestSearchUsesCollectionSchema(t *testing.T) {
	schema := Schema
	schema.DefaultSort = "publishYear"
	schema.DefaultDirection = view.Desc
	src := testutil.NewSource("book", NewBook,
		Book{ID: "1", Title: "Python A", Author: "x", PublishYear: 2001, Status: StatusActive},
		Book{ID: "2", Title: "Python B", Author: "x", PublishYear: 2019, Status: StatusActive},
		Book{ID: "3", Title: "Python C", Author: "x", PublishYear: 2010, Status: StatusActive},
	)
	books := pipeline.New(schema, src)
	require.NoError(t, books.Load(context.Background()))

	found := NewService(books).Search("python")

	ids := []string{}
	for _, b := range found {
		ids = append(ids, b.ID)
	}
	assert.Equal(t, []string{"2", "3", "1"}, ids)
}

func TestServiceUpdateCopiesKeepsLoans(t *testing.T) {
	svc, _ := setupService(t, Book{ID: "b1", Title: "Dune", Author: "Herbert", Quantity: 5, Available: 3, Status: StatusActive})
	ctx := context.Background()

	b, err := svc.UpdateCopies(ctx, "b1", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, b.Quantity)
	assert.Equal(t, 2, b.Available)

	_, err = svc.UpdateCopies(ctx, "b1", 1)
	assert.ErrorIs(t, err, ErrCopiesOnLoan)

	_, err = svc.UpdateCopies(ctx, "missing", 1)
	assert.ErrorIs(t, err, records.ErrNotFound)
}

func TestServiceRemoveAndRetire(t *testing.T) {
	svc, books := setupService(t,
		Book{ID: "b1", Title: "Dune", Author: "Herbert", Quantity: 2, Available: 1, Status: StatusActive},
		Book{ID: "b2", Title: "Emma", Author: "Austen", Quantity: 1, Available: 1, Status: StatusActive},
	)
	ctx := context.Background()

	assert.ErrorIs(t, svc.RemoveBook(ctx, "b1"), ErrCopiesOnLoan)
	require.NoError(t, svc.RemoveBook(ctx, "b2"))
	assert.Equal(t, 1, books.Len())

	b, err := svc.RetireBook(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, StatusRetired, b.Status)

	require.NoError(t, books.Filter("status", StatusRetired))
	assert.Equal(t, 1, books.Frame().Result.TotalItems)
}

func TestSchemaSortsByPublishYear(t *testing.T) {
	items := []Book{
		{ID: "1", Title: "A", PublishYear: 2001},
		{ID: "2", Title: "B", PublishYear: 1999},
		{ID: "3", Title: "C", PublishYear: 2010},
	}
	spec := Schema.DefaultSpec().WithSort("publishYear", view.Desc)
	require.NoError(t, view.Validate(Schema, spec))

	res := view.Derive(items, Schema, spec)
	ids := []string{}
	for _, b := range res.Items {
		ids = append(ids, b.ID)
	}
	assert.Equal(t, []string{"3", "1", "2"}, ids)
}
