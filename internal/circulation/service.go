// internal/circulation/service.go
package circulation

import (
	"context"
	"time"

	"libradesk/internal/catalog"
	"libradesk/internal/membership"
	"libradesk/internal/records"
)

// Directory is the lookup capability of whichever component owns users.
// A *pipeline.Collection[membership.User] satisfies it.
type Directory interface {
	Get(id string) (membership.User, error)
	Update(ctx context.Context, id string, patch records.Patch) (membership.User, error)
}

// Inventory is the same capability for books.
type Inventory interface {
	Get(id string) (catalog.Book, error)
	Update(ctx context.Context, id string, patch records.Patch) (catalog.Book, error)
}

// BorrowRequest opens a loan. A zero BorrowDate means today; a zero DueDate
// means BorrowDate plus the loan period.
type BorrowRequest struct {
	BorrowerID string
	BookID     string
	BorrowDate records.Date
	DueDate    records.Date
}

// Service defines the interface for the circulation service.
type Service interface {
	Borrow(ctx context.Context, req BorrowRequest) (Transaction, error)
	Return(ctx context.Context, id string) (Transaction, error)
	Update(ctx context.Context, id string, patch records.Patch) (Transaction, error)
	Sweep(ctx context.Context) ([]string, error)
	Loans(now time.Time) []Loan
}
