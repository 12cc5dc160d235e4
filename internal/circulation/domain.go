// internal/circulation/domain.go
package circulation

import (
	"errors"
	"strings"

	"libradesk/internal/catalog"
	"libradesk/internal/records"
)

const (
	StatusBorrowed = "borrowed"
	StatusReturned = "returned"
	StatusOverdue  = "overdue"
)

var (
	ErrInvalidDateRange  = errors.New("due date is before borrow date")
	ErrAlreadyReturned   = errors.New("transaction already returned")
	ErrUserBlocked       = errors.New("borrower is blocked")
	ErrNoCopiesAvailable = catalog.ErrNoCopiesAvailable
)

// Transaction is one borrow of one book by one user.
type Transaction struct {
	ID         string        `json:"id"`
	BorrowerID string        `json:"borrowerId"`
	BookID     string        `json:"bookId"`
	BorrowDate records.Date  `json:"borrowDate"`
	DueDate    records.Date  `json:"dueDate"`
	ReturnDate *records.Date `json:"returnDate"`
	Status     string        `json:"status"`
}

func (t Transaction) RecordID() string { return t.ID }

func (t Transaction) WithPatch(p records.Patch) (Transaction, error) {
	var err error
	for field, v := range p {
		switch field {
		case "borrowerId":
			t.BorrowerID, err = records.AsString(field, v)
		case "bookId":
			t.BookID, err = records.AsString(field, v)
		case "borrowDate":
			t.BorrowDate, err = records.AsDate(field, v)
		case "dueDate":
			t.DueDate, err = records.AsDate(field, v)
		case "returnDate":
			t.ReturnDate, err = records.AsOptionalDate(field, v)
		case "status":
			t.Status, err = records.AsString(field, v)
		default:
			err = records.Unknown(field)
		}
		if err != nil {
			return Transaction{}, err
		}
	}
	return t, nil
}

func (t Transaction) Validate() error {
	if t.DueDate.Before(t.BorrowDate) {
		return ErrInvalidDateRange
	}
	fe := records.FieldErrors{}
	if strings.TrimSpace(t.BorrowerID) == "" {
		fe["borrowerId"] = "is required"
	}
	if strings.TrimSpace(t.BookID) == "" {
		fe["bookId"] = "is required"
	}
	if t.BorrowDate.IsZero() {
		fe["borrowDate"] = "is required"
	}
	if t.DueDate.IsZero() {
		fe["dueDate"] = "is required"
	}
	switch t.Status {
	case StatusReturned:
		if t.ReturnDate == nil {
			fe["returnDate"] = "is required once returned"
		}
	case StatusBorrowed, StatusOverdue:
		if t.ReturnDate != nil {
			fe["status"] = "must be returned when a return date is set"
		}
	default:
		fe["status"] = "must be borrowed, returned or overdue"
	}
	return fe.OrNil()
}

// NewTransaction builds a transaction from create fields.
func NewTransaction(id string, fields records.Patch) (Transaction, error) {
	t, err := Transaction{ID: id, Status: StatusBorrowed}.WithPatch(fields)
	if err != nil {
		return Transaction{}, err
	}
	if err := t.Validate(); err != nil {
		return Transaction{}, err
	}
	return t, nil
}
