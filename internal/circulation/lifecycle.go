// internal/circulation/lifecycle.go
package circulation

import (
	"math"
	"time"

	"libradesk/internal/records"
)

const day = 24 * time.Hour

// wall reads now's wall clock as if it were UTC, so that "today" and due
// dates live on the same calendar.
func wall(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, now.Hour(), now.Minute(), now.Second(), now.Nanosecond(), time.UTC)
}

// StatusAt derives the lifecycle state at now. The stored Status is only a
// cache of this value.
func (t Transaction) StatusAt(now time.Time) string {
	switch {
	case t.ReturnDate != nil:
		return StatusReturned
	case t.DueDate.Before(records.DateOf(now)):
		return StatusOverdue
	default:
		return StatusBorrowed
	}
}

// DaysLeft is the number of days until the due date, rounded up. It is
// negative once overdue and 0 on the due date itself.
func (t Transaction) DaysLeft(now time.Time) int {
	left := t.DueDate.Sub(wall(now))
	return int(math.Ceil(float64(left) / float64(day)))
}

// Open reports whether the book is still out.
func (t Transaction) Open() bool { return t.ReturnDate == nil }

// Loan is the projection the rendering layer shows for a transaction.
type Loan struct {
	ID         string       `json:"id"`
	BorrowerID string       `json:"borrowerId"`
	BookID     string       `json:"bookId"`
	DueDate    records.Date `json:"dueDate"`
	Status     string       `json:"status"`
	DaysLeft   int          `json:"daysLeft"`
}

func (t Transaction) LoanAt(now time.Time) Loan {
	return Loan{
		ID:         t.ID,
		BorrowerID: t.BorrowerID,
		BookID:     t.BookID,
		DueDate:    t.DueDate,
		Status:     t.StatusAt(now),
		DaysLeft:   t.DaysLeft(now),
	}
}
