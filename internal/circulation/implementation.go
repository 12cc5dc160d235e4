// internal/circulation/implementation.go
package circulation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"libradesk/internal/catalog"
	"libradesk/internal/pipeline"
	"libradesk/internal/records"
)

const (
	DefaultLoanPeriod = 14 * 24 * time.Hour

	logMsgCompensating       = "circulation: compensating failed saga step"
	logMsgCompensationFailed = "circulation: compensation failed"
	logMsgSwept              = "circulation: overdue sweep"
	logAttrSaga              = "saga"
	logAttrError             = "error"
)

type options struct {
	inventory  Inventory
	clock      func() time.Time
	loanPeriod time.Duration
	logger     *slog.Logger
}

type Option func(*options)

// WithInventory turns on copy accounting for borrows and returns.
func WithInventory(inv Inventory) Option {
	return func(o *options) { o.inventory = inv }
}

func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

func WithLoanPeriod(d time.Duration) Option {
	return func(o *options) { o.loanPeriod = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// service implements the Service interface.
type service struct {
	loans      *pipeline.Collection[Transaction]
	users      Directory
	inventory  Inventory
	clock      func() time.Time
	loanPeriod time.Duration
	logger     *slog.Logger
}

// NewService creates a new circulation service instance.
func NewService(loans *pipeline.Collection[Transaction], users Directory, opts ...Option) Service {
	o := options{clock: time.Now, loanPeriod: DefaultLoanPeriod, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &service{
		loans:      loans,
		users:      users,
		inventory:  o.inventory,
		clock:      o.clock,
		loanPeriod: o.loanPeriod,
		logger:     o.logger,
	}
}

func (s *service) today() records.Date {
	return records.DateOf(s.clock())
}

// Borrow orchestrates the borrow saga: take a copy off the shelf, bump the
// borrower's counters, then create the transaction. A failing step undoes
// the remote steps before it.
func (s *service) Borrow(ctx context.Context, req BorrowRequest) (Transaction, error) {
	if req.BorrowDate.IsZero() {
		req.BorrowDate = s.today()
	}
	if req.DueDate.IsZero() {
		req.DueDate = records.DateOf(req.BorrowDate.Add(s.loanPeriod))
	}
	if req.DueDate.Before(req.BorrowDate) {
		return Transaction{}, ErrInvalidDateRange
	}

	// Step 1: Validate the borrower
	user, err := s.users.Get(req.BorrowerID)
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to get borrower: %w", err)
	}
	if !user.Active() {
		return Transaction{}, fmt.Errorf("borrower %s: %w", user.ID, ErrUserBlocked)
	}

	// Step 2: Check availability
	var book catalog.Book
	var checkOut records.Patch
	if s.inventory != nil {
		book, err = s.inventory.Get(req.BookID)
		if err != nil {
			return Transaction{}, fmt.Errorf("failed to get book: %w", err)
		}
		if checkOut, err = book.CheckOut(); err != nil {
			return Transaction{}, fmt.Errorf("book %s: %w", book.ID, err)
		}
	}

	sg := &saga{name: "borrow", logger: s.logger}

	// Step 3: Decrement availability
	if s.inventory != nil {
		if _, err := s.inventory.Update(ctx, book.ID, checkOut); err != nil {
			return Transaction{}, fmt.Errorf("failed to check out book: %w", err)
		}
		sg.onFailure(func(ctx context.Context) error {
			_, err := s.inventory.Update(ctx, book.ID, records.Patch{"available": book.Available})
			return err
		})
	}

	// Step 4: Count the loan against the borrower
	if _, err := s.users.Update(ctx, user.ID, user.LoanOpened()); err != nil {
		sg.compensate(ctx, err)
		return Transaction{}, fmt.Errorf("failed to update borrower: %w", err)
	}
	sg.onFailure(func(ctx context.Context) error {
		_, err := s.users.Update(ctx, user.ID, user.Counters())
		return err
	})

	// Step 5: Create the transaction
	tok := s.loans.Begin()
	created, err := s.loans.Source().Create(ctx, records.Patch{
		"borrowerId": user.ID,
		"bookId":     req.BookID,
		"borrowDate": req.BorrowDate,
		"dueDate":    req.DueDate,
		"status":     StatusBorrowed,
	})
	if err != nil {
		s.loans.Abort(tok, err)
		sg.compensate(ctx, err)
		return Transaction{}, fmt.Errorf("failed to create transaction: %w", err)
	}
	if err := s.loans.Commit(ctx, tok, "borrow", func(st *records.Store[Transaction]) error {
		return st.Insert(created)
	}); err != nil {
		return Transaction{}, err
	}
	return created, nil
}

// Return closes a loan. The borrower must still exist: a missing borrower
// fails the return before anything is written.
func (s *service) Return(ctx context.Context, id string) (Transaction, error) {
	// Step 1: Find the open transaction
	txn, err := s.loans.Get(id)
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to find transaction: %w", err)
	}
	if !txn.Open() {
		return Transaction{}, fmt.Errorf("transaction %s: %w", id, ErrAlreadyReturned)
	}
	user, err := s.users.Get(txn.BorrowerID)
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to get borrower of %s: %w", id, err)
	}
	var book catalog.Book
	if s.inventory != nil {
		if book, err = s.inventory.Get(txn.BookID); err != nil {
			return Transaction{}, fmt.Errorf("failed to get book of %s: %w", id, err)
		}
	}

	sg := &saga{name: "return", logger: s.logger}

	// Step 2: Put the copy back on the shelf
	if s.inventory != nil {
		if _, err := s.inventory.Update(ctx, book.ID, book.CheckIn()); err != nil {
			return Transaction{}, fmt.Errorf("failed to check in book: %w", err)
		}
		sg.onFailure(func(ctx context.Context) error {
			_, err := s.inventory.Update(ctx, book.ID, records.Patch{"available": book.Available})
			return err
		})
	}

	// Step 3: Release the borrower's open loan
	if _, err := s.users.Update(ctx, user.ID, user.LoanClosed()); err != nil {
		sg.compensate(ctx, err)
		return Transaction{}, fmt.Errorf("failed to update borrower: %w", err)
	}
	sg.onFailure(func(ctx context.Context) error {
		_, err := s.users.Update(ctx, user.ID, user.Counters())
		return err
	})

	// Step 4: Close the transaction
	returned := s.today()
	tok := s.loans.Begin()
	updated, err := s.loans.Source().Update(ctx, id, records.Patch{
		"returnDate": returned,
		"status":     StatusReturned,
	})
	if err != nil {
		s.loans.Abort(tok, err)
		sg.compensate(ctx, err)
		return Transaction{}, fmt.Errorf("failed to close transaction: %w", err)
	}
	if err := s.loans.Commit(ctx, tok, "return", func(st *records.Store[Transaction]) error {
		return st.Replace(updated)
	}); err != nil {
		return Transaction{}, err
	}
	return updated, nil
}

// Update edits dates or references of a transaction. Status and return date
// belong to Return and Sweep.
func (s *service) Update(ctx context.Context, id string, patch records.Patch) (Transaction, error) {
	for _, field := range []string{"status", "returnDate"} {
		if patch.Has(field) {
			return Transaction{}, fmt.Errorf("%w: %s is managed by the borrow lifecycle", records.ErrInvalidValue, field)
		}
	}
	txn, err := s.loans.Get(id)
	if err != nil {
		return Transaction{}, err
	}
	next, err := txn.WithPatch(patch)
	if err != nil {
		return Transaction{}, err
	}
	if err := next.Validate(); err != nil {
		return Transaction{}, err
	}
	return s.loans.Update(ctx, id, patch)
}

// Sweep refreshes the stored status of every open transaction and returns
// the ids that became overdue. Only the local store changes.
func (s *service) Sweep(ctx context.Context) ([]string, error) {
	now := s.clock()
	due := false
	for _, t := range s.loans.All() {
		if t.Open() && t.StatusAt(now) != t.Status {
			due = true
			break
		}
	}
	if !due {
		return nil, nil
	}

	var overdue []string
	var changed int
	tok := s.loans.Begin()
	err := s.loans.Commit(ctx, tok, "sweep", func(st *records.Store[Transaction]) error {
		var err error
		overdue, changed, err = refreshStatuses(st, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info(logMsgSwept, "changed", changed, "overdue", len(overdue))
	return overdue, nil
}

// refreshStatuses rewrites the cached status of open transactions in st.
// It reads st itself, so a loan returned since the caller last looked is
// left alone.
func refreshStatuses(st *records.Store[Transaction], now time.Time) (overdue []string, changed int, err error) {
	for _, t := range st.All() {
		if !t.Open() {
			continue
		}
		status := t.StatusAt(now)
		if status == t.Status {
			continue
		}
		if status == StatusOverdue {
			overdue = append(overdue, t.ID)
		}
		t.Status = status
		if err := st.Replace(t); err != nil {
			return nil, 0, err
		}
		changed++
	}
	return overdue, changed, nil
}

// Loans projects every transaction for display at now.
func (s *service) Loans(now time.Time) []Loan {
	all := s.loans.All()
	out := make([]Loan, 0, len(all))
	for _, t := range all {
		out = append(out, t.LoanAt(now))
	}
	return out
}
