// internal/circulation/circulation_test.go
package circulation

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libradesk/internal/catalog"
	"libradesk/internal/membership"
	"libradesk/internal/pipeline"
	"libradesk/internal/records"
	"libradesk/internal/testutil"
	"libradesk/internal/view"
)

var scenarioNow = time.Date(2023, 5, 20, 10, 0, 0, 0, time.UTC)

func date(s string) records.Date { return records.MustParseDate(s) }

func datePtr(s string) *records.Date {
	d := date(s)
	return &d
}

type fixture struct {
	svc     Service
	users   *pipeline.Collection[membership.User]
	books   *pipeline.Collection[catalog.Book]
	loans   *pipeline.Collection[Transaction]
	userSrc *testutil.Source[membership.User]
	bookSrc *testutil.Source[catalog.Book]
	loanSrc *testutil.Source[Transaction]
}

type testingT interface {
	require.TestingT
	Helper()
}

func newFixture(t testingT, users []membership.User, books []catalog.Book, loans []Transaction) *fixture {
	t.Helper()
	ctx := context.Background()
	clock := func() time.Time { return scenarioNow }

	f := &fixture{
		userSrc: testutil.NewSource("user", membership.NewUser, users...),
		bookSrc: testutil.NewSource("book", catalog.NewBook, books...),
		loanSrc: testutil.NewSource("borrow", NewTransaction, loans...),
	}
	f.users = pipeline.New(membership.Schema, f.userSrc)
	f.books = pipeline.New(catalog.Schema, f.bookSrc)
	f.loans = pipeline.New(NewSchema(clock), f.loanSrc)
	require.NoError(t, f.users.Load(ctx))
	require.NoError(t, f.books.Load(ctx))
	require.NoError(t, f.loans.Load(ctx))

	f.svc = NewService(f.loans, f.users, WithInventory(f.books), WithClock(clock))
	return f
}

func reader(id string, current int) membership.User {
	return membership.User{
		ID: id, Name: "Reader " + id, Role: membership.RoleMember, Status: membership.StatusActive,
		TotalBorrowed: current, CurrentBorrowed: current,
	}
}

func book(id string, quantity, available int) catalog.Book {
	return catalog.Book{ID: id, Title: "Book " + id, Author: "A", Quantity: quantity, Available: available, Status: catalog.StatusActive}
}

func TestStatusAtAndDaysLeft(t *testing.T) {
	tests := []struct {
		name     string
		txn      Transaction
		status   string
		daysLeft int
	}{
		{
			name:     "five days overdue",
			txn:      Transaction{BorrowDate: date("2023-05-01"), DueDate: date("2023-05-15"), Status: StatusBorrowed},
			status:   StatusOverdue,
			daysLeft: -5,
		},
		{
			name:     "due today is still borrowed",
			txn:      Transaction{BorrowDate: date("2023-05-10"), DueDate: date("2023-05-20"), Status: StatusBorrowed},
			status:   StatusBorrowed,
			daysLeft: 0,
		},
		{
			name:     "due tomorrow",
			txn:      Transaction{BorrowDate: date("2023-05-10"), DueDate: date("2023-05-21"), Status: StatusBorrowed},
			status:   StatusBorrowed,
			daysLeft: 1,
		},
		{
			name:     "returned late stays returned",
			txn:      Transaction{BorrowDate: date("2023-05-01"), DueDate: date("2023-05-15"), ReturnDate: datePtr("2023-05-18"), Status: StatusReturned},
			status:   StatusReturned,
			daysLeft: -5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.txn.StatusAt(scenarioNow))
			assert.Equal(t, tt.daysLeft, tt.txn.DaysLeft(scenarioNow))
		})
	}
}

func TestDaysLeftUsesLocalCalendar(t *testing.T) {
	hanoi := time.FixedZone("ICT", 7*60*60)
	now := time.Date(2023, 5, 20, 1, 0, 0, 0, hanoi)
	txn := Transaction{DueDate: date("2023-05-15")}

	assert.Equal(t, StatusOverdue, txn.StatusAt(now))
	assert.Equal(t, -5, txn.DaysLeft(now))
}

func TestNewTransactionValidates(t *testing.T) {
	_, err := NewTransaction("x", records.Patch{
		"borrowerId": "u1", "bookId": "b1", "borrowDate": "2023-05-10", "dueDate": "2023-05-01",
	})
	assert.ErrorIs(t, err, ErrInvalidDateRange)

	_, err = NewTransaction("x", records.Patch{
		"borrowerId": "u1", "bookId": "b1", "borrowDate": "2023-05-10", "dueDate": "2023-05-20", "status": StatusReturned,
	})
	assert.ErrorIs(t, err, records.ErrInvalidValue)

	txn, err := NewTransaction("x", records.Patch{
		"borrowerId": "u1", "bookId": "b1", "borrowDate": "2023-05-10", "dueDate": "2023-05-20", "returnDate": nil,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusBorrowed, txn.Status)
	assert.True(t, txn.Open())
}

func TestBorrowUpdatesCountersAndCopies(t *testing.T) {
	f := newFixture(t, []membership.User{reader("u1", 0)}, []catalog.Book{book("b1", 2, 2)}, nil)

	txn, err := f.svc.Borrow(context.Background(), BorrowRequest{BorrowerID: "u1", BookID: "b1"})
	require.NoError(t, err)
	assert.Equal(t, date("2023-05-20"), txn.BorrowDate)
	assert.Equal(t, date("2023-06-03"), txn.DueDate)
	assert.Equal(t, StatusBorrowed, txn.Status)
	assert.Equal(t, 1, f.loans.Len())

	u, err := f.users.Get("u1")
	require.NoError(t, err)
	assert.Equal(t, 1, u.TotalBorrowed)
	assert.Equal(t, 1, u.CurrentBorrowed)

	b, err := f.books.Get("b1")
	require.NoError(t, err)
	assert.Equal(t, 1, b.Available)
}

func TestBorrowRejections(t *testing.T) {
	blocked := reader("u2", 0)
	blocked.Status = membership.StatusBlocked
	f := newFixture(t,
		[]membership.User{reader("u1", 0), blocked},
		[]catalog.Book{book("b1", 1, 1), book("b0", 1, 0)},
		nil,
	)
	ctx := context.Background()

	_, err := f.svc.Borrow(ctx, BorrowRequest{BorrowerID: "u1", BookID: "b1", BorrowDate: date("2023-05-20"), DueDate: date("2023-05-19")})
	assert.ErrorIs(t, err, ErrInvalidDateRange)

	_, err = f.svc.Borrow(ctx, BorrowRequest{BorrowerID: "ghost", BookID: "b1"})
	assert.ErrorIs(t, err, records.ErrNotFound)

	_, err = f.svc.Borrow(ctx, BorrowRequest{BorrowerID: "u2", BookID: "b1"})
	assert.ErrorIs(t, err, ErrUserBlocked)

	_, err = f.svc.Borrow(ctx, BorrowRequest{BorrowerID: "u1", BookID: "b0"})
	assert.ErrorIs(t, err, ErrNoCopiesAvailable)

	assert.Zero(t, f.loans.Len())
	assert.Empty(t, f.userSrc.Calls[1:], "only the initial list reached the user source")
	assert.Empty(t, f.bookSrc.Calls[1:])
}

func TestBorrowCompensatesWhenCreateFails(t *testing.T) {
	f := newFixture(t, []membership.User{reader("u1", 2)}, []catalog.Book{book("b1", 3, 1)}, nil)
	f.loanSrc.FailNext("create", &pipeline.RemoteError{Status: http.StatusInternalServerError, Message: "boom"})

	_, err := f.svc.Borrow(context.Background(), BorrowRequest{BorrowerID: "u1", BookID: "b1"})
	var remote *pipeline.RemoteError
	require.ErrorAs(t, err, &remote)

	u, _ := f.users.Get("u1")
	assert.Equal(t, 2, u.TotalBorrowed)
	assert.Equal(t, 2, u.CurrentBorrowed)
	b, _ := f.books.Get("b1")
	assert.Equal(t, 1, b.Available)
	assert.Zero(t, f.loans.Len())
	assert.Equal(t, remote, f.loans.Frame().Err)
}

func TestReturnClosesLoan(t *testing.T) {
	open := Transaction{ID: "t1", BorrowerID: "u1", BookID: "b1", BorrowDate: date("2023-05-01"), DueDate: date("2023-05-15"), Status: StatusBorrowed}
	f := newFixture(t, []membership.User{reader("u1", 1)}, []catalog.Book{book("b1", 1, 0)}, []Transaction{open})

	got, err := f.svc.Return(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, StatusReturned, got.Status)
	require.NotNil(t, got.ReturnDate)
	assert.Equal(t, date("2023-05-20"), *got.ReturnDate)

	stored, _ := f.loans.Get("t1")
	assert.Equal(t, StatusReturned, stored.StatusAt(scenarioNow))

	u, _ := f.users.Get("u1")
	assert.Equal(t, 0, u.CurrentBorrowed)
	assert.Equal(t, 1, u.TotalBorrowed)
	b, _ := f.books.Get("b1")
	assert.Equal(t, 1, b.Available)

	loanCalls := slices.Clone(f.loanSrc.Calls)
	userCalls := slices.Clone(f.userSrc.Calls)
	bookCalls := slices.Clone(f.bookSrc.Calls)

	_, err = f.svc.Return(context.Background(), "t1")
	assert.ErrorIs(t, err, ErrAlreadyReturned)

	u, _ = f.users.Get("u1")
	assert.Equal(t, 0, u.CurrentBorrowed)
	assert.Equal(t, 1, u.TotalBorrowed)
	b, _ = f.books.Get("b1")
	assert.Equal(t, 1, b.Available)
	again, _ := f.loans.Get("t1")
	assert.Equal(t, stored, again)
	assert.Equal(t, loanCalls, f.loanSrc.Calls, "a second return sends nothing")
	assert.Equal(t, userCalls, f.userSrc.Calls)
	assert.Equal(t, bookCalls, f.bookSrc.Calls)
}

func TestReturnWithDeletedBorrowerWritesNothing(t *testing.T) {
	open := Transaction{ID: "t1", BorrowerID: "u1", BookID: "b1", BorrowDate: date("2023-05-01"), DueDate: date("2023-05-15"), Status: StatusBorrowed}
	f := newFixture(t, []membership.User{reader("u1", 1)}, []catalog.Book{book("b1", 1, 0)}, []Transaction{open})
	require.NoError(t, f.users.Delete(context.Background(), "u1"))

	_, err := f.svc.Return(context.Background(), "t1")
	assert.ErrorIs(t, err, records.ErrNotFound)

	stored, _ := f.loans.Get("t1")
	assert.True(t, stored.Open())
	b, _ := f.books.Get("b1")
	assert.Equal(t, 0, b.Available)
	assert.NotContains(t, f.loanSrc.Calls, "update")
}

func TestReturnCompensatesWhenCloseFails(t *testing.T) {
	open := Transaction{ID: "t1", BorrowerID: "u1", BookID: "b1", BorrowDate: date("2023-05-01"), DueDate: date("2023-05-15"), Status: StatusBorrowed}
	f := newFixture(t, []membership.User{reader("u1", 1)}, []catalog.Book{book("b1", 1, 0)}, []Transaction{open})
	f.loanSrc.FailNext("update", errors.New("connection reset"))

	_, err := f.svc.Return(context.Background(), "t1")
	require.Error(t, err)

	stored, _ := f.loans.Get("t1")
	assert.True(t, stored.Open())
	u, _ := f.users.Get("u1")
	assert.Equal(t, 1, u.CurrentBorrowed)
	b, _ := f.books.Get("b1")
	assert.Equal(t, 0, b.Available)

	for _, r := range f.userSrc.Records() {
		assert.Equal(t, 1, r.CurrentBorrowed, "remote counters are compensated too")
	}
}

func TestUpdateRejectsLifecycleFields(t *testing.T) {
	open := Transaction{ID: "t1", BorrowerID: "u1", BookID: "b1", BorrowDate: date("2023-05-01"), DueDate: date("2023-05-15"), Status: StatusBorrowed}
	f := newFixture(t, []membership.User{reader("u1", 1)}, nil, []Transaction{open})
	ctx := context.Background()

	_, err := f.svc.Update(ctx, "t1", records.Patch{"status": StatusOverdue})
	assert.ErrorIs(t, err, records.ErrInvalidValue)

	_, err = f.svc.Update(ctx, "t1", records.Patch{"dueDate": "2023-04-01"})
	assert.ErrorIs(t, err, ErrInvalidDateRange)

	got, err := f.svc.Update(ctx, "t1", records.Patch{"dueDate": "2023-05-25"})
	require.NoError(t, err)
	assert.Equal(t, 5, got.DaysLeft(scenarioNow))
}

func TestSweepMarksOverdue(t *testing.T) {
	f := newFixture(t, []membership.User{reader("u1", 3)}, nil, []Transaction{
		{ID: "late", BorrowerID: "u1", BookID: "b1", BorrowDate: date("2023-05-01"), DueDate: date("2023-05-15"), Status: StatusBorrowed},
		{ID: "today", BorrowerID: "u1", BookID: "b2", BorrowDate: date("2023-05-06"), DueDate: date("2023-05-20"), Status: StatusBorrowed},
		{ID: "done", BorrowerID: "u1", BookID: "b3", BorrowDate: date("2023-05-01"), DueDate: date("2023-05-02"), ReturnDate: datePtr("2023-05-10"), Status: StatusReturned},
	})

	ids, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"late"}, ids)

	late, _ := f.loans.Get("late")
	assert.Equal(t, StatusOverdue, late.Status)

	ids, err = f.svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, f.loans.Filter("status", StatusOverdue))
	assert.Equal(t, 1, f.loans.Frame().Result.TotalItems)

	loans := f.svc.Loans(scenarioNow)
	require.Len(t, loans, 3)
	assert.Equal(t, Loan{ID: "late", BorrowerID: "u1", BookID: "b1", DueDate: date("2023-05-15"), Status: StatusOverdue, DaysLeft: -5}, loans[0])
}

func TestSweepCommitKeepsLoanReturnedInBetween(t *testing.T) {
	late := Transaction{ID: "late", BorrowerID: "u1", BookID: "b1", BorrowDate: date("2023-05-01"), DueDate: date("2023-05-15"), Status: StatusBorrowed}
	f := newFixture(t, []membership.User{reader("u1", 1)}, []catalog.Book{book("b1", 1, 0)}, []Transaction{late})
	ctx := context.Background()

	// a sweep that opened its unit of work before the return committed
	tok := f.loans.Begin()
	_, err := f.svc.Return(ctx, "late")
	require.NoError(t, err)

	var overdue []string
	require.NoError(t, f.loans.Commit(ctx, tok, "sweep", func(st *records.Store[Transaction]) error {
		var err error
		overdue, _, err = refreshStatuses(st, scenarioNow)
		return err
	}))

	assert.Empty(t, overdue)
	stored, _ := f.loans.Get("late")
	assert.Equal(t, StatusReturned, stored.Status)
	assert.NotNil(t, stored.ReturnDate)
	u, _ := f.users.Get("u1")
	assert.Equal(t, 0, u.CurrentBorrowed)
}

func TestSweepAndReturnConcurrently(t *testing.T) {
	late := Transaction{ID: "late", BorrowerID: "u1", BookID: "b1", BorrowDate: date("2023-05-01"), DueDate: date("2023-05-15"), Status: StatusBorrowed}
	f := newFixture(t, []membership.User{reader("u1", 1)}, []catalog.Book{book("b1", 1, 0)}, []Transaction{late})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Sweep(ctx)
		done <- err
	}()
	_, err := f.svc.Return(ctx, "late")
	require.NoError(t, err)
	require.NoError(t, <-done)

	stored, _ := f.loans.Get("late")
	assert.Equal(t, StatusReturned, stored.Status)
}

func TestStatusFilterIsLiveWithoutSweep(t *testing.T) {
	items := []Transaction{
		{ID: "late", DueDate: date("2023-05-15"), Status: StatusBorrowed},
		{ID: "fine", DueDate: date("2023-05-30"), Status: StatusBorrowed},
	}
	schema := NewSchema(func() time.Time { return scenarioNow })

	res := view.Derive(items, schema, schema.DefaultSpec().WithFilter("status", StatusOverdue))
	require.Len(t, res.Items, 1)
	assert.Equal(t, "late", res.Items[0].ID)
}
