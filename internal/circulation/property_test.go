// internal/circulation/property_test.go
package circulation

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"libradesk/internal/catalog"
	"libradesk/internal/membership"
)

func TestBorrowCountersMatchOpenLoans(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		nUsers := rapid.IntRange(1, 3).Draw(rt, "users")
		nBooks := rapid.IntRange(1, 3).Draw(rt, "books")

		var users []membership.User
		for i := 0; i < nUsers; i++ {
			users = append(users, reader(fmt.Sprintf("u%d", i), 0))
		}
		var books []catalog.Book
		for i := 0; i < nBooks; i++ {
			q := rapid.IntRange(0, 3).Draw(rt, fmt.Sprintf("quantity%d", i))
			books = append(books, book(fmt.Sprintf("b%d", i), q, q))
		}
		f := newFixture(rt, users, books, nil)
		ctx := context.Background()

		steps := rapid.IntRange(1, 25).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			if rapid.Bool().Draw(rt, "borrow") || f.loans.Len() == 0 {
				u := rapid.SampledFrom(users).Draw(rt, "user")
				b := rapid.SampledFrom(books).Draw(rt, "book")
				_, err := f.svc.Borrow(ctx, BorrowRequest{BorrowerID: u.ID, BookID: b.ID})
				if err != nil && !errors.Is(err, ErrNoCopiesAvailable) {
					rt.Fatalf("borrow: %v", err)
				}
			} else {
				txn := rapid.SampledFrom(f.loans.All()).Draw(rt, "transaction")
				_, err := f.svc.Return(ctx, txn.ID)
				if err != nil && !errors.Is(err, ErrAlreadyReturned) {
					rt.Fatalf("return: %v", err)
				}
			}

			openByUser := map[string]int{}
			openByBook := map[string]int{}
			for _, txn := range f.loans.All() {
				if txn.Open() {
					openByUser[txn.BorrowerID]++
					openByBook[txn.BookID]++
				}
			}
			for _, u := range f.users.All() {
				if u.CurrentBorrowed != openByUser[u.ID] {
					rt.Fatalf("user %s: currentBorrowed %d, open loans %d", u.ID, u.CurrentBorrowed, openByUser[u.ID])
				}
				if u.CurrentBorrowed < 0 || u.CurrentBorrowed > u.TotalBorrowed {
					rt.Fatalf("user %s: counters out of range: %+v", u.ID, u)
				}
			}
			for _, b := range f.books.All() {
				if b.Available+openByBook[b.ID] != b.Quantity {
					rt.Fatalf("book %s: available %d + on loan %d != quantity %d", b.ID, b.Available, openByBook[b.ID], b.Quantity)
				}
			}
		}
	})
}
