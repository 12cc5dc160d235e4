// internal/app/session_test.go
package app

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libradesk/internal/backend"
	"libradesk/internal/catalog"
	"libradesk/internal/circulation"
	"libradesk/internal/config"
	"libradesk/internal/records"
)

var sessionNow = time.Date(2023, 5, 20, 10, 0, 0, 0, time.UTC)

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		API:         config.API{BaseURL: baseURL, Timeout: 5 * time.Second},
		View:        config.View{PageSize: 10, SortLanguage: "vi"},
		Circulation: config.Circulation{LoanPeriodDays: 14},
	}
}

// setupSession starts an in-process record API and a session talking to it.
func setupSession(t *testing.T) (*Session, backend.Repositories, string) {
	t.Helper()
	repos := backend.MemoryRepositories()
	srv := httptest.NewServer(backend.NewRouter(nil, backend.Resources(repos)...))
	t.Cleanup(srv.Close)

	cfg := testConfig(srv.URL + "/api/v1")
	s, err := NewSession(RemoteSources(cfg.API, nil), cfg, WithClock(func() time.Time { return sessionNow }))
	require.NoError(t, err)
	require.NoError(t, s.Load(context.Background()))
	return s, repos, cfg.API.BaseURL
}

func TestBorrowFlow(t *testing.T) {
	ctx := context.Background()
	s, repos, _ := setupSession(t)

	user, err := s.Membership.RegisterUser(ctx, records.Patch{"name": "Test User", "email": "test@example.com"})
	require.NoError(t, err)
	book, err := s.Catalog.AddBook(ctx, records.Patch{
		"isbn": "9780141439518", "title": "Pride and Prejudice", "author": "Jane Austen", "quantity": 5,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, book.Available)

	txn, err := s.Circulation.Borrow(ctx, circulation.BorrowRequest{BorrowerID: user.ID, BookID: book.ID})
	require.NoError(t, err)
	assert.Equal(t, records.MustParseDate("2023-05-20"), txn.BorrowDate)
	assert.Equal(t, records.MustParseDate("2023-06-03"), txn.DueDate)

	stored, err := repos.Books.Get(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, stored.Available)
	storedUser, err := repos.Users.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, storedUser.CurrentBorrowed)
	assert.Equal(t, 1, storedUser.TotalBorrowed)

	_, err = s.Circulation.Return(ctx, txn.ID)
	require.NoError(t, err)

	stored, err = repos.Books.Get(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.Available)
	storedLoan, err := repos.Borrows.Get(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, circulation.StatusReturned, storedLoan.Status)

	local, err := s.Books.Get(book.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, local.Available)
}

func TestLastCopyCannotBeBorrowedTwice(t *testing.T) {
	ctx := context.Background()
	s, repos, _ := setupSession(t)

	book, err := s.Catalog.AddBook(ctx, records.Patch{
		"isbn": "9780743273565", "title": "The Great Gatsby", "author": "F. Scott Fitzgerald", "quantity": 1,
	})
	require.NoError(t, err)

	var borrowed int
	for _, name := range []string{"An", "Bình", "Chi"} {
		u, err := s.Membership.RegisterUser(ctx, records.Patch{"name": name})
		require.NoError(t, err)
		_, err = s.Circulation.Borrow(ctx, circulation.BorrowRequest{BorrowerID: u.ID, BookID: book.ID})
		if err == nil {
			borrowed++
			continue
		}
		assert.ErrorIs(t, err, catalog.ErrNoCopiesAvailable)
	}
	assert.Equal(t, 1, borrowed)

	stored, err := repos.Books.Get(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Available)
	loans, err := repos.Borrows.List(ctx)
	require.NoError(t, err)
	assert.Len(t, loans, 1)
}

func TestLoadReadsExistingRecords(t *testing.T) {
	ctx := context.Background()
	s, _, baseURL := setupSession(t)
	for _, title := range []string{"Đất rừng phương Nam", "Dế Mèn phiêu lưu ký", "Tắt đèn"} {
		_, err := s.Catalog.AddBook(ctx, records.Patch{"title": title, "author": "A", "quantity": 2})
		require.NoError(t, err)
	}

	cfg := testConfig(baseURL)
	cfg.View.PageSize = 2
	fresh, err := NewSession(RemoteSources(cfg.API, nil), cfg)
	require.NoError(t, err)
	require.NoError(t, fresh.Load(ctx))

	assert.Equal(t, 3, fresh.Books.Len())
	frame := fresh.Books.Frame()
	assert.Equal(t, 2, frame.Result.TotalPages)
	require.Len(t, frame.Result.Items, 2)
	assert.Equal(t, "Dế Mèn phiêu lưu ký", frame.Result.Items[0].Title)
}

func TestNewSessionRejectsBadLanguage(t *testing.T) {
	cfg := testConfig("http://localhost:1/api/v1")
	cfg.View.SortLanguage = "not a tag!"
	_, err := NewSession(Sources{}, cfg)
	assert.Error(t, err)
}
