package checkouts

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libris/internal/books"
	"libris/internal/db/jsondb"
	"libris/internal/db/memorystorage"
	"libris/internal/db/storage"
	"libris/internal/models"
	"libris/internal/users"
)

type fixture struct {
	books  *books.Registry
	users  *users.Registry
	ledger *Ledger
}

// newFixture wires real registries and a ledger over the given storage,
// with a deterministic clock advancing one minute per call.
func newFixture(t *testing.T, db storage.Storage) *fixture {
	t.Helper()

	bookRegistry := books.New(db)
	userRegistry := users.New(db)
	ledger := New(db, bookRegistry, userRegistry)
	bookRegistry.SetCheckoutGuard(ledger)
	userRegistry.SetCheckoutGuard(ledger)

	current := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	ledger.now = func() time.Time {
		current = current.Add(time.Minute)
		return current
	}

	return &fixture{books: bookRegistry, users: userRegistry, ledger: ledger}
}

func newMemoryFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := memorystorage.New()
	require.NoError(t, err)

	return newFixture(t, db)
}

// requireInvariant asserts that for every book the availability flag
// equals "no active checkout references it".
func requireInvariant(t *testing.T, f *fixture) {
	t.Helper()

	active, err := f.ledger.ListActive(context.Background())
	require.NoError(t, err)

	activeISBNs := map[string]bool{}
	for _, record := range active {
		activeISBNs[record.BookISBN] = true
	}

	all, err := f.books.List(context.Background())
	require.NoError(t, err)
	for _, book := range all {
		assert.Equal(t, !activeISBNs[book.ISBN], book.Available,
			"availability of %q must mirror its active checkout", book.ISBN)
	}
}

func TestCheckoutAndReturnScenario(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()

	_, err := f.books.Add(ctx, models.Book{ISBN: "978-1", Title: "Dune", Author: "Herbert"})
	require.NoError(t, err)
	_, err = f.users.Add(ctx, models.User{ID: "u1", Name: "Ann"})
	require.NoError(t, err)
	_, err = f.users.Add(ctx, models.User{ID: "u2", Name: "Bob"})
	require.NoError(t, err)

	record, err := f.ledger.Checkout(ctx, "978-1", "u1")
	require.NoError(t, err)
	assert.Equal(t, LoanPeriod, record.DueAt.Sub(record.CheckedOutAt))
	requireInvariant(t, f)

	book, err := f.books.Get(ctx, "978-1")
	require.NoError(t, err)
	assert.False(t, book.Available)

	_, err = f.ledger.Checkout(ctx, "978-1", "u2")
	assert.ErrorIs(t, err, models.ErrConflict, "a checked out book cannot be checked out again")

	active, err := f.ledger.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1, "a failed checkout should leave the record set unchanged")

	returned, err := f.ledger.Return(ctx, "978-1")
	require.NoError(t, err)
	require.NotNil(t, returned.ReturnedAt)
	requireInvariant(t, f)

	_, err = f.ledger.Checkout(ctx, "978-1", "u2")
	assert.NoError(t, err, "a returned book can be checked out by another user")
	requireInvariant(t, f)
}

func TestCheckoutPreconditions(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()

	_, err := f.books.Add(ctx, models.Book{ISBN: "978-1", Title: "Dune", Author: "Herbert"})
	require.NoError(t, err)
	_, err = f.users.Add(ctx, models.User{ID: "u1", Name: "Ann"})
	require.NoError(t, err)

	_, err = f.ledger.Checkout(ctx, "unexistent", "u1")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = f.ledger.Checkout(ctx, "978-1", "unexistent")
	assert.ErrorIs(t, err, models.ErrNotFound)

	active, err := f.ledger.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active, "failed preconditions should not create records")
}

func TestReturnPreconditions(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()

	_, err := f.books.Add(ctx, models.Book{ISBN: "978-1", Title: "Dune", Author: "Herbert"})
	require.NoError(t, err)
	_, err = f.users.Add(ctx, models.User{ID: "u1", Name: "Ann"})
	require.NoError(t, err)

	_, err = f.ledger.Return(ctx, "unexistent")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = f.ledger.Return(ctx, "978-1")
	assert.ErrorIs(t, err, models.ErrConflict, "returning a book that is not checked out must fail")

	_, err = f.ledger.Checkout(ctx, "978-1", "u1")
	require.NoError(t, err)
	_, err = f.ledger.Return(ctx, "978-1")
	require.NoError(t, err)

	_, err = f.ledger.Return(ctx, "978-1")
	assert.ErrorIs(t, err, models.ErrConflict, "the second of two returns in a row must fail")
}

func TestHistories(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()

	for _, book := range []models.Book{
		{ISBN: "978-1", Title: "Dune", Author: "Herbert"},
		{ISBN: "978-2", Title: "Neuromancer", Author: "Gibson"},
	} {
		_, err := f.books.Add(ctx, book)
		require.NoError(t, err)
	}
	_, err := f.users.Add(ctx, models.User{ID: "u1", Name: "Ann"})
	require.NoError(t, err)

	// u1 borrows 978-1 twice and 978-2 once, in that order.
	_, err = f.ledger.Checkout(ctx, "978-1", "u1")
	require.NoError(t, err)
	_, err = f.ledger.Return(ctx, "978-1")
	require.NoError(t, err)
	_, err = f.ledger.Checkout(ctx, "978-2", "u1")
	require.NoError(t, err)
	_, err = f.ledger.Checkout(ctx, "978-1", "u1")
	require.NoError(t, err)

	forBook, err := f.ledger.HistoryForBook(ctx, "978-1")
	require.NoError(t, err)
	require.Len(t, forBook, 2, "history should include returned records")
	assert.True(t, forBook[0].CheckedOutAt.Before(forBook[1].CheckedOutAt),
		"history should be ascending by checkout time")
	assert.False(t, forBook[0].Active())
	assert.True(t, forBook[1].Active())

	forUser, err := f.ledger.HistoryForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, forUser, 3)
	for i := 1; i < len(forUser); i++ {
		assert.True(t, forUser[i-1].CheckedOutAt.Before(forUser[i].CheckedOutAt))
	}

	active, err := f.ledger.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestDeleteGuards(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()

	_, err := f.books.Add(ctx, models.Book{ISBN: "978-1", Title: "Dune", Author: "Herbert"})
	require.NoError(t, err)
	_, err = f.users.Add(ctx, models.User{ID: "u1", Name: "Ann"})
	require.NoError(t, err)

	_, err = f.ledger.Checkout(ctx, "978-1", "u1")
	require.NoError(t, err)

	err = f.books.Delete(ctx, "978-1")
	assert.ErrorIs(t, err, models.ErrConflict)

	err = f.users.Delete(ctx, "u1")
	assert.ErrorIs(t, err, models.ErrConflict)

	_, err = f.ledger.Return(ctx, "978-1")
	require.NoError(t, err)

	assert.NoError(t, f.users.Delete(ctx, "u1"))
	assert.NoError(t, f.books.Delete(ctx, "978-1"))
}

func TestRoundTripThroughFile(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "library.json")
	ctx := context.Background()

	db, err := jsondb.New(fileName)
	require.NoError(t, err)

	f := newFixture(t, db)

	_, err = f.books.Add(ctx, models.Book{ISBN: "978-1", Title: "Dune", Author: "Herbert"})
	require.NoError(t, err)
	_, err = f.books.Add(ctx, models.Book{ISBN: "978-2", Title: "Neuromancer", Author: "Gibson"})
	require.NoError(t, err)
	_, err = f.users.Add(ctx, models.User{ID: "u1", Name: "Ann", Email: "ann@example.com"})
	require.NoError(t, err)
	_, err = f.ledger.Checkout(ctx, "978-1", "u1")
	require.NoError(t, err)

	booksBefore, err := f.books.List(ctx)
	require.NoError(t, err)
	usersBefore, err := f.users.List(ctx)
	require.NoError(t, err)
	checkoutsBefore, err := f.ledger.HistoryForUser(ctx, "u1")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	reopened, err := jsondb.New(fileName)
	require.NoError(t, err)
	g := newFixture(t, reopened)

	booksAfter, err := g.books.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, booksBefore, booksAfter, "book records should round-trip field-for-field")

	usersAfter, err := g.users.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, usersBefore, usersAfter)

	checkoutsAfter, err := g.ledger.HistoryForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, checkoutsBefore, checkoutsAfter)

	requireInvariant(t, g)
}
