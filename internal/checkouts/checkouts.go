// Package checkouts implements the checkout ledger. It drives the
// per-book state machine Available → CheckedOut → Available, creating
// and closing checkout records and keeping the book availability flag
// in sync with them.
//
// The ledger holds identifiers only; books and users stay owned by
// their registries, which are queried before any mutation.
package checkouts

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/thoas/go-funk"

	"libris/internal/db/storage"
	"libris/internal/models"
)

const collection = "checkouts"

// LoanPeriod is how long a checked out book may be kept.
const LoanPeriod = 14 * 24 * time.Hour

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type bookKeeper interface {
	Get(ctx context.Context, isbn string) (models.Book, error)
	SetAvailability(ctx context.Context, isbn string, available bool) error
}

type userKeeper interface {
	Get(ctx context.Context, userID string) (models.User, error)
}

// Ledger orchestrates checkout and return across the two registries
// and its own record collection.
type Ledger struct {
	db    storage.Storage
	books bookKeeper
	users userKeeper
	now   func() time.Time
}

// New returns a ledger over the given storage backend and registries.
func New(db storage.Storage, books bookKeeper, users userKeeper) *Ledger {
	return &Ledger{
		db:    db,
		books: books,
		users: users,
		now:   time.Now,
	}
}

// Checkout lends the book to the user. It fails when the book or the
// user does not exist, or when the book is already checked out. On
// success the new record and the flipped availability flag are both
// persisted before returning.
func (l *Ledger) Checkout(ctx context.Context, isbn, userID string) (models.Checkout, error) {
	book, err := l.books.Get(ctx, isbn)
	if err != nil {
		return models.Checkout{}, err
	}

	if _, err := l.users.Get(ctx, userID); err != nil {
		return models.Checkout{}, err
	}

	if !book.Available {
		return models.Checkout{}, fmt.Errorf("book %q is already checked out: %w", isbn, models.ErrConflict)
	}

	now := l.now()
	record := models.Checkout{
		ID:           uuid.NewString(),
		BookISBN:     isbn,
		UserID:       userID,
		CheckedOutAt: now,
		DueAt:        now.Add(LoanPeriod),
	}

	if err := l.put(ctx, record); err != nil {
		return models.Checkout{}, err
	}

	if err := l.books.SetAvailability(ctx, isbn, false); err != nil {
		// Undo the half-written record so a failed flip leaves no
		// observable state behind.
		_ = l.db.Delete(ctx, collection, record.ID)
		return models.Checkout{}, err
	}

	return record, nil
}

// Return closes the active checkout for the book. It fails when the
// book does not exist or has no active checkout.
func (l *Ledger) Return(ctx context.Context, isbn string) (models.Checkout, error) {
	if _, err := l.books.Get(ctx, isbn); err != nil {
		return models.Checkout{}, err
	}

	record, err := l.activeForBook(ctx, isbn)
	if err != nil {
		return models.Checkout{}, err
	}
	if record == nil {
		return models.Checkout{}, fmt.Errorf("book %q is not checked out: %w", isbn, models.ErrConflict)
	}

	returnedAt := l.now()
	record.ReturnedAt = &returnedAt

	if err := l.put(ctx, *record); err != nil {
		return models.Checkout{}, err
	}

	if err := l.books.SetAvailability(ctx, isbn, true); err != nil {
		record.ReturnedAt = nil
		_ = l.put(ctx, *record)
		return models.Checkout{}, err
	}

	return *record, nil
}

// ListActive returns all unreturned checkouts, oldest first.
func (l *Ledger) ListActive(ctx context.Context) ([]models.Checkout, error) {
	records, err := l.list(ctx)
	if err != nil {
		return nil, err
	}

	return funk.Filter(records, func(record models.Checkout) bool {
		return record.Active()
	}).([]models.Checkout), nil
}

// HistoryForUser returns every checkout, active or returned, made by
// the user, ascending by checkout time.
func (l *Ledger) HistoryForUser(ctx context.Context, userID string) ([]models.Checkout, error) {
	records, err := l.list(ctx)
	if err != nil {
		return nil, err
	}

	return funk.Filter(records, func(record models.Checkout) bool {
		return record.UserID == userID
	}).([]models.Checkout), nil
}

// HistoryForBook returns every checkout of the book, ascending by
// checkout time.
func (l *Ledger) HistoryForBook(ctx context.Context, isbn string) ([]models.Checkout, error) {
	records, err := l.list(ctx)
	if err != nil {
		return nil, err
	}

	return funk.Filter(records, func(record models.Checkout) bool {
		return record.BookISBN == isbn
	}).([]models.Checkout), nil
}

// HasActiveForBook reports whether the book has an unreturned checkout.
// It backs the book registry's delete guard.
func (l *Ledger) HasActiveForBook(ctx context.Context, isbn string) (bool, error) {
	record, err := l.activeForBook(ctx, isbn)
	if err != nil {
		return false, err
	}

	return record != nil, nil
}

// HasActiveForUser reports whether the user holds any unreturned
// checkout. It backs the user registry's delete guard.
func (l *Ledger) HasActiveForUser(ctx context.Context, userID string) (bool, error) {
	records, err := l.ListActive(ctx)
	if err != nil {
		return false, err
	}

	return funk.Contains(records, func(record models.Checkout) bool {
		return record.UserID == userID
	}), nil
}

func (l *Ledger) activeForBook(ctx context.Context, isbn string) (*models.Checkout, error) {
	records, err := l.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	for _, record := range records {
		if record.BookISBN == isbn {
			return &record, nil
		}
	}

	return nil, nil
}

// list loads every checkout record sorted ascending by checkout time.
func (l *Ledger) list(ctx context.Context) ([]models.Checkout, error) {
	raw, err := l.db.ListAll(ctx, collection)
	if err != nil {
		return nil, err
	}

	records := make([]models.Checkout, 0, len(raw))
	for _, data := range raw {
		var record models.Checkout
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, fmt.Errorf("%w: %s", models.ErrCorruptData, err)
		}
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CheckedOutAt.Before(records[j].CheckedOutAt)
	})

	return records, nil
}

func (l *Ledger) put(ctx context.Context, record models.Checkout) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("checkout %q: %w", record.ID, err)
	}

	return l.db.Put(ctx, collection, record.ID, data)
}
