// Package books implements the book registry: CRUD plus search over
// book records, persisted through an injected storage backend.
package books

import (
	"context"
	"fmt"
	"sort"
	"strings"

	validator "github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
	"github.com/thoas/go-funk"

	"libris/internal/db/storage"
	"libris/internal/models"
)

const collection = "books"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// CheckoutGuard tells the registry whether a book is still referenced
// by an active checkout. The ledger implements it.
type CheckoutGuard interface {
	HasActiveForBook(ctx context.Context, isbn string) (bool, error)
}

// Registry manages book records. Every mutation is written through the
// storage backend before the call returns.
type Registry struct {
	db       storage.Storage
	guard    CheckoutGuard
	validate *validator.Validate
}

// New returns a registry over the given storage backend.
func New(db storage.Storage) *Registry {
	return &Registry{
		db:       db,
		validate: validator.New(),
	}
}

// SetCheckoutGuard wires the delete guard; without one deletes are
// not checked against active checkouts.
func (r *Registry) SetCheckoutGuard(guard CheckoutGuard) {
	r.guard = guard
}

// Add stores a new book. New books are always available.
func (r *Registry) Add(ctx context.Context, book models.Book) (models.Book, error) {
	book.Available = true

	if err := r.validate.Struct(book); err != nil {
		return models.Book{}, fmt.Errorf("%w: %s", models.ErrValidation, err)
	}

	if _, err := r.db.Get(ctx, collection, book.ISBN); err == nil {
		return models.Book{}, fmt.Errorf("book %q: %w", book.ISBN, models.ErrDuplicateID)
	}

	if err := r.put(ctx, book); err != nil {
		return models.Book{}, err
	}

	return book, nil
}

// Get returns the book with the given ISBN.
func (r *Registry) Get(ctx context.Context, isbn string) (models.Book, error) {
	record, err := r.db.Get(ctx, collection, isbn)
	if err != nil {
		return models.Book{}, fmt.Errorf("book %q: %w", isbn, err)
	}

	var book models.Book
	if err := json.Unmarshal(record, &book); err != nil {
		return models.Book{}, fmt.Errorf("book %q: %w: %s", isbn, models.ErrCorruptData, err)
	}

	return book, nil
}

// Update replaces the title and/or author of an existing book. An empty
// field keeps the current value. Availability is owned by the ledger
// and never changes here.
func (r *Registry) Update(ctx context.Context, isbn, title, author string) (models.Book, error) {
	book, err := r.Get(ctx, isbn)
	if err != nil {
		return models.Book{}, err
	}

	if title != "" {
		book.Title = title
	}
	if author != "" {
		book.Author = author
	}

	if err := r.validate.Struct(book); err != nil {
		return models.Book{}, fmt.Errorf("%w: %s", models.ErrValidation, err)
	}

	if err := r.put(ctx, book); err != nil {
		return models.Book{}, err
	}

	return book, nil
}

// Delete removes a book. A book with an active checkout cannot be
// deleted.
func (r *Registry) Delete(ctx context.Context, isbn string) error {
	if _, err := r.Get(ctx, isbn); err != nil {
		return err
	}

	if r.guard != nil {
		active, err := r.guard.HasActiveForBook(ctx, isbn)
		if err != nil {
			return err
		}
		if active {
			return fmt.Errorf("book %q is checked out: %w", isbn, models.ErrConflict)
		}
	}

	if err := r.db.Delete(ctx, collection, isbn); err != nil {
		return fmt.Errorf("book %q: %w", isbn, err)
	}

	return nil
}

// List returns all books ordered by ISBN.
func (r *Registry) List(ctx context.Context) ([]models.Book, error) {
	records, err := r.db.ListAll(ctx, collection)
	if err != nil {
		return nil, err
	}

	books := make([]models.Book, 0, len(records))
	for _, record := range records {
		var book models.Book
		if err := json.Unmarshal(record, &book); err != nil {
			return nil, fmt.Errorf("%w: %s", models.ErrCorruptData, err)
		}
		books = append(books, book)
	}

	sort.Slice(books, func(i, j int) bool { return books[i].ISBN < books[j].ISBN })

	return books, nil
}

// Search returns the books whose title, author or ISBN contains the
// keyword, case-insensitively. Each call builds a fresh result set.
func (r *Registry) Search(ctx context.Context, keyword string) ([]models.Book, error) {
	books, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	keyword = strings.ToLower(keyword)

	return funk.Filter(books, func(book models.Book) bool {
		return strings.Contains(strings.ToLower(book.Title), keyword) ||
			strings.Contains(strings.ToLower(book.Author), keyword) ||
			strings.Contains(strings.ToLower(book.ISBN), keyword)
	}).([]models.Book), nil
}

// SetAvailability persists the availability flag. Only the ledger
// should call this; it is what keeps the flag in sync with the
// checkout records.
func (r *Registry) SetAvailability(ctx context.Context, isbn string, available bool) error {
	book, err := r.Get(ctx, isbn)
	if err != nil {
		return err
	}

	book.Available = available

	return r.put(ctx, book)
}

func (r *Registry) put(ctx context.Context, book models.Book) error {
	record, err := json.Marshal(book)
	if err != nil {
		return fmt.Errorf("book %q: %w", book.ISBN, err)
	}

	return r.db.Put(ctx, collection, book.ISBN, record)
}
