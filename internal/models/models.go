// Package models holds the record shapes shared by the storage layer,
// the registries and the checkout ledger, together with the sentinel
// errors of the error taxonomy.
package models

import (
	"errors"
	"time"
)

// Book is a single-copy library item. Available must always equal
// "no active checkout record references this ISBN".
type Book struct {
	ISBN      string `json:"isbn" validate:"required"`
	Title     string `json:"title" validate:"required"`
	Author    string `json:"author" validate:"required"`
	Available bool   `json:"available"`
}

// User is a registered library user. An empty ID on add is replaced by
// a generated sequential one.
type User struct {
	ID    string `json:"user_id" validate:"required"`
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"omitempty,email"`
}

// Checkout links a book to a user by identifier only; it owns neither
// record. ReturnedAt stays nil while the checkout is active.
type Checkout struct {
	ID           string     `json:"id" validate:"required"`
	BookISBN     string     `json:"book_isbn" validate:"required"`
	UserID       string     `json:"user_id" validate:"required"`
	CheckedOutAt time.Time  `json:"checkout_date"`
	DueAt        time.Time  `json:"due_date"`
	ReturnedAt   *time.Time `json:"return_date,omitempty"`
}

// Active reports whether the checkout has not been returned yet.
func (c Checkout) Active() bool {
	return c.ReturnedAt == nil
}

// Storage backend kinds, selected from the configuration.
const (
	StorageTypeUnknown = iota
	StorageTypePostgresql
	StorageTypeFile
	StorageTypeMemory
)

var (
	// ErrNotFound is returned when the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateID is returned when adding an entity whose identifier is taken.
	ErrDuplicateID = errors.New("identifier already exists")

	// ErrConflict is returned on an invalid state transition: checking out an
	// unavailable book, returning a book that is not checked out, or deleting
	// a record that an active checkout still references.
	ErrConflict = errors.New("conflicting state")

	// ErrValidation is returned when an input record has malformed fields.
	ErrValidation = errors.New("invalid record")

	// ErrCorruptData is returned when persisted data cannot be decoded.
	ErrCorruptData = errors.New("corrupted stored data")

	// ErrStorage is returned when the storage backend fails with an I/O error.
	ErrStorage = errors.New("storage failure")
)
