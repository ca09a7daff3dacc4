// Package users implements the user registry, symmetric to the book
// registry but keyed by user ID. IDs left empty on add are generated
// sequentially, continuing from the highest existing one.
package users

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	validator "github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
	"github.com/thoas/go-funk"

	"libris/internal/db/storage"
	"libris/internal/models"
)

const collection = "users"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// CheckoutGuard tells the registry whether a user still holds active
// checkouts. The ledger implements it.
type CheckoutGuard interface {
	HasActiveForUser(ctx context.Context, userID string) (bool, error)
}

// Registry manages user records over an injected storage backend.
type Registry struct {
	db       storage.Storage
	guard    CheckoutGuard
	validate *validator.Validate
}

func New(db storage.Storage) *Registry {
	return &Registry{
		db:       db,
		validate: validator.New(),
	}
}

// SetCheckoutGuard wires the delete guard.
func (r *Registry) SetCheckoutGuard(guard CheckoutGuard) {
	r.guard = guard
}

// Add stores a new user. When the ID is empty the next sequential one
// is assigned.
func (r *Registry) Add(ctx context.Context, usr models.User) (models.User, error) {
	if usr.ID == "" {
		nextID, err := r.nextID(ctx)
		if err != nil {
			return models.User{}, err
		}
		usr.ID = nextID
	} else if _, err := r.db.Get(ctx, collection, usr.ID); err == nil {
		return models.User{}, fmt.Errorf("user %q: %w", usr.ID, models.ErrDuplicateID)
	}

	if err := r.validate.Struct(usr); err != nil {
		return models.User{}, fmt.Errorf("%w: %s", models.ErrValidation, err)
	}

	if err := r.put(ctx, usr); err != nil {
		return models.User{}, err
	}

	return usr, nil
}

// Get returns the user with the given ID.
func (r *Registry) Get(ctx context.Context, userID string) (models.User, error) {
	record, err := r.db.Get(ctx, collection, userID)
	if err != nil {
		return models.User{}, fmt.Errorf("user %q: %w", userID, err)
	}

	var usr models.User
	if err := json.Unmarshal(record, &usr); err != nil {
		return models.User{}, fmt.Errorf("user %q: %w: %s", userID, models.ErrCorruptData, err)
	}

	return usr, nil
}

// Update replaces the name and/or email of an existing user. An empty
// field keeps the current value.
func (r *Registry) Update(ctx context.Context, userID, name, email string) (models.User, error) {
	usr, err := r.Get(ctx, userID)
	if err != nil {
		return models.User{}, err
	}

	if name != "" {
		usr.Name = name
	}
	if email != "" {
		usr.Email = email
	}

	if err := r.validate.Struct(usr); err != nil {
		return models.User{}, fmt.Errorf("%w: %s", models.ErrValidation, err)
	}

	if err := r.put(ctx, usr); err != nil {
		return models.User{}, err
	}

	return usr, nil
}

// Delete removes a user. A user holding active checkouts cannot be
// deleted.
func (r *Registry) Delete(ctx context.Context, userID string) error {
	if _, err := r.Get(ctx, userID); err != nil {
		return err
	}

	if r.guard != nil {
		active, err := r.guard.HasActiveForUser(ctx, userID)
		if err != nil {
			return err
		}
		if active {
			return fmt.Errorf("user %q holds checked out books: %w", userID, models.ErrConflict)
		}
	}

	if err := r.db.Delete(ctx, collection, userID); err != nil {
		return fmt.Errorf("user %q: %w", userID, err)
	}

	return nil
}

// List returns all users ordered by ID.
func (r *Registry) List(ctx context.Context) ([]models.User, error) {
	records, err := r.db.ListAll(ctx, collection)
	if err != nil {
		return nil, err
	}

	result := make([]models.User, 0, len(records))
	for _, record := range records {
		var usr models.User
		if err := json.Unmarshal(record, &usr); err != nil {
			return nil, fmt.Errorf("%w: %s", models.ErrCorruptData, err)
		}
		result = append(result, usr)
	}

	sort.Slice(result, func(i, j int) bool {
		left, errLeft := strconv.Atoi(result[i].ID)
		right, errRight := strconv.Atoi(result[j].ID)
		if errLeft == nil && errRight == nil {
			return left < right
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// Search returns the users whose name or ID contains the keyword,
// case-insensitively.
func (r *Registry) Search(ctx context.Context, keyword string) ([]models.User, error) {
	result, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	keyword = strings.ToLower(keyword)

	return funk.Filter(result, func(usr models.User) bool {
		return strings.Contains(strings.ToLower(usr.Name), keyword) ||
			strings.Contains(strings.ToLower(usr.ID), keyword)
	}).([]models.User), nil
}

// nextID continues the sequence after the highest numeric ID in use.
func (r *Registry) nextID(ctx context.Context) (string, error) {
	existing, err := r.List(ctx)
	if err != nil {
		return "", err
	}

	maxID := 0
	for _, usr := range existing {
		if id, err := strconv.Atoi(usr.ID); err == nil && id > maxID {
			maxID = id
		}
	}

	return strconv.Itoa(maxID + 1), nil
}

func (r *Registry) put(ctx context.Context, usr models.User) error {
	record, err := json.Marshal(usr)
	if err != nil {
		return fmt.Errorf("user %q: %w", usr.ID, err)
	}

	return r.db.Put(ctx, collection, usr.ID, record)
}
