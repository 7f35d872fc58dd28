package repository

import (
	"context"

	"signup-verify/internal/account/domain"
)

// Repository defines persistence for accounts.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	// GetByField returns the account whose field equals value, or nil if none.
	// An empty phone number never matches.
	GetByField(ctx context.Context, field domain.Field, value string) (*domain.Account, error)
	// Create inserts a new account. A uniqueness violation is returned as *domain.ConflictError.
	Create(ctx context.Context, a *domain.Account) error
	// Update writes every mutable column of an existing account. Returns domain.ErrNotFound if the row is gone.
	Update(ctx context.Context, a *domain.Account) error
}
