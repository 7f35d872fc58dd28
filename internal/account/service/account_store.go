package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"signup-verify/internal/account/domain"
	"signup-verify/internal/security"
	"signup-verify/internal/verification"
)

// AccountRepo is the persistence the account store needs. Lookups return (nil, nil) for no match.
type AccountRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByField(ctx context.Context, field domain.Field, value string) (*domain.Account, error)
	Create(ctx context.Context, a *domain.Account) error
	Update(ctx context.Context, a *domain.Account) error
}

// ExtraFields carries optional privilege flags. A nil pointer means "not supplied".
type ExtraFields struct {
	IsStaff     *bool
	IsActive    *bool
	IsSuperuser *bool
}

// Bool returns a pointer to v, for building ExtraFields.
func Bool(v bool) *bool { return &v }

// AccountStore creates, looks up, and saves accounts. Both creation paths share newAccount.
type AccountStore struct {
	repo    AccountRepo
	hasher  *security.Hasher
	emails  *EmailChecker
	newCode verification.Generator
	newID   func() string
	now     func() time.Time
}

// NewAccountStore returns an AccountStore. emails may be nil to skip syntax checks.
func NewAccountStore(repo AccountRepo, hasher *security.Hasher, emails *EmailChecker) *AccountStore {
	return &AccountStore{
		repo:    repo,
		hasher:  hasher,
		emails:  emails,
		newCode: verification.GenerateCode,
		newID:   uuid.NewString,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateAccount persists a new inactive account with a fresh verification code.
// extra may grant is_staff; is_active and is_superuser cannot be granted here.
func (s *AccountStore) CreateAccount(ctx context.Context, username, email, phoneNumber, password string, extra ExtraFields) (*domain.Account, error) {
	if extra.IsActive != nil && *extra.IsActive {
		return nil, &domain.ValidationError{Field: "is_active", Message: "accounts are activated only by verification"}
	}
	if extra.IsSuperuser != nil && *extra.IsSuperuser {
		return nil, &domain.ValidationError{Field: "is_superuser", Message: "superusers must be created with createsuperuser"}
	}
	a, err := s.newAccount(username, email, phoneNumber, password)
	if err != nil {
		return nil, err
	}
	a.IsStaff = extra.IsStaff != nil && *extra.IsStaff
	a.VerificationCode = s.newCode()
	return s.insert(ctx, a)
}

// CreateSuperuser persists an active staff superuser. Explicitly passing false
// for any of the three flags is rejected rather than overridden.
func (s *AccountStore) CreateSuperuser(ctx context.Context, username, email, password string, extra ExtraFields) (*domain.Account, error) {
	if extra.IsStaff != nil && !*extra.IsStaff {
		return nil, &domain.ValidationError{Field: "is_staff", Message: "superuser must have is_staff=true"}
	}
	if extra.IsSuperuser != nil && !*extra.IsSuperuser {
		return nil, &domain.ValidationError{Field: "is_superuser", Message: "superuser must have is_superuser=true"}
	}
	if extra.IsActive != nil && !*extra.IsActive {
		return nil, &domain.ValidationError{Field: "is_active", Message: "superuser must have is_active=true"}
	}
	a, err := s.newAccount(username, email, "", password)
	if err != nil {
		return nil, err
	}
	a.IsStaff = true
	a.IsSuperuser = true
	a.IsActive = true
	return s.insert(ctx, a)
}

// newAccount normalizes and checks the identifying fields and hashes the password.
func (s *AccountStore) newAccount(username, email, phoneNumber, password string) (*domain.Account, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, &domain.ValidationError{Field: string(domain.FieldEmail), Message: "email is required"}
	}
	if s.emails != nil {
		if err := s.emails.Check(email); err != nil {
			return nil, err
		}
	}
	if password == "" {
		return nil, &domain.ValidationError{Field: "password", Message: "password is required"}
	}
	now := s.now()
	a := &domain.Account{
		ID:          s.newID(),
		Username:    strings.TrimSpace(username),
		Email:       email,
		PhoneNumber: strings.TrimSpace(phoneNumber),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	// Placeholder hash; the real one is computed only once the fields validate.
	a.PasswordHash = "-"
	if err := a.Validate(); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	a.PasswordHash = hash
	return a, nil
}

func (s *AccountStore) insert(ctx context.Context, a *domain.Account) (*domain.Account, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, a); err != nil {
		var ce *domain.ConflictError
		if errors.As(err, &ce) {
			return nil, ce
		}
		return nil, fmt.Errorf("create account: %w", err)
	}
	return a, nil
}

// FindByField returns the account whose field equals value, or domain.ErrNotFound.
// Email values are normalized before lookup.
func (s *AccountStore) FindByField(ctx context.Context, field domain.Field, value string) (*domain.Account, error) {
	switch field {
	case domain.FieldEmail:
		value = domain.NormalizeEmail(value)
	case domain.FieldUsername, domain.FieldPhoneNumber:
		value = strings.TrimSpace(value)
	}
	a, err := s.repo.GetByField(ctx, field, value)
	if err != nil {
		return nil, fmt.Errorf("find account by %s: %w", field, err)
	}
	if a == nil {
		return nil, domain.ErrNotFound
	}
	return a, nil
}

// GetByID returns the account with id, or domain.ErrNotFound.
func (s *AccountStore) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if a == nil {
		return nil, domain.ErrNotFound
	}
	return a, nil
}

// Save persists mutations to an existing account.
func (s *AccountStore) Save(ctx context.Context, a *domain.Account) error {
	if err := a.Validate(); err != nil {
		return err
	}
	a.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, a); err != nil {
		var ce *domain.ConflictError
		if errors.As(err, &ce) || errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("save account: %w", err)
	}
	return nil
}
