package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"signup-verify/internal/account/domain"
	"signup-verify/internal/logging"
	"signup-verify/internal/security"
	"signup-verify/internal/telemetry"
)

// memAccountRepo enforces the same uniqueness rules as the accounts table.
type memAccountRepo struct {
	mu       sync.Mutex
	byID     map[string]*domain.Account
	failNext error
	updates  int
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{byID: make(map[string]*domain.Account)}
}

func (r *memAccountRepo) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.GetByField(ctx, domain.FieldID, id)
}

func (r *memAccountRepo) GetByField(ctx context.Context, field domain.Field, value string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return nil, err
	}
	if field == domain.FieldPhoneNumber && value == "" {
		return nil, nil
	}
	for _, a := range r.byID {
		if fieldValue(a, field) == value {
			c := *a
			return &c, nil
		}
	}
	return nil, nil
}

func (r *memAccountRepo) Create(ctx context.Context, a *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return err
	}
	if err := r.conflict(a); err != nil {
		return err
	}
	c := *a
	r.byID[a.ID] = &c
	return nil
}

func (r *memAccountRepo) Update(ctx context.Context, a *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return err
	}
	if _, ok := r.byID[a.ID]; !ok {
		return domain.ErrNotFound
	}
	if err := r.conflict(a); err != nil {
		return err
	}
	c := *a
	r.byID[a.ID] = &c
	r.updates++
	return nil
}

func (r *memAccountRepo) conflict(a *domain.Account) error {
	for id, other := range r.byID {
		if id == a.ID {
			continue
		}
		switch {
		case other.Username == a.Username:
			return &domain.ConflictError{Field: domain.FieldUsername}
		case other.Email == a.Email:
			return &domain.ConflictError{Field: domain.FieldEmail}
		case a.PhoneNumber != "" && other.PhoneNumber == a.PhoneNumber:
			return &domain.ConflictError{Field: domain.FieldPhoneNumber}
		}
	}
	return nil
}

func (r *memAccountRepo) takeFailure() error {
	err := r.failNext
	r.failNext = nil
	return err
}

func (r *memAccountRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

func (r *memAccountRepo) stored(id string) *domain.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.byID[id]; ok {
		c := *a
		return &c
	}
	return nil
}

func fieldValue(a *domain.Account, f domain.Field) string {
	switch f {
	case domain.FieldID:
		return a.ID
	case domain.FieldUsername:
		return a.Username
	case domain.FieldEmail:
		return a.Email
	case domain.FieldPhoneNumber:
		return a.PhoneNumber
	}
	return ""
}

// recordingSender records every account it is asked to notify.
type recordingSender struct {
	mu   sync.Mutex
	sent []domain.Account
	err  error
}

func (s *recordingSender) Send(ctx context.Context, a *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, *a)
	return s.err
}

func (s *recordingSender) last() domain.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent[len(s.sent)-1]
}

type captureEmitter struct {
	mu     sync.Mutex
	events []*telemetry.Event
}

func (c *captureEmitter) Emit(ctx context.Context, e *telemetry.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

// types waits for in-flight async emits and returns the emitted event types.
func (c *captureEmitter) types(t *testing.T) []telemetry.EventType {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := telemetry.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]telemetry.EventType, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Type)
	}
	return out
}

func containsType(types []telemetry.EventType, want telemetry.EventType) bool {
	for _, t := range types {
		if t == want {
			return true
		}
	}
	return false
}

type fixture struct {
	repo     *memAccountRepo
	store    *AccountStore
	sender   *recordingSender
	emitter  *captureEmitter
	register *RegistrationService
	verify   *VerificationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newMemAccountRepo()
	store := NewAccountStore(repo, security.NewHasher(4), NewEmailChecker(false))
	sender := &recordingSender{}
	emitter := &captureEmitter{}
	log := logging.Nop()
	return &fixture{
		repo:     repo,
		store:    store,
		sender:   sender,
		emitter:  emitter,
		register: NewRegistrationService(store, security.PasswordPolicy{}, sender, emitter, nil, log),
		verify:   NewVerificationService(store, emitter, nil, log),
	}
}

func aliceForm() RegistrationForm {
	return RegistrationForm{
		Username:    "alice",
		Email:       "alice@example.com",
		PhoneNumber: "5551234",
		Password1:   "Secret123",
		Password2:   "Secret123",
	}
}

func asValidation(t *testing.T, err error) *domain.ValidationError {
	t.Helper()
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want *domain.ValidationError", err)
	}
	return ve
}

func asConflict(t *testing.T, err error) *domain.ConflictError {
	t.Helper()
	var ce *domain.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v, want *domain.ConflictError", err)
	}
	return ce
}
