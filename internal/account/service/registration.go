package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"signup-verify/internal/account/domain"
	"signup-verify/internal/logging"
	"signup-verify/internal/notify"
	"signup-verify/internal/security"
	"signup-verify/internal/telemetry"
)

const tracerName = "signup-verify/account"

// RegistrationForm holds the raw registration fields as submitted.
type RegistrationForm struct {
	Username    string
	Email       string
	PhoneNumber string
	Password1   string
	Password2   string
}

// RegistrationResult is a successful registration. DeliveryErr is a
// *domain.DeliveryError when the code could not be sent; the account exists regardless.
type RegistrationResult struct {
	Account     *domain.Account
	DeliveryErr error
}

// registrationCheck is one step of the ordered pre-creation validation. The first
// failing check decides the error the user sees.
type registrationCheck struct {
	name string
	run  func(ctx context.Context, f *RegistrationForm) error
}

// RegistrationService validates registrations, creates pending accounts, and sends their codes.
type RegistrationService struct {
	store   *AccountStore
	policy  security.PasswordPolicy
	sender  notify.Sender
	emitter telemetry.EventEmitter
	metrics *telemetry.Metrics
	log     logging.Logger
	tracer  trace.Tracer
	checks  []registrationCheck
}

// NewRegistrationService returns a RegistrationService. emitter and metrics may be nil.
func NewRegistrationService(
	store *AccountStore,
	policy security.PasswordPolicy,
	sender notify.Sender,
	emitter telemetry.EventEmitter,
	metrics *telemetry.Metrics,
	log logging.Logger,
) *RegistrationService {
	s := &RegistrationService{
		store:   store,
		policy:  policy,
		sender:  sender,
		emitter: emitter,
		metrics: metrics,
		log:     log.With("component", "registration"),
		tracer:  otel.Tracer(tracerName),
	}
	s.checks = []registrationCheck{
		{"password_match", checkPasswordsMatch},
		{"required_fields", checkRequiredFields},
		{"email_format", s.checkEmailFormat},
		{"password_strength", s.checkPasswordStrength},
		// Input-only checks above never touch storage; conflict lookups below need a well-formed email.
		{"username_unique", s.uniqueCheck(domain.FieldUsername, func(f *RegistrationForm) string { return f.Username })},
		{"email_unique", s.uniqueCheck(domain.FieldEmail, func(f *RegistrationForm) string { return f.Email })},
		{"phone_unique", s.uniqueCheck(domain.FieldPhoneNumber, func(f *RegistrationForm) string { return f.PhoneNumber })},
	}
	return s
}

// Register runs the checks in order, creates the inactive account, and sends its
// verification code. A delivery failure does not fail the registration.
func (s *RegistrationService) Register(ctx context.Context, form RegistrationForm) (*RegistrationResult, error) {
	ctx, span := s.tracer.Start(ctx, "RegistrationService.Register")
	defer span.End()

	form.Username = strings.TrimSpace(form.Username)
	form.PhoneNumber = strings.TrimSpace(form.PhoneNumber)

	for _, c := range s.checks {
		if err := c.run(ctx, &form); err != nil {
			span.SetAttributes(attribute.String("registration.failed_check", c.name))
			span.SetStatus(codes.Error, c.name)
			return nil, err
		}
	}

	account, err := s.store.CreateAccount(ctx, form.Username, form.Email, form.PhoneNumber, form.Password1, ExtraFields{})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create account")
		return nil, err
	}
	span.SetAttributes(attribute.String("account.id", account.ID))
	s.metrics.RecordRegistered(ctx)
	telemetry.EmitAsync(s.emitter, ctx, telemetry.NewEvent(telemetry.EventAccountRegistered, account.ID))
	s.log.Info(ctx, "account registered", "account_id", account.ID)

	result := &RegistrationResult{Account: account}
	if err := s.sender.Send(ctx, account); err != nil {
		result.DeliveryErr = &domain.DeliveryError{Err: err}
		span.RecordError(err)
		s.log.Warn(ctx, "verification code delivery failed", "account_id", account.ID, "error", err)
		telemetry.EmitAsync(s.emitter, ctx, telemetry.NewEvent(telemetry.EventVerificationEmailFailed, account.ID))
	}
	return result, nil
}

func checkPasswordsMatch(_ context.Context, f *RegistrationForm) error {
	if f.Password1 != f.Password2 {
		return &domain.ValidationError{Message: "passwords do not match"}
	}
	return nil
}

func checkRequiredFields(_ context.Context, f *RegistrationForm) error {
	switch {
	case f.Username == "":
		return &domain.ValidationError{Field: string(domain.FieldUsername), Message: "username is required"}
	case utf8.RuneCountInString(f.Username) > domain.MaxUsernameLength:
		return &domain.ValidationError{Field: string(domain.FieldUsername), Message: "username must be at most 150 characters"}
	case domain.NormalizeEmail(f.Email) == "":
		return &domain.ValidationError{Field: string(domain.FieldEmail), Message: "email is required"}
	case utf8.RuneCountInString(f.PhoneNumber) > domain.MaxPhoneLength:
		return &domain.ValidationError{Field: string(domain.FieldPhoneNumber), Message: "phone number must be at most 20 characters"}
	case f.Password1 == "":
		return &domain.ValidationError{Field: "password", Message: "password is required"}
	}
	return nil
}

func (s *RegistrationService) checkEmailFormat(_ context.Context, f *RegistrationForm) error {
	if s.store.emails == nil {
		return nil
	}
	return s.store.emails.Check(domain.NormalizeEmail(f.Email))
}

func (s *RegistrationService) checkPasswordStrength(_ context.Context, f *RegistrationForm) error {
	if err := s.policy.Check(f.Password1); err != nil {
		return &domain.ValidationError{Field: "password", Message: err.Error()}
	}
	return nil
}

// uniqueCheck fails with *domain.ConflictError when another account holds the value.
// It only produces the friendly message; the storage constraint still decides.
func (s *RegistrationService) uniqueCheck(field domain.Field, value func(*RegistrationForm) string) func(context.Context, *RegistrationForm) error {
	return func(ctx context.Context, f *RegistrationForm) error {
		v := value(f)
		if v == "" {
			return nil
		}
		_, err := s.store.FindByField(ctx, field, v)
		switch {
		case err == nil:
			return &domain.ConflictError{Field: field}
		case errors.Is(err, domain.ErrNotFound):
			return nil
		default:
			return fmt.Errorf("check %s uniqueness: %w", field, err)
		}
	}
}
