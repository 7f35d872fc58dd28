package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"signup-verify/internal/account/domain"
	"signup-verify/internal/logging"
	"signup-verify/internal/telemetry"
	"signup-verify/internal/verification"
)

// Sentinel errors for verification; the handler maps them to form messages.
var (
	ErrInvalidCode   = errors.New("invalid code")
	ErrAlreadyActive = errors.New("account is already active")
)

// VerificationService checks submitted codes and activates pending accounts.
// Attempts are unlimited and codes do not expire.
type VerificationService struct {
	store   *AccountStore
	emitter telemetry.EventEmitter
	metrics *telemetry.Metrics
	log     logging.Logger
	tracer  trace.Tracer
}

// NewVerificationService returns a VerificationService. emitter and metrics may be nil.
func NewVerificationService(store *AccountStore, emitter telemetry.EventEmitter, metrics *telemetry.Metrics, log logging.Logger) *VerificationService {
	return &VerificationService{
		store:   store,
		emitter: emitter,
		metrics: metrics,
		log:     log.With("component", "verification"),
		tracer:  otel.Tracer(tracerName),
	}
}

// Lookup returns the account for the verify page, or domain.ErrNotFound.
func (s *VerificationService) Lookup(ctx context.Context, id string) (*domain.Account, error) {
	return s.store.GetByID(ctx, id)
}

// Verify activates the account when code equals its stored code exactly.
//
// Errors: domain.ErrNotFound for an unknown id; ErrAlreadyActive, returned together
// with the account, when it was activated before (nothing is compared or changed);
// ErrInvalidCode on mismatch (account unchanged).
func (s *VerificationService) Verify(ctx context.Context, id, code string) (*domain.Account, error) {
	ctx, span := s.tracer.Start(ctx, "VerificationService.Verify", trace.WithAttributes(attribute.String("account.id", id)))
	defer span.End()

	account, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.metrics.RecordVerification(ctx, telemetry.ResultNotFound)
		}
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if account.IsActive {
		s.metrics.RecordVerification(ctx, telemetry.ResultAlreadyActive)
		return account, ErrAlreadyActive
	}
	if !verification.Equal(code, account.VerificationCode) {
		s.metrics.RecordVerification(ctx, telemetry.ResultInvalidCode)
		telemetry.EmitAsync(s.emitter, ctx, telemetry.NewEvent(telemetry.EventVerificationFailed, account.ID))
		s.log.Info(ctx, "verification code mismatch", "account_id", account.ID)
		span.SetStatus(codes.Error, ErrInvalidCode.Error())
		return nil, ErrInvalidCode
	}

	account.IsActive = true
	if err := s.store.Save(ctx, account); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save account")
		return nil, err
	}
	s.metrics.RecordVerification(ctx, telemetry.ResultSuccess)
	telemetry.EmitAsync(s.emitter, ctx, telemetry.NewEvent(telemetry.EventAccountVerified, account.ID))
	s.log.Info(ctx, "account verified", "account_id", account.ID)
	return account, nil
}
