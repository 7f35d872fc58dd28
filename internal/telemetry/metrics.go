package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Verification attempt results recorded on accounts.verification_attempts.
const (
	ResultSuccess       = "success"
	ResultInvalidCode   = "invalid_code"
	ResultAlreadyActive = "already_active"
	ResultNotFound      = "not_found"
)

// Metrics holds the account counters. A nil *Metrics records nothing.
type Metrics struct {
	registered           metric.Int64Counter
	verificationAttempts metric.Int64Counter
}

// NewMetrics registers the account counters on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	registered, err := meter.Int64Counter("accounts.registered",
		metric.WithDescription("Accounts created through registration."))
	if err != nil {
		return nil, err
	}
	attempts, err := meter.Int64Counter("accounts.verification_attempts",
		metric.WithDescription("Verification code submissions by result."))
	if err != nil {
		return nil, err
	}
	return &Metrics{registered: registered, verificationAttempts: attempts}, nil
}

func (m *Metrics) RecordRegistered(ctx context.Context) {
	if m == nil {
		return
	}
	m.registered.Add(ctx, 1)
}

func (m *Metrics) RecordVerification(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.verificationAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
