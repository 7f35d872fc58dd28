package otel

import (
	"context"
	"sort"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"signup-verify/internal/telemetry"
)

// instrumentationName is the OTel logger scope for account events.
const instrumentationName = "signup-verify.accounts"

// recordEmitter is the part of otellog.Logger the emitter needs.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewEventEmitter returns an EventEmitter that sends events as OTel log records via the given LoggerProvider.
// If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return telemetry.Nop{}
	}
	return NewEventEmitterWithLogger(provider.Logger(instrumentationName))
}

// NewEventEmitterWithLogger returns an EventEmitter that writes records to l.
func NewEventEmitterWithLogger(l recordEmitter) telemetry.EventEmitter {
	if l == nil {
		return telemetry.Nop{}
	}
	return &otelEmitter{logger: l}
}

type otelEmitter struct {
	logger recordEmitter
}

// Emit converts the event to an OTel log record: the body is the event type and
// every field becomes an attribute. Attribute keys from Event.Attributes are emitted in sorted order.
func (e *otelEmitter) Emit(ctx context.Context, event *telemetry.Event) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	rec.SetTimestamp(event.CreatedAt)
	if rec.Timestamp().IsZero() {
		rec.SetTimestamp(time.Now().UTC())
	}
	rec.SetSeverity(severity(event.Type))
	rec.SetBody(otellog.StringValue(string(event.Type)))
	rec.AddAttributes(otellog.String("event_type", string(event.Type)))
	if event.AccountID != "" {
		rec.AddAttributes(otellog.String("account_id", event.AccountID))
	}
	if event.Source != "" {
		rec.AddAttributes(otellog.String("source", event.Source))
	}
	keys := make([]string, 0, len(event.Attributes))
	for k := range event.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		rec.AddAttributes(otellog.String(k, event.Attributes[k]))
	}
	e.logger.Emit(ctx, rec)
	return nil
}

func severity(t telemetry.EventType) otellog.Severity {
	switch t {
	case telemetry.EventVerificationEmailFailed:
		return otellog.SeverityWarn
	default:
		return otellog.SeverityInfo
	}
}
