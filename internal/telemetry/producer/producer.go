// Package producer publishes account events to an external stream (Kafka).
package producer

import (
	"context"

	"signup-verify/internal/telemetry"
)

// Producer emits account events. Callers use it best-effort: log and ignore errors.
type Producer interface {
	// Emit sends a single event. Implementations may block briefly; call via telemetry.EmitAsync.
	Emit(ctx context.Context, event *telemetry.Event) error
	// Close releases resources (e.g. Kafka writer). Safe to call if already closed.
	Close() error
}
