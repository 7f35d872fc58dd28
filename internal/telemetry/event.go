package telemetry

import "time"

// EventType names an account lifecycle event.
type EventType string

const (
	EventAccountRegistered       EventType = "account_registered"
	EventVerificationEmailFailed EventType = "verification_email_failed"
	EventAccountVerified         EventType = "account_verified"
	EventVerificationFailed      EventType = "verification_failed"
)

// Source is the default Event.Source for events raised by this service.
const Source = "signup-verify"

// Event is an operational account event. It never carries passwords or codes.
type Event struct {
	Type       EventType         `json:"event_type"`
	AccountID  string            `json:"account_id"`
	Source     string            `json:"source"`
	Attributes map[string]string `json:"attributes,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// NewEvent builds an Event stamped with the current UTC time. attrs are
// key-value pairs; a trailing key without a value is dropped.
func NewEvent(typ EventType, accountID string, attrs ...string) *Event {
	e := &Event{
		Type:      typ,
		AccountID: accountID,
		Source:    Source,
		CreatedAt: time.Now().UTC(),
	}
	if len(attrs) >= 2 {
		e.Attributes = make(map[string]string, len(attrs)/2)
		for i := 0; i+1 < len(attrs); i += 2 {
			e.Attributes[attrs[i]] = attrs[i+1]
		}
	}
	return e
}
