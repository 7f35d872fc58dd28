// Package session manages the signed session cookie and its flash messages.
package session

import (
	"net/http"
	"time"

	"github.com/gorilla/sessions"
)

const (
	cookieName   = "signup_session"
	accountIDKey = "account_id"
)

// FlashKind classifies a flash message for rendering.
type FlashKind string

const (
	FlashSuccess FlashKind = "success"
	FlashWarning FlashKind = "warning"
	FlashError   FlashKind = "error"
)

var flashKinds = []FlashKind{FlashSuccess, FlashWarning, FlashError}

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Kind    FlashKind
	Message string
}

// Options configures the session cookie.
type Options struct {
	MaxAge time.Duration
	Secure bool
}

// Manager reads and writes the session cookie.
type Manager struct {
	store sessions.Store
}

// NewManager returns a Manager whose cookies are signed with secret.
func NewManager(secret []byte, opts Options) *Manager {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(opts.MaxAge / time.Second),
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Manager{store: store}
}

// get returns the request's session. A cookie that fails verification yields a
// fresh session rather than an error, so a rotated secret logs users out.
func (m *Manager) get(r *http.Request) *sessions.Session {
	s, err := m.store.Get(r, cookieName)
	if err != nil && s == nil {
		s = sessions.NewSession(m.store, cookieName)
	}
	return s
}

// Login binds the session to accountID.
func (m *Manager) Login(w http.ResponseWriter, r *http.Request, accountID string) error {
	s := m.get(r)
	s.Values[accountIDKey] = accountID
	return s.Save(r, w)
}

// AccountID returns the signed-in account id, if any.
func (m *Manager) AccountID(r *http.Request) (string, bool) {
	id, ok := m.get(r).Values[accountIDKey].(string)
	return id, ok && id != ""
}

// AddFlash queues a message for the next page.
func (m *Manager) AddFlash(w http.ResponseWriter, r *http.Request, kind FlashKind, message string) error {
	s := m.get(r)
	s.AddFlash(message, flashKey(kind))
	return s.Save(r, w)
}

// Flashes pops every queued message, success first. The cookie is rewritten only when
// something was popped.
func (m *Manager) Flashes(w http.ResponseWriter, r *http.Request) []Flash {
	s := m.get(r)
	var out []Flash
	for _, kind := range flashKinds {
		for _, v := range s.Flashes(flashKey(kind)) {
			if msg, ok := v.(string); ok {
				out = append(out, Flash{Kind: kind, Message: msg})
			}
		}
	}
	if len(out) > 0 {
		_ = s.Save(r, w)
	}
	return out
}

func flashKey(kind FlashKind) string {
	return "_flash_" + string(kind)
}
