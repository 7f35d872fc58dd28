package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"signup-verify/internal/logging"
)

type stubSessions struct {
	id string
}

func (s stubSessions) AccountID(*http.Request) (string, bool) {
	return s.id, s.id != ""
}

func TestSession_SetsAccountID(t *testing.T) {
	var got string
	var ok bool
	h := Session(stubSessions{id: "acc-1"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = GetAccountID(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !ok || got != "acc-1" {
		t.Fatalf("GetAccountID = %q, %v", got, ok)
	}
}

func TestSession_Anonymous(t *testing.T) {
	called := false
	h := Session(stubSessions{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if _, ok := GetAccountID(r.Context()); ok {
			t.Error("anonymous request should carry no account id")
		}
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Fatal("next handler not called")
	}
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("decode log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestRequestLog_RecordsStatusAndRoute(t *testing.T) {
	var buf bytes.Buffer
	r := mux.NewRouter()
	r.Use(Session(stubSessions{id: "acc-9"}), RequestLog(logging.New("debug", "json", &buf)))
	r.HandleFunc("/verify/{id}", func(w http.ResponseWriter, r *http.Request) {
		if got := GetClientIP(r.Context()); got != "203.0.113.7" {
			t.Errorf("client ip in handler = %q", got)
		}
		w.WriteHeader(http.StatusSeeOther)
		_, _ = w.Write([]byte("moved"))
	})

	req := httptest.NewRequest(http.MethodPost, "/verify/acc-9", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	r.ServeHTTP(httptest.NewRecorder(), req)

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("want 1 log line, got %d", len(lines))
	}
	l := lines[0]
	if l["level"] != "INFO" || l["status"] != float64(http.StatusSeeOther) || l["bytes"] != float64(5) {
		t.Errorf("unexpected line: %v", l)
	}
	if l["route"] != "/verify/{id}" || l["path"] != "/verify/acc-9" {
		t.Errorf("route/path = %v / %v", l["route"], l["path"])
	}
	if l["account_id"] != "acc-9" || l["client_ip"] != "203.0.113.7" {
		t.Errorf("account_id/client_ip = %v / %v", l["account_id"], l["client_ip"])
	}
}

func TestRequestLog_Levels(t *testing.T) {
	testCases := []struct {
		name      string
		path      string
		status    int
		wantLevel string
	}{
		{"quiet path", "/healthz", http.StatusOK, "DEBUG"},
		{"server error", "/boom", http.StatusInternalServerError, "ERROR"},
		{"quiet path failing", "/healthz", http.StatusServiceUnavailable, "ERROR"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := RequestLog(logging.New("debug", "json", &buf), "/healthz")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tc.path, nil))
			lines := decodeLines(t, &buf)
			if len(lines) != 1 || lines[0]["level"] != tc.wantLevel {
				t.Fatalf("lines = %v, want one %s line", lines, tc.wantLevel)
			}
		})
	}
}

func TestClientIP(t *testing.T) {
	testCases := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "1.2.3.4, 5.6.7.8"}, "9.9.9.9:1", "1.2.3.4"},
		{"real ip", map[string]string{"X-Real-IP": " 1.2.3.4 "}, "9.9.9.9:1", "1.2.3.4"},
		{"remote addr", nil, "9.9.9.9:1234", "9.9.9.9"},
		{"remote without port", nil, "9.9.9.9", "9.9.9.9"},
		{"nothing", nil, "", "unknown"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				r.Header.Set(k, v)
			}
			if got := ClientIP(r); got != tc.want {
				t.Errorf("ClientIP = %q, want %q", got, tc.want)
			}
		})
	}
}
