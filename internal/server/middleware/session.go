package middleware

import "net/http"

// AccountIDReader resolves the signed-in account from the request cookie.
type AccountIDReader interface {
	AccountID(r *http.Request) (string, bool)
}

// Session puts the signed-in account id, if any, on the request context.
// An invalid or missing cookie leaves the request anonymous.
func Session(sessions AccountIDReader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id, ok := sessions.AccountID(r); ok {
				r = r.WithContext(WithAccountID(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}
