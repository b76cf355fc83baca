package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Authenticator gates the session API. The zero-config deployment uses
// NewTokenAuth with an empty token, which allows everything.
type Authenticator interface {
	Authenticate(r *http.Request) error
	Middleware(next http.Handler) http.Handler
}

type authError struct {
	code     string
	loginURL string
}

func (e *authError) Error() string { return e.code }

// TokenAuth accepts a single shared bearer token, from the Authorization
// header or a token query parameter (for websocket dials, where browsers
// cannot set headers).
type TokenAuth struct {
	token    string
	loginURL string
}

func NewTokenAuth(token, loginURL string) *TokenAuth {
	return &TokenAuth{token: token, loginURL: loginURL}
}

func (a *TokenAuth) Authenticate(r *http.Request) error {
	if a.token == "" {
		return nil
	}
	presented := strings.TrimSpace(r.URL.Query().Get("token"))
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		presented = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if presented == "" {
		return &authError{code: "unauthenticated", loginURL: a.loginURL}
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(a.token)) != 1 {
		return &authError{code: "invalid_token", loginURL: a.loginURL}
	}
	return nil
}

func (a *TokenAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := a.Authenticate(r); err != nil {
			ae, ok := err.(*authError)
			if !ok {
				ae = &authError{code: "unauthenticated", loginURL: a.loginURL}
			}
			respondJSON(w, http.StatusUnauthorized, errorResponse{
				Error:    "authentication required",
				Code:     ae.code,
				LoginURL: ae.loginURL,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
