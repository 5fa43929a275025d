// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// DefaultHeader carries the shared secret for clients that cannot set Authorization.
const DefaultHeader = "x-custom-auth"

var unauthorizedBody = []byte(`{"error":"Unauthorized"}`)

// Authenticator gates inbound requests on a pre-shared secret. A zero token
// disables the check entirely.
type Authenticator struct {
	token  string
	header string
}

// NewAuthenticator returns an authenticator for token. Header names the
// secondary credential header and defaults to DefaultHeader.
func NewAuthenticator(token, header string) *Authenticator {
	header = strings.TrimSpace(header)
	if header == "" {
		header = DefaultHeader
	}
	return &Authenticator{
		token:  token,
		header: http.CanonicalHeaderKey(header),
	}
}

// Enabled reports whether a shared secret is configured.
func (a *Authenticator) Enabled() bool {
	return a.token != ""
}

// Header returns the canonical name of the secondary credential header.
func (a *Authenticator) Header() string {
	return a.header
}

// Allow reports whether the headers carry the shared secret, either as a
// bearer token or in the custom header.
func (a *Authenticator) Allow(h http.Header) bool {
	if !a.Enabled() {
		return true
	}

	if authz := h.Get(HeaderAuthorization); strings.HasPrefix(authz, bearerPrefix) {
		if a.matches(authz[len(bearerPrefix):]) {
			return true
		}
	}

	if values := h.Values(a.header); len(values) > 0 {
		return a.matches(values[0])
	}

	return false
}

func (a *Authenticator) matches(candidate string) bool {
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(a.token)) == 1
}

// Middleware rejects unauthenticated requests with 401 before next runs, so
// no upstream call is ever made on their behalf.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.Allow(r.Header) {
			next.ServeHTTP(w, r)
			return
		}

		zerolog.Ctx(r.Context()).Debug().Msg("rejected unauthenticated request")

		w.Header().Set(HeaderContentType, "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write(unauthorizedBody)
	})
}
