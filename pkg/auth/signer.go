// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package auth

import (
	"errors"
	"net/http"
)

const (
	HeaderAuthorization = "Authorization"
	HeaderContentType   = "Content-Type"
	bearerPrefix        = "Bearer "
)

// Signer injects the server-side upstream credential into outbound requests.
type Signer struct {
	Key string
}

// NewSigner constructs a signer for the given upstream API key.
func NewSigner(key string) *Signer {
	return &Signer{Key: key}
}

// AttachCredential mutates the request so the upstream sees only the proxy's
// own key, whatever the caller presented.
func (s *Signer) AttachCredential(req *http.Request) error {
	if s.Key == "" {
		return errors.New("signer key must be set")
	}

	req.Header.Del(HeaderAuthorization)
	req.Header.Set(HeaderAuthorization, bearerPrefix+s.Key)
	req.Header.Set(HeaderContentType, "application/json")

	return nil
}
