// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthenticatorDisabledAllowsEverything(t *testing.T) {
	a := NewAuthenticator("", "")

	if a.Enabled() {
		t.Fatal("authenticator without token must be disabled")
	}

	for _, h := range []http.Header{
		{},
		{"Authorization": {"Bearer anything"}},
		{"Authorization": {"Basic Zm9vOmJhcg=="}},
		{"X-Custom-Auth": {"wrong"}},
	} {
		if !a.Allow(h) {
			t.Errorf("disabled authenticator rejected %v", h)
		}
	}
}

func TestAuthenticatorAllow(t *testing.T) {
	const secret = "s3cret"

	tests := []struct {
		name   string
		header string
		h      http.Header
		want   bool
	}{
		{name: "bearer match", h: http.Header{"Authorization": {"Bearer s3cret"}}, want: true},
		{name: "bearer mismatch", h: http.Header{"Authorization": {"Bearer other"}}, want: false},
		{name: "bearer lowercase scheme", h: http.Header{"Authorization": {"bearer s3cret"}}, want: false},
		{name: "bearer double space", h: http.Header{"Authorization": {"Bearer  s3cret"}}, want: false},
		{name: "bearer suffix", h: http.Header{"Authorization": {"Bearer s3cret "}}, want: false},
		{name: "custom header match", h: http.Header{"X-Custom-Auth": {"s3cret"}}, want: true},
		{name: "custom header mismatch", h: http.Header{"X-Custom-Auth": {"S3CRET"}}, want: false},
		{name: "basic falls through to custom header", h: http.Header{
			"Authorization": {"Basic Zm9vOmJhcg=="},
			"X-Custom-Auth": {"s3cret"},
		}, want: true},
		{name: "wrong bearer falls through to custom header", h: http.Header{
			"Authorization": {"Bearer nope"},
			"X-Custom-Auth": {"s3cret"},
		}, want: true},
		{name: "configured header", header: "X-Proxy-Token", h: http.Header{"X-Proxy-Token": {"s3cret"}}, want: true},
		{name: "default header ignored when renamed", header: "X-Proxy-Token", h: http.Header{"X-Custom-Auth": {"s3cret"}}, want: false},
		{name: "empty custom header", h: http.Header{"X-Custom-Auth": {""}}, want: false},
		{name: "no credentials", h: http.Header{}, want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := NewAuthenticator(secret, tc.header)
			if got := a.Allow(tc.h); got != tc.want {
				t.Fatalf("Allow(%v) = %v, want %v", tc.h, got, tc.want)
			}
		})
	}
}

func TestAuthenticatorHeaderNameIsCaseInsensitive(t *testing.T) {
	a := NewAuthenticator("s3cret", "x-PROXY-token")

	req := httptest.NewRequest(http.MethodGet, "http://proxy/v1/models", nil)
	req.Header.Set("X-Proxy-Token", "s3cret")

	if !a.Allow(req.Header) {
		t.Fatal("expected header name match regardless of case")
	}
	if a.Header() != "X-Proxy-Token" {
		t.Errorf("unexpected canonical header: %q", a.Header())
	}
}

func TestAuthenticatorMiddleware(t *testing.T) {
	a := NewAuthenticator("s3cret", "")

	var calls int
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNoContent)
	})
	handler := a.Middleware(next)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://proxy/v1/models", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if body := rec.Body.String(); body != `{"error":"Unauthorized"}` {
		t.Fatalf("unexpected body: %s", body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type: %s", ct)
	}
	if calls != 0 {
		t.Fatalf("next handler must not run on rejection")
	}

	req := httptest.NewRequest(http.MethodGet, "http://proxy/v1/models", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent || calls != 1 {
		t.Fatalf("expected pass-through, got status %d calls %d", rec.Code, calls)
	}
}
