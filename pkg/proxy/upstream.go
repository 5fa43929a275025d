// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// maxErrorBody caps how much of an upstream error payload is kept.
const maxErrorBody = 64 * 1024

// UpstreamError is the failure result of a single upstream call. Status and
// Payload are zero when the upstream never produced a response.
type UpstreamError struct {
	Status  int             // Status preserves the upstream HTTP status, if any.
	Payload json.RawMessage // Payload is the raw upstream error body, if any.
	Err     error           // Err retains the original cause for logging.
}

// Error implements the error interface for UpstreamError.
func (e *UpstreamError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("upstream unavailable: %v", e.Err)
	}
	return fmt.Sprintf("upstream status %d: %v", e.Status, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As checks.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// callUpstream issues exactly one signed request to endpoint. On success the
// caller owns the returned body; every failure is an *UpstreamError and the
// body has already been closed.
func (p *Proxy) callUpstream(ctx context.Context, method, endpoint string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	target := p.upstreamURL(endpoint)
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}

	if err := p.signer.AttachCredential(req); err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &UpstreamError{Err: fmt.Errorf("perform upstream request: %w", err)}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()
		payload, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		upErr := &UpstreamError{
			Status: resp.StatusCode,
			Err:    errors.New(http.StatusText(resp.StatusCode)),
		}
		if readErr != nil {
			upErr.Err = fmt.Errorf("read upstream error body: %w", readErr)
		}
		if trimmed := bytes.TrimSpace(payload); len(trimmed) > 0 {
			upErr.Payload = trimmed
		}
		return nil, upErr
	}

	return resp, nil
}

// errorEnvelope is the caller-facing error shape: {"error": ...}.
type errorEnvelope struct {
	Error any `json:"error"`
}

type errorMessage struct {
	Message string `json:"message"`
}

// writeUpstreamError maps an upstream failure to a JSON response, mirroring
// the upstream status (500 when unknown) and payload (fallback when absent).
func writeUpstreamError(w http.ResponseWriter, err error, fallback string) int {
	status := http.StatusInternalServerError
	var payload json.RawMessage

	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		if upErr.Status != 0 {
			status = upErr.Status
		}
		payload = upErr.Payload
	}

	writeJSON(w, status, errorBody(payload, fallback))
	return status
}

// errorBody wraps payload as {"error": payload}. A payload already shaped
// like {"error": ...} is passed through unchanged; a non-JSON payload is
// carried as a string.
func errorBody(payload json.RawMessage, fallback string) []byte {
	if len(payload) == 0 {
		return mustMarshal(errorEnvelope{Error: errorMessage{Message: fallback}})
	}

	if !json.Valid(payload) {
		return mustMarshal(errorEnvelope{Error: string(payload)})
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(payload, &obj); err == nil {
		if _, ok := obj["error"]; ok {
			return payload
		}
	}

	return mustMarshal(errorEnvelope{Error: payload})
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// Only fixed shapes of strings and raw JSON reach here.
		panic(fmt.Sprintf("marshal error body: %v", err))
	}
	return b
}

// writeJSON writes a complete JSON body in one shot.
func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
