// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"
)

const (
	msgModelsFailed = "Failed to fetch models"
	msgChatFailed   = "Failed to process chat completion"
)

var healthBody = mustMarshal(map[string]string{
	"status":  "ok",
	"service": ServiceName,
})

// handleHealth answers liveness probes without touching the upstream.
func (p *Proxy) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthBody)
}

// handleModels relays GET /v1/models from the upstream.
func (p *Proxy) handleModels(w http.ResponseWriter, r *http.Request) {
	event := zerolog.Ctx(r.Context())

	ctx, cancel := p.withTimeout(r.Context())
	defer cancel()

	resp, err := p.callUpstream(ctx, http.MethodGet, modelsPath, nil)
	if err != nil {
		status := writeUpstreamError(w, err, msgModelsFailed)
		event.Error().Err(err).Int("status", status).Msg("error fetching models")
		return
	}
	defer resp.Body.Close()

	if err := relayBuffered(w, resp); err != nil {
		status := writeUpstreamError(w, &UpstreamError{Err: err}, msgModelsFailed)
		event.Error().Err(err).Int("status", status).Msg("error fetching models")
	}
}

// handleChatCompletions relays POST /v1/chat/completions, streaming the
// response when the caller asked for it.
func (p *Proxy) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	event := zerolog.Ctx(r.Context())

	body, err := p.readBody(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody(nil, "Request body too large"))
		} else {
			writeJSON(w, http.StatusBadRequest, errorBody(nil, "Failed to read request body"))
		}
		event.Warn().Err(err).Msg("rejected chat completion body")
		return
	}

	stream, err := wantsStream(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(nil, "Invalid JSON body"))
		event.Warn().Err(err).Msg("rejected chat completion body")
		return
	}

	if stream {
		p.streamChatCompletion(w, r, body)
		return
	}

	ctx, cancel := p.withTimeout(r.Context())
	defer cancel()

	resp, err := p.callUpstream(ctx, http.MethodPost, chatCompletionsPath, body)
	if err != nil {
		status := writeUpstreamError(w, err, msgChatFailed)
		event.Error().Err(err).Int("status", status).Msg("error in chat completions")
		return
	}
	defer resp.Body.Close()

	if err := relayBuffered(w, resp); err != nil {
		status := writeUpstreamError(w, &UpstreamError{Err: err}, msgChatFailed)
		event.Error().Err(err).Int("status", status).Msg("error in chat completions")
	}
}

// streamChatCompletion keeps the upstream call bound to the caller's context
// so a caller disconnect tears down the upstream stream too.
func (p *Proxy) streamChatCompletion(w http.ResponseWriter, r *http.Request, body []byte) {
	event := zerolog.Ctx(r.Context())

	resp, err := p.callUpstream(r.Context(), http.MethodPost, chatCompletionsPath, body)
	if err != nil {
		status := writeUpstreamError(w, err, msgChatFailed)
		event.Error().Err(err).Int("status", status).Msg("error in chat completions")
		return
	}
	defer resp.Body.Close()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(resp.StatusCode)

	n, err := relay(w, resp.Body)
	switch {
	case err == nil:
		event.Debug().Int64("bytes", n).Msg("event stream completed")
	case errors.Is(err, errCallerGone) || r.Context().Err() != nil:
		event.Info().Err(err).Int64("bytes", n).Msg("caller closed event stream")
	default:
		event.Warn().Err(err).Int64("bytes", n).Msg("upstream event stream dropped")
		// Headers are gone already; the only signal left is an abrupt close.
		panic(http.ErrAbortHandler)
	}
}

// readBody reads the inbound body up to the configured limit. An empty body
// is treated as an empty JSON object.
func (p *Proxy) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	var src io.Reader = r.Body
	if p.cfg.MaxBodyBytes > 0 {
		src = http.MaxBytesReader(w, r.Body, p.cfg.MaxBodyBytes)
	}

	body, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return []byte("{}"), nil
	}
	return body, nil
}

// withTimeout bounds a buffered upstream call by the configured timeout.
func (p *Proxy) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.cfg.RequestTimeout)
}

// wantsStream reports whether the body's "stream" field is the JSON literal
// true. Any other value, including "true" as a string, means buffered.
func wantsStream(body []byte) (bool, error) {
	var req struct {
		Stream json.RawMessage `json:"stream"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return false, err
	}
	return bytes.Equal(bytes.TrimSpace(req.Stream), []byte("true")), nil
}

// relayBuffered reads the full upstream body and writes it with the upstream
// status in one shot. Nothing is written when reading fails.
func relayBuffered(w http.ResponseWriter, resp *http.Response) error {
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(payload)
	return nil
}
