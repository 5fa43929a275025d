// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package proxy

import (
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go-core-stack/nim-auth-proxy/pkg/auth"
	"github.com/go-core-stack/nim-auth-proxy/pkg/config"
)

const (
	// ServiceName is reported by the health endpoint.
	ServiceName = "NVIDIA NIM Proxy"

	modelsPath          = "/models"
	chatCompletionsPath = "/chat/completions"
)

// Proxy authenticates callers and forwards the models and chat completion
// endpoints to the configured upstream with the proxy's own credential.
type Proxy struct {
	// cfg keeps runtime knobs such as the upstream URL and shared secrets.
	cfg config.Config
	// client performs outbound HTTP requests with tuned transport settings.
	client *http.Client
	// signer replaces the caller's credential with the upstream key.
	signer *auth.Signer
	// authn gates the proxied routes on the client shared secret.
	authn *auth.Authenticator
	// logger emits structured logs for observability.
	logger zerolog.Logger
	// baseURL is the parsed upstream address the routes are resolved against.
	baseURL *url.URL
	// handler is the routed mux wrapped in middleware.
	handler http.Handler
}

// New constructs a Proxy backed by an http.Client configured with sensible
// connection pooling defaults and the provided runtime configuration.
func New(cfg config.Config) (http.Handler, error) {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		// Bounds time-to-headers only; streamed bodies may run longer.
		ResponseHeaderTimeout: cfg.RequestTimeout,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify, // nolint:gosec -- opt-in for development scenarios
		},
	}

	// No client-wide Timeout: it would also cut off long event streams.
	client := &http.Client{
		Transport: transport,
	}

	p := &Proxy{
		cfg:     cfg,
		client:  client,
		signer:  auth.NewSigner(cfg.APIKey),
		authn:   auth.NewAuthenticator(cfg.AuthToken, cfg.AuthHeader),
		logger:  log.With().Str("component", "proxy").Logger(),
		baseURL: cloneURL(cfg.Upstream),
	}
	p.handler = p.routes()

	return p, nil
}

// routes registers the public surface and wraps it in the middleware chain.
func (p *Proxy) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", p.handleHealth)
	mux.Handle("GET /v1/models", p.authn.Middleware(http.HandlerFunc(p.handleModels)))
	mux.Handle("POST /v1/chat/completions", p.authn.Middleware(http.HandlerFunc(p.handleChatCompletions)))

	var h http.Handler = mux
	h = p.recoverPanics(h)
	h = p.accessLog(h)
	h = requestID(h)
	return h
}

// ServeHTTP dispatches to the routed handler chain.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.handler.ServeHTTP(w, r)
}

// upstreamURL resolves an endpoint path below the configured base URL.
func (p *Proxy) upstreamURL(endpoint string) *url.URL {
	target := cloneURL(p.baseURL)
	target.Path = p.baseURL.Path + endpoint
	if p.baseURL.RawPath != "" {
		target.RawPath = p.baseURL.RawPath + endpoint
	}
	target.RawQuery = ""
	target.Fragment = ""
	return target
}

// cloneURL makes a shallow copy of the provided URL pointer.
func cloneURL(u *url.URL) *url.URL {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}
