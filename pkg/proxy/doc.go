// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

// Package proxy provides an HTTP reverse proxy in front of the NVIDIA NIM
// inference API. It checks an optional client shared secret, re-signs the
// outbound call with the server-side API key, and relays either the buffered
// JSON response or the live server-sent event stream back to the caller.
package proxy
