// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package proxy

import (
	"errors"
	"fmt"
	"io"
	"net/http"
)

// relayChunkSize bounds how much of the upstream stream is held in memory.
const relayChunkSize = 32 * 1024

// errCallerGone marks relay failures on the caller side of the stream.
var errCallerGone = errors.New("caller connection closed")

// relay copies src to w chunk by chunk, flushing after every write so each
// event reaches the caller as soon as the upstream emits it. A blocked
// caller write stalls further upstream reads. It returns nil on upstream EOF.
func relay(w http.ResponseWriter, src io.Reader) (int64, error) {
	rc := http.NewResponseController(w)
	canFlush := true
	flush := func() error {
		if !canFlush {
			return nil
		}
		if err := rc.Flush(); err != nil {
			if errors.Is(err, http.ErrNotSupported) {
				canFlush = false
				return nil
			}
			return err
		}
		return nil
	}

	// Push the headers out before the first upstream byte arrives.
	if err := flush(); err != nil {
		return 0, fmt.Errorf("%w: %v", errCallerGone, err)
	}

	buf := make([]byte, relayChunkSize)
	var written int64
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			wn, writeErr := w.Write(buf[:n])
			written += int64(wn)
			if writeErr == nil && wn < n {
				writeErr = io.ErrShortWrite
			}
			if writeErr != nil {
				return written, fmt.Errorf("%w: %v", errCallerGone, writeErr)
			}
			if err := flush(); err != nil {
				return written, fmt.Errorf("%w: %v", errCallerGone, err)
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return written, nil
			}
			return written, fmt.Errorf("read upstream stream: %w", readErr)
		}
	}
}
