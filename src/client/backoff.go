// Package client implements the client side of the terminal protocol:
// connection lifecycle, handshake/reconnect dispatch, and the
// control-message loop, host-agnostic over whatever Renderer presents
// the terminal.
package client

import (
	"math/rand"
	"time"
)

// Backoff timing for reconnect attempts.
const (
	BackoffBase = time.Second
	BackoffMax  = 30 * time.Second
)

// Delay computes the exponential-backoff-with-jitter wait before
// reconnect attempt number attempt (0-indexed): min(MAX, BASE*2^attempt)
// scaled by a uniform [0.5, 1.0) factor, so a thundering herd of clients
// disconnected by the same event doesn't all retry in lockstep.
func Delay(attempt int) time.Duration {
	return delay(attempt, rand.Float64)
}

// delay takes the jitter source as a parameter so it can be tested
// deterministically.
func delay(attempt int, jitter func() float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	backoff := BackoffBase
	for i := 0; i < attempt; i++ {
		backoff *= 2
		if backoff >= BackoffMax {
			backoff = BackoffMax
			break
		}
	}
	if backoff > BackoffMax {
		backoff = BackoffMax
	}
	factor := 0.5 + 0.5*jitter()
	return time.Duration(float64(backoff) * factor)
}
