// Package limitio throttles an io.Reader to a fixed bandwidth.
// It is used to slow down incoming message data when simulating a slow
// server, typically to exercise client timeouts.
package limitio

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// DefaultBurst is the number of bytes let through in one go before the
// limiter starts pacing.
const DefaultBurst = 32 * 1024

type Reader struct {
	source  io.Reader
	limiter *rate.Limiter
}

// NewReader returns a reader that paces source at bytesPerSec.
// A zero or negative rate disables the limit entirely. A burst of zero
// or less falls back to DefaultBurst.
func NewReader(source io.Reader, bytesPerSec float64, burst int) *Reader {
	reader := &Reader{
		source: source,
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	if bytesPerSec > 0 {
		reader.limiter = rate.NewLimiter(rate.Limit(bytesPerSec), burst)
	}
	return reader
}

func (r *Reader) Read(p []byte) (int, error) {
	if r.limiter == nil {
		return r.source.Read(p)
	}
	// reserve a first burst before touching the source
	err := r.limiter.WaitN(context.Background(), r.limiter.Burst())
	if err != nil {
		return 0, err
	}
	n, err := r.source.Read(p)
	if err != nil {
		return n, err
	}
	// the first burst is already paid for, wait for the rest
	left := n - r.limiter.Burst()
	for left > 0 {
		chunk := left
		if chunk > r.limiter.Burst() {
			chunk = r.limiter.Burst()
		}
		err = r.limiter.WaitN(context.Background(), chunk)
		if err != nil {
			return n, err
		}
		left -= chunk
	}
	return n, nil
}
