package resilience

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

var (
	// ErrNoCredentialsConfigured is returned on first use of an empty pool.
	ErrNoCredentialsConfigured = eris.New("resilience: no credentials configured")
	// ErrAllCredentialsExhausted is returned when every credential in the
	// pool failed with a rotatable error during one call.
	ErrAllCredentialsExhausted = eris.New("resilience: all credentials exhausted")
)

// RotatingPool is an ordered list of credentials with a round-robin cursor.
// The cursor persists across calls, so a call starts from whichever
// credential the previous call left current.
type RotatingPool struct {
	mu      sync.Mutex
	creds   []string
	current int
}

// NewRotatingPool copies creds into a new pool with the cursor at 0.
func NewRotatingPool(creds []string) *RotatingPool {
	return &RotatingPool{creds: append([]string(nil), creds...)}
}

// Len returns the number of credentials.
func (p *RotatingPool) Len() int {
	return len(p.creds)
}

// Current returns the cursor and the credential it points at. It returns
// (-1, "") for an empty pool.
func (p *RotatingPool) Current() (int, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.creds) == 0 {
		return -1, ""
	}
	return p.current, p.creds[p.current]
}

// Advance moves the cursor past from, wrapping at the end. It is a no-op if
// another caller already moved the cursor off from, so two concurrent
// failures on the same credential skip only one entry.
func (p *RotatingPool) Advance(from int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.creds) == 0 || p.current != from {
		return
	}
	p.current = (p.current + 1) % len(p.creds)
}

// Rotate calls fn with the current credential. Rotatable failures advance
// the cursor and try the next credential, at most once per credential.
// Any other error is returned immediately. The returned int is the number
// of attempts made.
func Rotate[T any](ctx context.Context, p *RotatingPool, fn func(ctx context.Context, cred string) (T, error)) (T, int, error) {
	var zero T
	n := p.Len()
	if n == 0 {
		return zero, 0, ErrNoCredentialsConfigured
	}

	var lastErr error
	for attempt := 1; attempt <= n; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, attempt - 1, eris.Wrap(err, "resilience: rotate")
		}

		idx, cred := p.Current()
		val, err := fn(ctx, cred)
		if err == nil {
			return val, attempt, nil
		}
		if !IsRotatable(err) {
			return zero, attempt, err
		}

		lastErr = err
		zap.L().Warn("credential rejected, rotating",
			zap.Int("credential_index", idx),
			zap.Int("attempt", attempt),
			zap.Int("status", StatusCode(err)),
			zap.Error(err),
		)
		p.Advance(idx)
	}

	return zero, n, eris.Wrapf(ErrAllCredentialsExhausted, "%d attempts, last error: %v", n, lastErr)
}
