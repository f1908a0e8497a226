// Package bruteforce throttles failed login attempts per source address
// using a sliding window: attempts older than the window expire from
// consideration on every check, so an attacker cannot idle at a bucket
// boundary and then burst.
package bruteforce

import (
	"context"
	"fmt"
	"time"

	"github.com/kpawlak/taskgrid/internal/common"
)

// AttemptStore keeps per-address failed-attempt timestamps. Implementations
// must make each method atomic per address: prune-then-count and append must
// never interleave with another caller's view of the same address.
type AttemptStore interface {
	// CountRecent prunes attempts older than `since` for the address and
	// returns how many remain, plus the oldest remaining timestamp (zero
	// when none remain).
	CountRecent(ctx context.Context, addr string, since time.Time) (int, time.Time, error)

	// Record appends a failed attempt at the given time.
	Record(ctx context.Context, addr string, at time.Time) error

	// Reset drops the attempt log for the address.
	Reset(ctx context.Context, addr string) error
}

// LockoutError reports a lockout along with how long the caller has to wait
// until the oldest counted attempt leaves the window. It unwraps to
// common.ErrorTooManyAttempts.
type LockoutError struct {
	RetryAfter time.Duration
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("too many attempts, retry in %s", e.RetryAfter.Round(time.Second))
}

func (e *LockoutError) Unwrap() error {
	return common.ErrorTooManyAttempts
}

// Guard enforces the attempt limit over the lockout window.
type Guard struct {
	store  AttemptStore
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewGuard(store AttemptStore, limit int, window time.Duration) *Guard {
	return &Guard{store: store, limit: limit, window: window, now: time.Now}
}

// Check must run before any credential work on a login attempt. It returns
// a *LockoutError when the address has reached the attempt limit within the
// window; store failures degrade open (a broken store must not lock every
// user out) and surface as common.ErrorInternal only when counting fails.
func (g *Guard) Check(ctx context.Context, addr string) error {
	now := g.now()

	count, oldest, err := g.store.CountRecent(ctx, addr, now.Add(-g.window))
	if err != nil {
		return common.ErrorInternal
	}

	if count >= g.limit {
		retryAfter := oldest.Add(g.window).Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return &LockoutError{RetryAfter: retryAfter}
	}

	return nil
}

// RecordFailure appends a failed attempt for the address. Only verified
// authentication failures count; transport errors never reach here.
func (g *Guard) RecordFailure(ctx context.Context, addr string) error {
	return g.store.Record(ctx, addr, g.now())
}

// Reset clears the address's log after a successful login.
func (g *Guard) Reset(ctx context.Context, addr string) error {
	return g.store.Reset(ctx, addr)
}
