// Package expiry implements the sliding-window expiration policy shared by
// browser sessions and live connection records.
package expiry

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidPolicy = errors.New("invalid expiration policy")

// Policy extends a record's lifetime only once its remaining life drops to
// RefreshThreshold * Duration or below. A Policy is immutable once built and
// safe to share between goroutines.
type Policy struct {
	Duration         time.Duration
	RefreshThreshold float64
}

// NewPolicy validates duration and threshold. The threshold must be in (0,1].
func NewPolicy(duration time.Duration, threshold float64) (Policy, error) {
	if duration <= 0 {
		return Policy{}, fmt.Errorf("%w: duration must be positive, got %s", ErrInvalidPolicy, duration)
	}
	if threshold <= 0 || threshold > 1 {
		return Policy{}, fmt.Errorf("%w: refresh threshold must be in (0,1], got %v", ErrInvalidPolicy, threshold)
	}
	return Policy{Duration: duration, RefreshThreshold: threshold}, nil
}

// MustPolicy is NewPolicy for package level defaults.
func MustPolicy(duration time.Duration, threshold float64) Policy {
	p, err := NewPolicy(duration, threshold)
	if err != nil {
		panic(err)
	}
	return p
}

// Defaults for the two policies the server builds at startup.
const (
	DefaultSessionDuration     = 14 * 24 * time.Hour
	DefaultSessionThreshold    = 0.5
	DefaultConnectionDuration  = 4 * time.Hour
	DefaultConnectionThreshold = 0.75
)

// NewExpiry returns the expiry for a record (re)issued at now.
func (p Policy) NewExpiry(now time.Time) time.Time {
	return now.Add(p.Duration)
}

// ShouldRefresh reports whether the remaining life is inside the refresh window.
func (p Policy) ShouldRefresh(expiresAt, now time.Time) bool {
	return expiresAt.Sub(now) <= p.window()
}

// TryRefresh returns a new expiry and true when a refresh is due, otherwise
// expiresAt unchanged and false.
func (p Policy) TryRefresh(expiresAt, now time.Time) (time.Time, bool) {
	if !p.ShouldRefresh(expiresAt, now) {
		return expiresAt, false
	}
	return p.NewExpiry(now), true
}

// DefaultTTL is the TTL given to a freshly written record.
func (p Policy) DefaultTTL() time.Duration {
	return p.Duration
}

// TryRefreshTTL applies the policy to a remaining TTL, for stores which
// track time to live rather than absolute expiry.
func (p Policy) TryRefreshTTL(current time.Duration) (time.Duration, bool) {
	if current > p.window() {
		return current, false
	}
	return p.Duration, true
}

func (p Policy) window() time.Duration {
	return time.Duration(float64(p.Duration) * p.RefreshThreshold)
}
