package refresh

import "time"

// Window is the margin subtracted from identity token expiry at issuance.
const Window = 10 * time.Minute

// Policy computes refresh thresholds. The zero value is not usable; call
// [NewPolicy].
type Policy struct {
	window time.Duration
	now    func() time.Time
}

// Option customizes a Policy.
type Option func(*Policy)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Policy) {
		if now != nil {
			p.now = now
		}
	}
}

// WithWindow overrides the refresh margin. Non-positive values are ignored.
func WithWindow(d time.Duration) Option {
	return func(p *Policy) {
		if d > 0 {
			p.window = d
		}
	}
}

// NewPolicy returns a Policy with the default [Window].
func NewPolicy(opts ...Option) *Policy {
	p := &Policy{window: Window, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Window returns the configured margin.
func (p *Policy) Window() time.Duration {
	return p.window
}

// ExpiresAt returns issuedAt + lifetime - window in epoch milliseconds.
func (p *Policy) ExpiresAt(issuedAt time.Time, lifetime time.Duration) int64 {
	return issuedAt.Add(lifetime).Add(-p.window).UnixMilli()
}

// ExpiresAtFromExpiry applies the window to an absolute token expiry.
func (p *Policy) ExpiresAtFromExpiry(expiry time.Time) int64 {
	return expiry.Add(-p.window).UnixMilli()
}

// NeedsRefresh reports whether now is past the stored threshold.
func (p *Policy) NeedsRefresh(expiresAtMs int64) bool {
	return NeedsRefreshAt(p.now(), expiresAtMs)
}

// Remaining returns the time left before refresh is due, floored at zero.
func (p *Policy) Remaining(expiresAtMs int64) time.Duration {
	d := time.UnixMilli(expiresAtMs).Sub(p.now())
	if d < 0 {
		return 0
	}
	return d
}

// NeedsRefreshAt is the pure comparison behind [Policy.NeedsRefresh].
func NeedsRefreshAt(now time.Time, expiresAtMs int64) bool {
	return now.UnixMilli() > expiresAtMs
}
