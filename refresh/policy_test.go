package refresh

import (
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestExpiresAtSubtractsWindow(t *testing.T) {
	p := NewPolicy()
	issued := time.UnixMilli(1_700_000_000_000)

	got := p.ExpiresAt(issued, time.Hour)
	want := issued.UnixMilli() + 3_600_000 - 600_000
	if got != want {
		t.Fatalf("ExpiresAt = %d, want %d", got, want)
	}
	if p.ExpiresAtFromExpiry(issued.Add(time.Hour)) != want {
		t.Fatal("ExpiresAtFromExpiry disagrees with ExpiresAt")
	}
}

func TestNeedsRefreshTracksClock(t *testing.T) {
	clock := &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
	p := NewPolicy(WithClock(clock.Now))

	expiresAt := clock.Now().UnixMilli() + 3_600_000 - 600_000
	if p.NeedsRefresh(expiresAt) {
		t.Fatal("fresh token should not need refresh")
	}

	clock.Advance(50 * time.Minute)
	if p.NeedsRefresh(expiresAt) {
		t.Fatal("threshold itself is not past")
	}

	clock.Advance(time.Millisecond)
	if !p.NeedsRefresh(expiresAt) {
		t.Fatal("expected refresh once past threshold")
	}
	if p.Remaining(expiresAt) != 0 {
		t.Fatal("remaining should floor at zero")
	}
}

func TestNeedsRefreshWithRealClock(t *testing.T) {
	p := NewPolicy()
	now := time.Now()
	if p.NeedsRefresh(now.UnixMilli() + 3_600_000 - 600_000) {
		t.Fatal("should not need refresh immediately")
	}
	if !p.NeedsRefresh(now.Add(-time.Second).UnixMilli()) {
		t.Fatal("past threshold should need refresh")
	}
}

func TestZeroExpiryAlwaysNeedsRefresh(t *testing.T) {
	if !NewPolicy().NeedsRefresh(0) {
		t.Fatal("zero expiry must force refresh")
	}
}

func TestWithWindow(t *testing.T) {
	p := NewPolicy(WithWindow(time.Minute), WithWindow(-1))
	if p.Window() != time.Minute {
		t.Fatalf("window = %v", p.Window())
	}
}
