package limiters

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestAttemptTrackerLocksAtThreshold(t *testing.T) {
	clock := newFakeClock()
	tr := NewAttemptTracker(LockoutConfig{
		MaxAttempts:  5,
		Window:       15 * time.Minute,
		LockDuration: 15 * time.Minute,
	}, clock.Now)

	for i := 0; i < 4; i++ {
		if locked, _ := tr.RecordFailure("msmith"); locked {
			t.Fatalf("locked after %d failures", i+1)
		}
	}
	if got := tr.FailureCount("msmith"); got != 4 {
		t.Fatalf("FailureCount = %d, want 4", got)
	}

	locked, until := tr.RecordFailure("msmith")
	if !locked {
		t.Fatal("fifth failure did not lock")
	}
	if want := clock.Now().Add(15 * time.Minute); !until.Equal(want) {
		t.Fatalf("lock until %v, want %v", until, want)
	}

	if locked, _ := tr.Check("msmith"); !locked {
		t.Fatal("Check does not see the lock")
	}
	// Other accounts are unaffected.
	if locked, _ := tr.Check("jdoe"); locked {
		t.Fatal("lock leaked to another account")
	}
}

func TestAttemptTrackerLockExpires(t *testing.T) {
	clock := newFakeClock()
	tr := NewAttemptTracker(LockoutConfig{
		MaxAttempts:  2,
		Window:       time.Hour,
		LockDuration: 10 * time.Minute,
	}, clock.Now)

	tr.RecordFailure("msmith")
	tr.RecordFailure("msmith")
	if locked, _ := tr.Check("msmith"); !locked {
		t.Fatal("not locked")
	}

	clock.Advance(10 * time.Minute)
	if locked, _ := tr.Check("msmith"); locked {
		t.Fatal("lock survived its duration")
	}
	// Failures restart from zero after the lock clears.
	if locked, _ := tr.RecordFailure("msmith"); locked {
		t.Fatal("single failure after expiry re-locked")
	}
}

func TestAttemptTrackerWindowForgetsOldFailures(t *testing.T) {
	clock := newFakeClock()
	tr := NewAttemptTracker(LockoutConfig{
		MaxAttempts:  3,
		Window:       10 * time.Minute,
		LockDuration: time.Hour,
	}, clock.Now)

	tr.RecordFailure("msmith")
	tr.RecordFailure("msmith")
	clock.Advance(11 * time.Minute)

	// The two old failures fell out of the window; these two should not
	// reach the threshold of three.
	tr.RecordFailure("msmith")
	if locked, _ := tr.RecordFailure("msmith"); locked {
		t.Fatal("stale failures counted toward the threshold")
	}
}

func TestAttemptTrackerReset(t *testing.T) {
	clock := newFakeClock()
	tr := NewAttemptTracker(LockoutConfig{MaxAttempts: 3, Window: time.Hour, LockDuration: time.Hour}, clock.Now)

	tr.RecordFailure("msmith")
	tr.RecordFailure("msmith")
	tr.Reset("msmith")
	if got := tr.FailureCount("msmith"); got != 0 {
		t.Fatalf("FailureCount after reset = %d", got)
	}
}

func TestAttemptTrackerSweep(t *testing.T) {
	clock := newFakeClock()
	tr := NewAttemptTracker(LockoutConfig{MaxAttempts: 2, Window: 5 * time.Minute, LockDuration: 5 * time.Minute}, clock.Now)

	tr.RecordFailure("stale")
	tr.RecordFailure("locked-stale")
	tr.RecordFailure("locked-stale")

	clock.Advance(6 * time.Minute)
	tr.RecordFailure("fresh")

	if removed := tr.Sweep(); removed != 2 {
		t.Fatalf("Sweep removed %d, want 2", removed)
	}
	if got := tr.FailureCount("fresh"); got != 1 {
		t.Fatalf("fresh account swept: count = %d", got)
	}
}

func TestIPBlockerSlidingWindow(t *testing.T) {
	clock := newFakeClock()
	b := NewIPBlocker(IPBlockConfig{
		MaxAttempts:   3,
		Window:        10 * time.Minute,
		BlockDuration: time.Hour,
	}, clock.Now)

	b.RecordFailure("10.0.0.9")
	clock.Advance(11 * time.Minute)
	b.RecordFailure("10.0.0.9")
	if blocked, _ := b.RecordFailure("10.0.0.9"); blocked {
		t.Fatal("blocked with only two failures in the window")
	}
	blocked, until := b.RecordFailure("10.0.0.9")
	if !blocked {
		t.Fatal("third in-window failure did not block")
	}
	if want := clock.Now().Add(time.Hour); !until.Equal(want) {
		t.Fatalf("blocked until %v, want %v", until, want)
	}

	if blocked, _ := b.Check("10.0.0.9"); !blocked {
		t.Fatal("Check does not see the block")
	}
	if blocked, _ := b.Check("10.0.0.10"); blocked {
		t.Fatal("block leaked to another address")
	}

	clock.Advance(time.Hour)
	if blocked, _ := b.Check("10.0.0.9"); blocked {
		t.Fatal("block survived its duration")
	}
}

func TestIPBlockerIgnoresEmptyAddress(t *testing.T) {
	clock := newFakeClock()
	b := NewIPBlocker(IPBlockConfig{MaxAttempts: 1, Window: time.Hour, BlockDuration: time.Hour}, clock.Now)

	if blocked, _ := b.RecordFailure(""); blocked {
		t.Fatal("empty address got blocked")
	}
	if blocked, _ := b.Check(""); blocked {
		t.Fatal("empty address reports blocked")
	}
}

func TestThrottleBurstAndRefill(t *testing.T) {
	clock := newFakeClock()
	th := NewThrottle(ThrottleConfig{RequestsPerSecond: 1, Burst: 3}, clock.Now)

	for i := 0; i < 3; i++ {
		if !th.Allow("10.0.0.9") {
			t.Fatalf("request %d inside burst denied", i+1)
		}
	}
	if th.Allow("10.0.0.9") {
		t.Fatal("request over burst allowed")
	}
	// Other addresses have their own bucket.
	if !th.Allow("10.0.0.10") {
		t.Fatal("fresh address denied")
	}

	clock.Advance(time.Second)
	if !th.Allow("10.0.0.9") {
		t.Fatal("bucket did not refill")
	}
}

func TestThrottleDisabled(t *testing.T) {
	th := NewThrottle(ThrottleConfig{}, nil)
	for i := 0; i < 100; i++ {
		if !th.Allow("10.0.0.9") {
			t.Fatal("disabled throttle denied a request")
		}
	}
}

func TestThrottleSweep(t *testing.T) {
	clock := newFakeClock()
	th := NewThrottle(ThrottleConfig{RequestsPerSecond: 1, Burst: 1}, clock.Now)

	th.Allow("10.0.0.9")
	clock.Advance(time.Hour)
	th.Allow("10.0.0.10")

	if removed := th.Sweep(30 * time.Minute); removed != 1 {
		t.Fatalf("Sweep removed %d, want 1", removed)
	}
}
