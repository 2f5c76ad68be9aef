package ratelimit

import (
	"testing"
	"time"
)

func TestKeyedRateLimiter_Allow(t *testing.T) {
	tests := []struct {
		name     string
		rps      float64
		burst    int
		key      string
		calls    int
		wantPass int
	}{
		{
			name:     "burst allows initial requests",
			rps:      1,
			burst:    3,
			key:      "alice",
			calls:    3,
			wantPass: 3,
		},
		{
			name:     "exceeding burst blocks",
			rps:      1,
			burst:    2,
			key:      "alice",
			calls:    5,
			wantPass: 2,
		},
		{
			name:     "single call within burst",
			rps:      1,
			burst:    1,
			key:      "bob",
			calls:    1,
			wantPass: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := New(tt.rps, tt.burst)
			defer rl.Stop()

			passed := 0
			for i := 0; i < tt.calls; i++ {
				if rl.Allow(tt.key) {
					passed++
				}
			}

			if passed != tt.wantPass {
				t.Errorf("Allow() passed %d, want %d", passed, tt.wantPass)
			}
		})
	}
}

func TestKeyedRateLimiter_IndependentKeys(t *testing.T) {
	rl := New(1, 1)
	defer rl.Stop()

	// Exhaust alice
	rl.Allow("alice")
	if rl.Allow("alice") {
		t.Error("alice should be exhausted")
	}

	// bob should still work
	if !rl.Allow("bob") {
		t.Error("bob should be independent and allowed")
	}
}

func TestKeyedRateLimiter_Refill(t *testing.T) {
	rl := New(20, 1) // refills a token every 50ms
	defer rl.Stop()

	if !rl.Allow("alice") {
		t.Fatal("first call should pass")
	}
	if rl.Allow("alice") {
		t.Fatal("second immediate call should be blocked")
	}

	time.Sleep(80 * time.Millisecond)

	if !rl.Allow("alice") {
		t.Error("call after refill window should pass")
	}
}

func TestKeyedRateLimiter_RemoveStale(t *testing.T) {
	rl := New(1, 1)
	defer rl.Stop()

	rl.Allow("alice")
	rl.Allow("bob")

	// Age alice's bucket past the cutoff.
	rl.mu.Lock()
	rl.buckets["alice"].lastSeen = time.Now().Add(-time.Hour)
	rl.mu.Unlock()

	removed := rl.removeStale(time.Now().Add(-bucketTTL))
	if removed != 1 {
		t.Errorf("removeStale() removed %d buckets, want 1", removed)
	}

	rl.mu.Lock()
	_, aliceKept := rl.buckets["alice"]
	_, bobKept := rl.buckets["bob"]
	rl.mu.Unlock()

	if aliceKept {
		t.Error("stale bucket should be removed")
	}
	if !bobKept {
		t.Error("fresh bucket should be kept")
	}

	// A swept key starts over with a full burst.
	if !rl.Allow("alice") {
		t.Error("swept key should get a fresh bucket")
	}
}

func TestKeyedRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := New(1, 1)
	rl.Stop()
	rl.Stop()
}
