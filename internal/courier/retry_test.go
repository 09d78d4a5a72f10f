package courier

import (
	"testing"
	"time"
)

func TestNextRetryDelay(t *testing.T) {
	// Test that delays are in expected ranges
	tests := []struct {
		attempt  int
		minDelay time.Duration
		maxDelay time.Duration
	}{
		{0, 400 * time.Millisecond, 600 * time.Millisecond}, // 500ms ± 20%
		{1, 1600 * time.Millisecond, 2400 * time.Millisecond}, // 2s ± 20%
		{2, 4 * time.Second, 6 * time.Second},                 // 5s ± 20%
		{10, 4 * time.Second, 6 * time.Second},                // beyond max stays at last
	}

	for _, tt := range tests {
		t.Run("", func(t *testing.T) {
			// Run multiple times to account for jitter
			for i := 0; i < 10; i++ {
				delay := NextRetryDelay(tt.attempt)
				if delay < tt.minDelay || delay > tt.maxDelay {
					t.Errorf("NextRetryDelay(%d) = %v, want between %v and %v",
						tt.attempt, delay, tt.minDelay, tt.maxDelay)
				}
			}
		})
	}
}

func TestNextRetryDelay_Negative(t *testing.T) {
	// Negative attempt should be treated as 0
	delay := NextRetryDelay(-1)
	if delay < 400*time.Millisecond || delay > 600*time.Millisecond {
		t.Errorf("NextRetryDelay(-1) should use attempt 0, got %v", delay)
	}
}

func TestIsExhausted(t *testing.T) {
	tests := []struct {
		attempt     int
		maxAttempts int
		want        bool
	}{
		{0, 3, false},
		{2, 3, false},
		{3, 3, true},
		{4, 3, true},
	}

	for _, tt := range tests {
		got := IsExhausted(tt.attempt, tt.maxAttempts)
		if got != tt.want {
			t.Errorf("IsExhausted(%d, %d) = %v, want %v",
				tt.attempt, tt.maxAttempts, got, tt.want)
		}
	}
}
