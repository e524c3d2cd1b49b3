package transaction

import (
	"testing"
	"time"
)

func TestRetryPolicyBacksOffBelowCap(t *testing.T) {
	policy := NewRetryPolicy(3, 24*time.Hour)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	first := policy.OnFailure(1, now)
	if !first.Retry || first.Terminal {
		t.Fatalf("first failure must be retryable: %+v", first)
	}
	if !first.NextDueDate.Equal(now.Add(24 * time.Hour)) {
		t.Errorf("first backoff = %s, want +24h", first.NextDueDate)
	}

	second := policy.OnFailure(2, now)
	if !second.NextDueDate.Equal(now.Add(48 * time.Hour)) {
		t.Errorf("second backoff = %s, want +48h", second.NextDueDate)
	}
}

func TestRetryPolicyTerminalAtCap(t *testing.T) {
	policy := NewRetryPolicy(3, 24*time.Hour)
	now := time.Now()

	atCap := policy.OnFailure(3, now)
	if !atCap.Terminal || atCap.Retry {
		t.Fatalf("failure at cap must be terminal: %+v", atCap)
	}

	past := policy.OnFailure(7, now)
	if !past.Terminal {
		t.Fatalf("failure past cap must be terminal: %+v", past)
	}
}

func TestNewRetryPolicyDefaults(t *testing.T) {
	policy := NewRetryPolicy(0, 0)
	if policy.MaxRetries != DefaultMaxRetries {
		t.Errorf("MaxRetries = %d, want %d", policy.MaxRetries, DefaultMaxRetries)
	}
	if policy.BackoffBase != 24*time.Hour {
		t.Errorf("BackoffBase = %s, want 24h", policy.BackoffBase)
	}
}
