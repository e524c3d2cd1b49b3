package transaction

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestMemoryGuardFlagsDuplicateWithinWindow(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	guard := NewMemoryGuard(5 * time.Minute)
	guard.now = func() time.Time { return now }

	userID := uuid.New()
	merchantID := uuid.New()

	dup, err := guard.CheckAndRegister(context.Background(), userID, merchantID, d("100.00"))
	if err != nil || dup {
		t.Fatalf("first request flagged duplicate: dup=%v err=%v", dup, err)
	}

	dup, err = guard.CheckAndRegister(context.Background(), userID, merchantID, d("100.00"))
	if err != nil || !dup {
		t.Fatalf("identical request within window not flagged: dup=%v err=%v", dup, err)
	}

	// Same tuple after the window elapses is a fresh request.
	now = now.Add(5*time.Minute + time.Second)
	dup, err = guard.CheckAndRegister(context.Background(), userID, merchantID, d("100.00"))
	if err != nil || dup {
		t.Fatalf("request after window flagged duplicate: dup=%v err=%v", dup, err)
	}
}

func TestMemoryGuardDistinguishesTuples(t *testing.T) {
	guard := NewMemoryGuard(5 * time.Minute)
	userID := uuid.New()
	merchantID := uuid.New()

	if dup, _ := guard.CheckAndRegister(context.Background(), userID, merchantID, d("100.00")); dup {
		t.Fatal("first request flagged duplicate")
	}
	if dup, _ := guard.CheckAndRegister(context.Background(), userID, merchantID, d("100.01")); dup {
		t.Error("different amount flagged duplicate")
	}
	if dup, _ := guard.CheckAndRegister(context.Background(), userID, uuid.New(), d("100.00")); dup {
		t.Error("different merchant flagged duplicate")
	}
	if dup, _ := guard.CheckAndRegister(context.Background(), uuid.New(), merchantID, d("100.00")); dup {
		t.Error("different user flagged duplicate")
	}
}
