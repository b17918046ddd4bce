package runstate

import (
	"testing"
	"time"
)

func TestRecord_Duration(t *testing.T) {
	start := time.Date(2026, 10, 19, 3, 0, 0, 0, time.UTC)
	rec := &Record{StartedAt: start, FinishedAt: start.Add(42 * time.Second)}

	if rec.Duration() != 42*time.Second {
		t.Errorf("Duration() = %v, want 42s", rec.Duration())
	}
}

func TestLockKey(t *testing.T) {
	if got := LockKey("20261019"); got != "leaderboard:archiver:lock:20261019" {
		t.Errorf("LockKey() = %q", got)
	}
}
