package viewers

import (
	"strings"
	"testing"
	"time"
)

func TestRegister(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tr := NewTracker(15 * time.Second)
	tr.SetClock(func() time.Time { return now })

	t.Run("Blank id gets a new one", func(t *testing.T) {
		id, active := tr.Register("")
		if id == "" {
			t.Fatal("expected generated id")
		}
		if active != 1 {
			t.Errorf("expected 1 active viewer, got %d", active)
		}
	})

	t.Run("Known id is refreshed not duplicated", func(t *testing.T) {
		id, _ := tr.Register("tab-1")
		if id != "tab-1" {
			t.Errorf("expected id kept, got %s", id)
		}
		_, active := tr.Register("tab-1")
		if active != 2 {
			t.Errorf("expected 2 active viewers, got %d", active)
		}
	})

	t.Run("Oversized id replaced", func(t *testing.T) {
		long := strings.Repeat("x", MaxIDLength+1)
		if id, _ := tr.Register(long); id == long {
			t.Error("expected oversized id to be replaced")
		}
	})
}

func TestStatsAndSweep(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tr := NewTracker(15 * time.Second)
	tr.SetClock(func() time.Time { return now })

	stats := tr.Stats()
	if stats.HasViewers || stats.Active != 0 || stats.LastActivity != nil {
		t.Fatalf("expected empty stats, got %+v", stats)
	}

	tr.Register("a")
	now = now.Add(10 * time.Second)
	tr.Register("b")
	now = now.Add(6 * time.Second)

	stats = tr.Stats()
	if stats.Active != 1 || !stats.HasViewers {
		t.Errorf("expected only b active, got %+v", stats)
	}
	if stats.LastActivity == nil || !stats.LastActivity.Equal(now.Add(-6*time.Second)) {
		t.Errorf("unexpected last activity %v", stats.LastActivity)
	}

	if removed := tr.Sweep(); removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}

	now = now.Add(time.Minute)
	tr.Sweep()
	stats = tr.Stats()
	if stats.HasViewers {
		t.Errorf("expected no viewers, got %+v", stats)
	}
	if stats.LastActivity == nil {
		t.Error("last activity must survive expiry")
	}
}
