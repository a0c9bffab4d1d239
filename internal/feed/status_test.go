package feed

import (
	"testing"
	"time"
)

func TestIsReady(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status string
		want   bool
	}{
		{"ready", "ready", true},
		{"completed", "completed", true},
		{"done", "done", true},
		{"complete", "complete", true},
		{"finished", "finished", true},
		{"images pending", "images_pending", true},
		{"upper case", "READY", true},
		{"mixed case padded", "  Completed \n", true},
		{"generating", "generating", false},
		{"failed", "failed", false},
		{"unknown", "launching", false},
		{"empty", "", false},
		{"whitespace only", "   ", false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsReady(tt.status); got != tt.want {
				t.Fatalf("IsReady(%q) = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestIsStuck(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	old := now.Add(-15 * time.Minute)
	recent := now.Add(-2 * time.Minute)

	base := Topic{ID: "n1", Status: StatusGenerating, CardCount: 0, CreatedAt: old}

	if !IsStuck(base, now) {
		t.Fatal("old, cardless, generating topic should be stuck")
	}

	ready := base
	ready.Status = StatusReady
	if IsStuck(ready, now) {
		t.Fatal("ready topic is never stuck")
	}

	withCards := base
	withCards.CardCount = 1
	if IsStuck(withCards, now) {
		t.Fatal("a topic with cards is never stuck")
	}

	fresh := base
	fresh.CreatedAt = recent
	if IsStuck(fresh, now) {
		t.Fatal("recent topic should not be stuck yet")
	}

	unknownAge := base
	unknownAge.CreatedAt = time.Time{}
	if IsStuck(unknownAge, now) {
		t.Fatal("missing timestamp means age cannot be judged; never stuck")
	}
}

func TestIsStuckThresholdBoundary(t *testing.T) {
	t.Parallel()

	now := time.Now()
	atThreshold := Topic{Status: StatusGenerating, CreatedAt: now.Add(-StuckAfter)}
	if IsStuck(atThreshold, now) {
		t.Fatal("exactly at the threshold is not yet stuck")
	}
	past := Topic{Status: StatusGenerating, CreatedAt: now.Add(-StuckAfter - time.Second)}
	if !IsStuck(past, now) {
		t.Fatal("past the threshold should be stuck")
	}
}
