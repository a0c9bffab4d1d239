package generation

import (
	"testing"
	"time"
)

func TestNewNodeID(t *testing.T) {
	t.Parallel()

	at := time.UnixMilli(1000)
	if got := NewNodeID(at); got != "node-1000" {
		t.Fatalf("NewNodeID = %q, want node-1000", got)
	}
}

func TestNextDelaySchedule(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	tracker := NewTracker()
	session := tracker.Begin("node-1", start, Params{
		FirstPollDelay: 3 * time.Second,
		ShortInterval:  4 * time.Second,
		LongInterval:   8 * time.Second,
		SlowdownAfter:  2 * time.Minute,
	})

	if got := session.NextDelay(start); got != 3*time.Second {
		t.Fatalf("first delay = %v, want 3s", got)
	}
	if got := session.NextDelay(start.Add(30 * time.Second)); got != 4*time.Second {
		t.Fatalf("early delay = %v, want short interval 4s", got)
	}
	if got := session.NextDelay(start.Add(90 * time.Second)); got != 4*time.Second {
		t.Fatalf("delay below threshold = %v, want 4s", got)
	}
	if got := session.NextDelay(start.Add(3 * time.Minute)); got != 8*time.Second {
		t.Fatalf("late delay = %v, want long interval 8s", got)
	}
}

func TestSessionDefaults(t *testing.T) {
	t.Parallel()

	session := NewTracker().Begin("node-1", time.Now(), Params{})
	if session.params.FirstPollDelay != defaultFirstPollDelay {
		t.Fatalf("first poll delay default = %v", session.params.FirstPollDelay)
	}
	if session.params.Deadline != defaultDeadline {
		t.Fatalf("deadline default = %v", session.params.Deadline)
	}
}

func TestExpired(t *testing.T) {
	t.Parallel()

	start := time.Now()
	session := NewTracker().Begin("node-1", start, Params{Deadline: time.Minute})
	if session.Expired(start.Add(59 * time.Second)) {
		t.Fatal("should not expire before the deadline")
	}
	if !session.Expired(start.Add(61 * time.Second)) {
		t.Fatal("should expire after the deadline")
	}
}

func TestTrackerSupersession(t *testing.T) {
	t.Parallel()

	tracker := NewTracker()
	now := time.Now()

	first := tracker.Begin("node-1", now, Params{})
	if !tracker.Current("node-1", first.Token) {
		t.Fatal("fresh session should be current")
	}

	second := tracker.Begin("node-1", now, Params{})
	if tracker.Current("node-1", first.Token) {
		t.Fatal("old session must be superseded by a new Begin")
	}
	if !tracker.Current("node-1", second.Token) {
		t.Fatal("new session should be current")
	}
	if second.Token <= first.Token {
		t.Fatalf("tokens must increase: %d then %d", first.Token, second.Token)
	}
}

func TestTrackerEndOnlyClosesOwnAttempt(t *testing.T) {
	t.Parallel()

	tracker := NewTracker()
	now := time.Now()

	first := tracker.Begin("node-1", now, Params{})
	second := tracker.Begin("node-1", now, Params{})

	tracker.End("node-1", first.Token)
	if !tracker.Current("node-1", second.Token) {
		t.Fatal("a stale End must not close the successor attempt")
	}

	tracker.End("node-1", second.Token)
	if tracker.Tracking("node-1") {
		t.Fatal("topic should be untracked after its owner ends")
	}
}

func TestTrackerTokensUniqueAcrossTopics(t *testing.T) {
	t.Parallel()

	tracker := NewTracker()
	now := time.Now()
	a := tracker.Begin("node-a", now, Params{})
	b := tracker.Begin("node-b", now, Params{})
	if a.Token == b.Token {
		t.Fatal("tokens must be unique across topics")
	}
	tracker.Supersede("node-a")
	if tracker.Current("node-a", a.Token) {
		t.Fatal("superseded topic should have no current attempt")
	}
	if !tracker.Current("node-b", b.Token) {
		t.Fatal("supersession must not affect other topics")
	}
}
