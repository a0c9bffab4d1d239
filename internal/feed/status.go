package feed

import (
	"strings"
	"time"
)

// StuckAfter is how old a generating, cardless topic must be before the
// pipeline behind it is presumed dead. The backend usually finishes in under
// two minutes; ten gives the slowest image runs plenty of room.
const StuckAfter = 10 * time.Minute

// images_pending counts as ready: every card row exists at that point, only
// the async image renders are still finishing.
var readySynonyms = map[string]struct{}{
	"ready":          {},
	"completed":      {},
	"done":           {},
	"complete":       {},
	"finished":       {},
	"images_pending": {},
}

// IsReady reports whether a backend status string means the feed is usable.
// Unknown or absent statuses are not ready.
func IsReady(status string) bool {
	_, ok := readySynonyms[strings.ToLower(strings.TrimSpace(status))]
	return ok
}

// IsStuck reports whether a generating topic looks abandoned by the backend.
// Advisory only: it flags the topic for a user-initiated retry and never
// cancels anything itself. Without a creation timestamp age cannot be judged,
// so such topics are never stuck.
func IsStuck(t Topic, now time.Time) bool {
	if t.Status == StatusReady {
		return false
	}
	if t.CardCount > 0 {
		return false
	}
	if t.CreatedAt.IsZero() {
		return false
	}
	return now.Sub(t.CreatedAt) > StuckAfter
}
