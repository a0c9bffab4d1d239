// Package generation holds the timing and ownership rules for the
// submit-then-poll lifecycle. The event loop schedules the actual ticks; this
// package decides when the next one runs, when to give up, and whether a tick
// still speaks for its topic.
package generation

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Params tunes one generation attempt. The zero value takes the defaults.
type Params struct {
	// FirstPollDelay spaces the first poll away from submission; the backend
	// needs tens of seconds minimum, so polling instantly is pure load.
	FirstPollDelay time.Duration
	// ShortInterval applies while completion is still plausible soon.
	ShortInterval time.Duration
	// LongInterval applies once SlowdownAfter has elapsed.
	LongInterval time.Duration
	// SlowdownAfter is the elapsed time at which polling switches intervals.
	SlowdownAfter time.Duration
	// Deadline is the hard cap after which the attempt is abandoned.
	Deadline time.Duration
}

const (
	defaultFirstPollDelay = 4 * time.Second
	defaultShortInterval  = 4 * time.Second
	defaultLongInterval   = 8 * time.Second
	defaultSlowdownAfter  = 2 * time.Minute
	defaultDeadline       = 4 * time.Minute
)

func (p Params) withDefaults() Params {
	if p.FirstPollDelay <= 0 {
		p.FirstPollDelay = defaultFirstPollDelay
	}
	if p.ShortInterval <= 0 {
		p.ShortInterval = defaultShortInterval
	}
	if p.LongInterval <= 0 {
		p.LongInterval = defaultLongInterval
	}
	if p.SlowdownAfter <= 0 {
		p.SlowdownAfter = defaultSlowdownAfter
	}
	if p.Deadline <= 0 {
		p.Deadline = defaultDeadline
	}
	return p
}

// NewNodeID mints the synthetic id for a placeholder topic.
func NewNodeID(now time.Time) string {
	return fmt.Sprintf("node-%d", now.UnixMilli())
}

// Session is one generation attempt for one topic id. It is owned by the
// polling loop that created it and carries the token that keeps stale loops
// from publishing.
type Session struct {
	NodeID    string
	Token     uint64
	StartedAt time.Time

	params Params
	polls  int
}

// NextDelay returns how long to wait before the next poll tick and counts the
// tick as scheduled.
func (s *Session) NextDelay(now time.Time) time.Duration {
	defer func() { s.polls++ }()
	if s.polls == 0 {
		return s.params.FirstPollDelay
	}
	if now.Sub(s.StartedAt) < s.params.SlowdownAfter {
		return s.params.ShortInterval
	}
	return s.params.LongInterval
}

// Expired reports whether the hard deadline has elapsed.
func (s *Session) Expired(now time.Time) bool {
	return now.Sub(s.StartedAt) > s.params.Deadline
}

// Tracker hands out generation tokens and remembers which attempt currently
// owns each topic id. Tokens increase monotonically across all topics, so a
// retry's session always outranks the loop it replaces.
type Tracker struct {
	counter uint64
	active  map[string]uint64
}

func NewTracker() *Tracker {
	return &Tracker{active: map[string]uint64{}}
}

// Begin starts a new attempt for nodeID, superseding any in-flight one.
func (t *Tracker) Begin(nodeID string, started time.Time, params Params) *Session {
	token := atomic.AddUint64(&t.counter, 1)
	t.active[nodeID] = token
	return &Session{
		NodeID:    nodeID,
		Token:     token,
		StartedAt: started,
		params:    params.withDefaults(),
	}
}

// Current reports whether the given token still owns nodeID. Every tick must
// check this before publishing; a superseded loop's ticks become no-ops.
func (t *Tracker) Current(nodeID string, token uint64) bool {
	return t.active[nodeID] == token
}

// End closes the attempt if it still owns the topic.
func (t *Tracker) End(nodeID string, token uint64) {
	if t.active[nodeID] == token {
		delete(t.active, nodeID)
	}
}

// Supersede invalidates whatever attempt owns nodeID, without starting a new
// one. Used when the topic is deleted outright.
func (t *Tracker) Supersede(nodeID string) {
	delete(t.active, nodeID)
}

// Tracking reports whether any attempt currently owns nodeID.
func (t *Tracker) Tracking(nodeID string) bool {
	_, ok := t.active[nodeID]
	return ok
}
