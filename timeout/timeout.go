// Package timeout provides a restartable deadline measured on the
// monotonic clock.
//
// A Timeout can be forced into the expired state with Expire. Once forced,
// Restart keeps it expired because it only re-anchors the start instant;
// only Start with a new duration arms it again.
package timeout

import "time"

// Clock supplies the current time. Readings from time.Now carry the
// monotonic clock, so wall clock jumps do not affect expiry.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System is the Clock backed by time.Now.
var System Clock = systemClock{}

// Timeout is a deadline defined by a start instant plus a duration.
// The zero value is expired.
type Timeout struct {
	clock    Clock
	start    time.Time
	duration time.Duration
}

// New returns a Timeout started now with duration d.
func New(d time.Duration) *Timeout {
	return NewWithClock(System, d)
}

// NewWithClock returns a Timeout started now on clock c with duration d.
func NewWithClock(c Clock, d time.Duration) *Timeout {
	t := &Timeout{clock: c}
	t.Start(d)
	return t
}

func (t *Timeout) now() time.Time {
	if t.clock == nil {
		t.clock = System
	}
	return t.clock.Now()
}

// Start arms the timeout with duration d from now.
func (t *Timeout) Start(d time.Duration) {
	t.duration = d
	t.start = t.now()
}

// Restart re-anchors the start instant to now, keeping the duration.
// It has no effect on a timeout forced expired by Expire.
func (t *Timeout) Restart() {
	t.start = t.now()
}

// IsExpired reports whether the duration has elapsed since the start instant.
func (t *Timeout) IsExpired() bool {
	return !t.now().Before(t.start.Add(t.duration))
}

// Expire forces the timeout into the expired state.
func (t *Timeout) Expire() {
	t.duration = 0
}

// Duration returns the configured duration. It is zero once Expire is called.
func (t *Timeout) Duration() time.Duration {
	return t.duration
}

// Remaining returns the time left before expiry, or zero when expired.
func (t *Timeout) Remaining() time.Duration {
	left := t.start.Add(t.duration).Sub(t.now())
	if left < 0 {
		return 0
	}
	return left
}
