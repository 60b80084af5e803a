// Package timestamper abstracts the wall clock so file naming can be tested.
package timestamper

import "time"

// Stamper returns the current time.
type Stamper interface {
	Now() time.Time
}

// System reads the real clock.
type System struct{}

func (System) Now() time.Time {
	return time.Now()
}

// Mock returns queued times in order and repeats the last one once the
// queue is drained.
type Mock struct {
	QueuedTimes []time.Time
	last        time.Time
}

func (m *Mock) Now() time.Time {
	if len(m.QueuedTimes) == 0 {
		return m.last
	}
	m.last = m.QueuedTimes[0]
	m.QueuedTimes = m.QueuedTimes[1:]
	return m.last
}
