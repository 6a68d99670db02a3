package update

import (
	"time"
)

// Priority orders queue service: user-triggered refreshes are served before
// older periodic sweep tasks. Priority never affects correctness, only
// position.
type Priority int

const (
	PrioritySweep Priority = iota
	PriorityUser
)

func (p Priority) String() string {
	if p == PriorityUser {
		return "user"
	}
	return "sweep"
}

// Task is one pending feed refresh. The queue guarantees at most one task per
// feed is queued or in flight at a time.
type Task struct {
	FeedID     int64
	Priority   Priority
	EnqueuedAt time.Time
}

// Outcome is the terminal state of a processed task.
type Outcome int

const (
	Succeeded Outcome = iota
	FailedTransient
	FailedPermanent
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case FailedTransient:
		return "failed_transient"
	default:
		return "failed_permanent"
	}
}
