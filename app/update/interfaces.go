package update

import (
	"time"
)

// SchedulerInterface is the enqueue surface handed to the web layer. Both
// calls are fire-and-forget; neither ever waits on a refresh.
type SchedulerInterface interface {
	EnqueueIfStale(feedID int64, maxAge time.Duration)
	SweepAll(maxAge time.Duration)
}

var _ SchedulerInterface = (*Scheduler)(nil)
