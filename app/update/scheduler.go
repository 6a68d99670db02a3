package update

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/feedpane/feedpane/app/cfg"
	"github.com/feedpane/feedpane/app/database"
)

// Scheduler decides when feeds get refreshed. The web layer calls
// EnqueueIfStale when a session views a feed (fire-and-forget), and a periodic
// sweep re-enqueues every stale feed regardless of viewer activity.
type Scheduler struct {
	queue    *Queue
	feedRepo database.FeedRepository

	staleAfter    time.Duration
	sweepInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(queue *Queue, feedRepo database.FeedRepository) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	c := cfg.Get()

	return &Scheduler{
		queue:         queue,
		feedRepo:      feedRepo,
		staleAfter:    time.Duration(c.StaleAfter) * time.Second,
		sweepInterval: time.Duration(c.SweepInterval) * time.Second,
		ctx:           ctx,
		cancel:        cancel,
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()

		s.SweepAll(s.staleAfter)

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.SweepAll(s.staleAfter)
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

// EnqueueIfStale queues a refresh when the feed's last successful update is
// older than maxAge, or when the feed has never succeeded. It returns
// immediately; the caller never waits on the refresh itself.
func (s *Scheduler) EnqueueIfStale(feedID int64, maxAge time.Duration) {
	f, err := s.feedRepo.GetFeed(feedID)
	if err != nil {
		slog.Error("Failed to load feed for staleness check", "feed_id", feedID, "error", err)
		return
	}
	if f == nil {
		return
	}

	if f.LastUpdated != nil && time.Since(*f.LastUpdated) <= maxAge {
		return
	}

	if s.queue.Enqueue(feedID, PriorityUser) {
		slog.Debug("Feed enqueued", "feed_id", feedID, "priority", "user")
	}
}

// SweepAll enqueues every feed whose last successful update is older than
// maxAge. Invoked periodically, and the only path that re-engages feeds whose
// hot-retries were suspended.
func (s *Scheduler) SweepAll(maxAge time.Duration) {
	feeds, err := s.feedRepo.GetFeedsToUpdate(maxAge)
	if err != nil {
		slog.Error("Sweep failed to list stale feeds", "error", err)
		return
	}

	enqueued := 0
	for _, f := range feeds {
		if s.queue.Enqueue(f.ID, PrioritySweep) {
			enqueued++
		}
	}

	if enqueued > 0 {
		slog.Info("Sweep enqueued stale feeds", "stale", len(feeds), "enqueued", enqueued)
	}
}
