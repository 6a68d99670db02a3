package update

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/feedpane/feedpane/app/cfg"
	"github.com/feedpane/feedpane/app/database"
	"github.com/feedpane/feedpane/app/feed"
	"github.com/feedpane/feedpane/app/fetch"
	"github.com/feedpane/feedpane/app/limiter"
)

// Fetcher abstracts the HTTP client so tests can count and script fetches.
type Fetcher interface {
	Fetch(ctx context.Context, url, etag, lastModified string) (*fetch.Result, error)
}

// Runner owns the worker pool that drains the queue. All mutable worker state
// (the queue's tracked set, the domain limiter's timestamps) lives behind the
// Runner's collaborators; nothing here is package-global.
type Runner struct {
	queue     *Queue
	feedRepo  database.FeedRepository
	itemRepo  database.ItemRepository
	fetcher   Fetcher
	parser    *feed.Parser
	extractor *feed.Extractor
	limiter   *limiter.DomainLimiter

	workerCount    int
	maxFailures    int
	retryBase      time.Duration
	retryCap       time.Duration
	extractContent bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRunner(queue *Queue, feedRepo database.FeedRepository, itemRepo database.ItemRepository,
	fetcher Fetcher, parser *feed.Parser, extractor *feed.Extractor,
	domainLimiter *limiter.DomainLimiter) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	c := cfg.Get()

	return &Runner{
		queue:          queue,
		feedRepo:       feedRepo,
		itemRepo:       itemRepo,
		fetcher:        fetcher,
		parser:         parser,
		extractor:      extractor,
		limiter:        domainLimiter,
		workerCount:    c.WorkerCount,
		maxFailures:    c.MaxFailures,
		retryBase:      time.Duration(c.RetryBase) * time.Second,
		retryCap:       time.Duration(c.RetryCap) * time.Second,
		extractContent: c.ExtractContent,
		ctx:            ctx,
		cancel:         cancel,
	}
}

func (r *Runner) Start() {
	for i := 0; i < r.workerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
}

// Stop cancels in-flight work and waits for the workers to drain. Item writes
// are transactional, so an aborted task leaves no partial feed state behind.
func (r *Runner) Stop() {
	r.cancel()
	r.wg.Wait()
}

func (r *Runner) worker(id int) {
	defer r.wg.Done()

	for {
		task, ok := r.queue.Dequeue(r.ctx)
		if !ok {
			return
		}

		start := time.Now()
		outcome := r.processTask(r.ctx, task)

		slog.Info("Task finished",
			"worker_id", id,
			"feed_id", task.FeedID,
			"priority", task.Priority.String(),
			"outcome", outcome.String(),
			"duration", time.Since(start))
	}
}

// processTask runs one task through the fetch/parse/store pipeline and maps
// every failure into a terminal outcome. One feed's failure never escapes to
// abort another feed's task or the worker itself.
func (r *Runner) processTask(ctx context.Context, task Task) Outcome {
	f, err := r.feedRepo.GetFeed(task.FeedID)
	if err != nil || f == nil {
		if err != nil {
			slog.Error("Failed to load feed for task", "feed_id", task.FeedID, "error", err)
		}
		r.queue.Done(task.FeedID)
		return FailedPermanent
	}

	if err := r.limiter.Wait(ctx, limiter.Domain(f.URL)); err != nil {
		// Shutdown while waiting for the domain slot; leave the feed for the
		// next sweep.
		r.queue.Done(task.FeedID)
		return FailedTransient
	}

	result, err := r.fetcher.Fetch(ctx, f.URL, f.ETag, f.LastModified)
	if err != nil {
		return r.failTask(task, f, err, fetch.IsTransient(err))
	}

	if result.NotModified {
		if err := r.feedRepo.MarkFetchNotModified(f.ID); err != nil {
			return r.failTask(task, f, err, true)
		}
		r.queue.Done(task.FeedID)
		return Succeeded
	}

	metadata, items, skipped, err := r.parser.Run(result.Body, time.Now())
	if err != nil {
		return r.failTask(task, f, err, false)
	}

	records := make([]database.FeedItem, 0, len(items))
	for _, item := range items {
		records = append(records, database.FeedItem{
			GUID:        item.GUID,
			Title:       item.Title,
			Link:        item.Link,
			Description: item.Description,
			Content:     item.Content,
			Published:   item.Published,
		})
	}

	inserted, updated, err := r.itemRepo.UpsertItems(f.ID, records)
	if err != nil {
		return r.failTask(task, f, err, true)
	}

	err = r.feedRepo.MarkFetchSuccess(f.ID, database.FeedMetadata{
		Title:        metadata.Title,
		Description:  metadata.Description,
		ETag:         result.ETag,
		LastModified: result.LastModified,
	})
	if err != nil {
		return r.failTask(task, f, err, true)
	}

	slog.Info("Feed updated",
		"feed_id", f.ID,
		"url", f.URL,
		"total", len(items),
		"new", inserted,
		"updated", updated,
		"skipped", skipped)

	if r.extractContent {
		r.enrichItems(ctx, f.ID)
	}

	r.queue.Done(task.FeedID)
	return Succeeded
}

// failTask records the failure and decides between a backoff retry and
// suspension. Transient failures retry with capped exponential backoff until
// the consecutive-failure threshold; after that the feed waits for the next
// periodic sweep. Permanent failures are never hot-retried.
func (r *Runner) failTask(task Task, f *database.Feed, cause error, transient bool) Outcome {
	count, err := r.feedRepo.MarkFetchFailure(f.ID)
	if err != nil {
		slog.Error("Failed to record fetch failure", "feed_id", f.ID, "error", err)
		count = r.maxFailures
	}

	outcome := FailedPermanent
	if transient {
		outcome = FailedTransient
	}

	slog.Warn("Feed update failed",
		"feed_id", f.ID,
		"url", f.URL,
		"outcome", outcome.String(),
		"failure_count", count,
		"error", cause)

	if !transient || count >= r.maxFailures {
		if transient {
			slog.Warn("Feed retries suspended until next sweep", "feed_id", f.ID, "failure_count", count)
		}
		r.queue.Done(task.FeedID)
		return outcome
	}

	delay := r.backoff(count)
	slog.Debug("Retry scheduled", "feed_id", f.ID, "delay", delay.String())

	// The feed stays tracked while the retry sleeps, so duplicate enqueues
	// keep coalescing against it.
	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-r.ctx.Done():
			r.queue.Done(task.FeedID)
		case <-timer.C:
			if !r.queue.requeue(task) {
				r.queue.Done(task.FeedID)
			}
		}
	}()

	return outcome
}

// backoff computes base * 2^(failures-1), capped.
func (r *Runner) backoff(failures int) time.Duration {
	if failures < 1 {
		failures = 1
	}

	delay := r.retryBase
	for i := 1; i < failures; i++ {
		delay *= 2
		if delay >= r.retryCap {
			return r.retryCap
		}
	}

	if delay > r.retryCap {
		return r.retryCap
	}
	return delay
}

// enrichItems performs the best-effort secondary fetch for teaser-only items.
// Each article fetch goes through the domain limiter for the article's own
// domain. Any failure degrades to keeping the teaser; nothing here escalates
// to the task outcome.
func (r *Runner) enrichItems(ctx context.Context, feedID int64) {
	items, err := r.itemRepo.GetItemsForExtraction(feedID, 10)
	if err != nil {
		slog.Error("Failed to list items for extraction", "feed_id", feedID, "error", err)
		return
	}

	for _, item := range items {
		if !r.extractor.NeedsExtraction(item.Description, item.Content) {
			continue
		}

		if err := r.limiter.Wait(ctx, limiter.Domain(item.Link)); err != nil {
			return
		}

		result, err := r.fetcher.Fetch(ctx, item.Link, "", "")
		if err != nil || result.NotModified {
			if err != nil && !errors.Is(err, context.Canceled) {
				slog.Debug("Article fetch failed, keeping teaser", "item_id", item.ID, "url", item.Link, "error", err)
			}
			continue
		}

		content, err := r.extractor.Run(result.Body, item.Link)
		if err != nil {
			slog.Debug("Content extraction failed, keeping teaser", "item_id", item.ID, "url", item.Link, "error", err)
			continue
		}

		if err := r.itemRepo.UpdateItemContent(item.ID, content); err != nil {
			slog.Error("Failed to store extracted content", "item_id", item.ID, "error", err)
		}
	}
}
