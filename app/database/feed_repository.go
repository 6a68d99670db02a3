package database

import (
	"database/sql"
	"fmt"
	"time"
)

var _ FeedRepository = (*FeedRepositoryImpl)(nil)

type FeedRepositoryImpl struct {
	db *DB
}

func NewFeedRepository(db *DB) *FeedRepositoryImpl {
	return &FeedRepositoryImpl{db: db}
}

const feedColumns = `id, url, title, description, etag, last_modified,
       last_updated, last_attempt, failure_count, created_at`

func scanFeed(row interface{ Scan(...any) error }) (*Feed, error) {
	var feed Feed
	err := row.Scan(
		&feed.ID, &feed.URL, &feed.Title, &feed.Description,
		&feed.ETag, &feed.LastModified,
		&feed.LastUpdated, &feed.LastAttempt, &feed.FailureCount, &feed.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &feed, nil
}

// CreateFeed inserts a feed for the URL if it does not exist and returns its
// id either way. Feeds are global; re-subscribing an existing URL is a no-op.
func (r *FeedRepositoryImpl) CreateFeed(url string) (int64, error) {
	_, err := r.db.Exec(`
		INSERT INTO feeds (url) VALUES (?)
		ON CONFLICT (url) DO NOTHING
	`, url)
	if err != nil {
		return 0, fmt.Errorf("failed to insert feed: %w", err)
	}

	var id int64
	err = r.db.QueryRow(`SELECT id FROM feeds WHERE url = ?`, url).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to look up feed id: %w", err)
	}

	return id, nil
}

func (r *FeedRepositoryImpl) GetFeed(id int64) (*Feed, error) {
	feed, err := scanFeed(r.db.QueryRow(`
		SELECT `+feedColumns+`
		FROM feeds
		WHERE id = ?
	`, id))

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}

	return feed, nil
}

func (r *FeedRepositoryImpl) GetFeedByURL(url string) (*Feed, error) {
	feed, err := scanFeed(r.db.QueryRow(`
		SELECT `+feedColumns+`
		FROM feeds
		WHERE url = ?
	`, url))

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed by URL: %w", err)
	}

	return feed, nil
}

func (r *FeedRepositoryImpl) ListFeeds() ([]Feed, error) {
	rows, err := r.db.Query(`
		SELECT ` + feedColumns + `
		FROM feeds
		ORDER BY title, url
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list feeds: %w", err)
	}
	defer rows.Close()

	return collectFeeds(rows)
}

// GetFeedsToUpdate returns feeds whose last successful update is older than
// maxAge, plus feeds that have never succeeded at all.
func (r *FeedRepositoryImpl) GetFeedsToUpdate(maxAge time.Duration) ([]Feed, error) {
	cutoff := time.Now().UTC().Add(-maxAge)

	rows, err := r.db.Query(`
		SELECT `+feedColumns+`
		FROM feeds
		WHERE last_updated IS NULL OR last_updated < ?
		ORDER BY last_updated
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to get feeds to update: %w", err)
	}
	defer rows.Close()

	return collectFeeds(rows)
}

func (r *FeedRepositoryImpl) GetFeedCount() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM feeds`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get feed count: %w", err)
	}
	return count, nil
}

// MarkFetchSuccess records a successful fetch: metadata fields merge in with
// non-empty values winning, caching tokens are replaced, the failure count
// resets and last_updated advances.
func (r *FeedRepositoryImpl) MarkFetchSuccess(id int64, meta FeedMetadata) error {
	now := time.Now().UTC()

	_, err := r.db.Exec(`
		UPDATE feeds
		SET title = COALESCE(NULLIF(?, ''), title),
		    description = COALESCE(NULLIF(?, ''), description),
		    etag = COALESCE(NULLIF(?, ''), etag),
		    last_modified = COALESCE(NULLIF(?, ''), last_modified),
		    last_updated = ?,
		    last_attempt = ?,
		    failure_count = 0
		WHERE id = ?
	`, meta.Title, meta.Description, meta.ETag, meta.LastModified, now, now, id)

	if err != nil {
		return fmt.Errorf("failed to mark fetch success: %w", err)
	}

	return nil
}

// MarkFetchNotModified handles an HTTP 304: the stored items and caching
// tokens stay as they are, the failure count resets and last_updated advances.
func (r *FeedRepositoryImpl) MarkFetchNotModified(id int64) error {
	now := time.Now().UTC()

	_, err := r.db.Exec(`
		UPDATE feeds
		SET last_updated = ?, last_attempt = ?, failure_count = 0
		WHERE id = ?
	`, now, now, id)

	if err != nil {
		return fmt.Errorf("failed to mark fetch not modified: %w", err)
	}

	return nil
}

// MarkFetchFailure increments the consecutive-failure count and records the
// attempt. Caching tokens are preserved so future conditional requests stay
// valid. Returns the new failure count.
func (r *FeedRepositoryImpl) MarkFetchFailure(id int64) (int, error) {
	now := time.Now().UTC()

	_, err := r.db.Exec(`
		UPDATE feeds
		SET last_attempt = ?, failure_count = failure_count + 1
		WHERE id = ?
	`, now, id)
	if err != nil {
		return 0, fmt.Errorf("failed to mark fetch failure: %w", err)
	}

	var count int
	err = r.db.QueryRow(`SELECT failure_count FROM feeds WHERE id = ?`, id).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to read failure count: %w", err)
	}

	return count, nil
}

func collectFeeds(rows *sql.Rows) ([]Feed, error) {
	var feeds []Feed
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed row: %w", err)
		}
		feeds = append(feeds, *feed)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed rows: %w", err)
	}

	return feeds, nil
}
