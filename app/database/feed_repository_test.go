package database

import (
	"testing"
	"time"
)

func TestCreateFeedIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFeedRepository(db)

	id1, err := repo.CreateFeed("https://example.com/feed.xml")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	id2, err := repo.CreateFeed("https://example.com/feed.xml")
	if err != nil {
		t.Fatalf("Expected no error on duplicate create, got: %v", err)
	}

	if id1 != id2 {
		t.Errorf("Expected same id for same URL, got: %d and %d", id1, id2)
	}

	count, err := repo.GetFeedCount()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 feed, got: %d", count)
	}
}

func TestGetFeedMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFeedRepository(db)

	feed, err := repo.GetFeed(999)
	if err != nil {
		t.Fatalf("Expected no error for missing feed, got: %v", err)
	}
	if feed != nil {
		t.Errorf("Expected nil for missing feed, got: %+v", feed)
	}
}

func TestMarkFetchSuccess(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFeedRepository(db)
	id := createTestFeed(t, db, "https://example.com/feed.xml")

	err := repo.MarkFetchSuccess(id, FeedMetadata{
		Title:        "Example Feed",
		Description:  "An example",
		ETag:         `"v1"`,
		LastModified: "Mon, 03 Jul 2023 10:00:00 GMT",
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	feed, err := repo.GetFeed(id)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if feed.Title != "Example Feed" {
		t.Errorf("Expected title to be stored, got: %s", feed.Title)
	}
	if feed.ETag != `"v1"` {
		t.Errorf("Expected ETag to be stored, got: %s", feed.ETag)
	}
	if feed.LastUpdated == nil {
		t.Error("Expected last_updated to be set")
	}
	if feed.FailureCount != 0 {
		t.Errorf("Expected failure count 0, got: %d", feed.FailureCount)
	}
}

func TestMarkFetchSuccessEmptyFieldsKeepStoredValues(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFeedRepository(db)
	id := createTestFeed(t, db, "https://example.com/feed.xml")

	if err := repo.MarkFetchSuccess(id, FeedMetadata{
		Title:        "Example Feed",
		Description:  "An example",
		ETag:         `"v1"`,
		LastModified: "Mon, 03 Jul 2023 10:00:00 GMT",
	}); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	// A later fetch with a sparse feed and no caching headers must not blank
	// the stored metadata or tokens.
	if err := repo.MarkFetchSuccess(id, FeedMetadata{Title: "Renamed Feed"}); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	feed, err := repo.GetFeed(id)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if feed.Title != "Renamed Feed" {
		t.Errorf("Non-empty title should win, got: %s", feed.Title)
	}
	if feed.Description != "An example" {
		t.Errorf("Empty description should keep stored value, got: %s", feed.Description)
	}
	if feed.ETag != `"v1"` {
		t.Errorf("Empty ETag should keep stored value, got: %s", feed.ETag)
	}
	if feed.LastModified != "Mon, 03 Jul 2023 10:00:00 GMT" {
		t.Errorf("Empty Last-Modified should keep stored value, got: %s", feed.LastModified)
	}
}

func TestMarkFetchFailureIncrementsCount(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFeedRepository(db)
	id := createTestFeed(t, db, "https://example.com/feed.xml")

	if err := repo.MarkFetchSuccess(id, FeedMetadata{ETag: `"v1"`}); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	for want := 1; want <= 3; want++ {
		count, err := repo.MarkFetchFailure(id)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if count != want {
			t.Errorf("Expected failure count %d, got: %d", want, count)
		}
	}

	feed, err := repo.GetFeed(id)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if feed.ETag != `"v1"` {
		t.Errorf("Failures must preserve caching tokens, got ETag: %s", feed.ETag)
	}
	if feed.LastAttempt == nil {
		t.Error("Expected last_attempt to be recorded")
	}
}

func TestMarkFetchNotModifiedResetsFailures(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFeedRepository(db)
	id := createTestFeed(t, db, "https://example.com/feed.xml")

	if err := repo.MarkFetchSuccess(id, FeedMetadata{ETag: `"v1"`}); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if _, err := repo.MarkFetchFailure(id); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if err := repo.MarkFetchNotModified(id); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	feed, err := repo.GetFeed(id)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if feed.FailureCount != 0 {
		t.Errorf("Expected 304 to reset failure count, got: %d", feed.FailureCount)
	}
	if feed.ETag != `"v1"` {
		t.Errorf("Expected 304 to preserve ETag, got: %s", feed.ETag)
	}
}

func TestGetFeedsToUpdate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFeedRepository(db)

	neverID := createTestFeed(t, db, "https://never.example.com/feed.xml")
	freshID := createTestFeed(t, db, "https://fresh.example.com/feed.xml")
	staleID := createTestFeed(t, db, "https://stale.example.com/feed.xml")

	if err := repo.MarkFetchSuccess(freshID, FeedMetadata{}); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	staleTime := time.Now().UTC().Add(-time.Hour)
	if _, err := db.Exec(`UPDATE feeds SET last_updated = ? WHERE id = ?`, staleTime, staleID); err != nil {
		t.Fatalf("Failed to backdate feed: %v", err)
	}

	feeds, err := repo.GetFeedsToUpdate(15 * time.Minute)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	ids := make(map[int64]bool)
	for _, f := range feeds {
		ids[f.ID] = true
	}

	if !ids[neverID] {
		t.Error("Never-updated feed should be due for update")
	}
	if !ids[staleID] {
		t.Error("Stale feed should be due for update")
	}
	if ids[freshID] {
		t.Error("Fresh feed should not be due for update")
	}
}
