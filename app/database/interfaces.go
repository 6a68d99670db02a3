package database

import (
	"time"
)

type FeedRepository interface {
	CreateFeed(url string) (int64, error)
	GetFeed(id int64) (*Feed, error)
	GetFeedByURL(url string) (*Feed, error)
	ListFeeds() ([]Feed, error)
	GetFeedsToUpdate(maxAge time.Duration) ([]Feed, error)
	GetFeedCount() (int, error)

	MarkFetchSuccess(id int64, meta FeedMetadata) error
	MarkFetchNotModified(id int64) error
	MarkFetchFailure(id int64) (int, error)
}

type ItemRepository interface {
	UpsertItems(feedID int64, items []FeedItem) (inserted int, updated int, err error)
	GetItems(feedID int64, sessionID string, unreadOnly bool, limit, offset int) ([]Item, error)
	GetItem(id int64) (*Item, error)
	GetItemCount(feedID int64) (int, error)
	GetItemsForExtraction(feedID int64, limit int) ([]Item, error)
	UpdateItemContent(id int64, content string) error
}

type SessionRepository interface {
	EnsureSession(id string) error
	Subscribe(sessionID string, feedID int64) error
	Unsubscribe(sessionID string, feedID int64) error
	ListUserFeeds(sessionID string) ([]Feed, error)
	SetItemRead(sessionID string, itemID int64, read bool) error
	SetItemStarred(sessionID string, itemID int64, starred bool) error
	CreateFolder(sessionID, name string) (int64, error)
	AssignItemFolder(sessionID string, itemID, folderID int64) error
}
