package api

import (
	"github.com/feedpane/feedpane/app/database"
	"github.com/feedpane/feedpane/app/update"
)

type Handler struct {
	feedRepo    database.FeedRepository
	itemRepo    database.ItemRepository
	sessionRepo database.SessionRepository
	scheduler   update.SchedulerInterface
	queue       *update.Queue
	resolver    FeedResolver
}

type subscribeRequest struct {
	URL string `json:"url" binding:"required"`
}

type folderRequest struct {
	Name string `json:"name" binding:"required"`
}

type assignFolderRequest struct {
	FolderID int64 `json:"folder_id" binding:"required"`
}

type flagRequest struct {
	// Defaults to true so a bare POST marks the flag on.
	Value *bool `json:"value"`
}
