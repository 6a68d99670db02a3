package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feedpane/feedpane/app/cfg"
	"github.com/feedpane/feedpane/app/database"
)

const itemsPerPage = 50

// SubscribeFeed accepts a feed URL or a bare website URL, resolves it via
// autodiscovery, registers the feed globally and subscribes the session. The
// actual fetch-and-parse happens in the background worker; the response never
// waits for it.
func (h *Handler) SubscribeFeed(c *gin.Context) {
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	feedURL, err := h.resolver.Resolve(c.Request.Context(), req.URL)
	if err != nil {
		slog.Warn("Feed resolution failed", "url", req.URL, "error", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	feedID, err := h.feedRepo.CreateFeed(feedURL)
	if err != nil {
		slog.Error("Database error", "operation", "create_feed", "url", feedURL, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	if err := h.sessionRepo.Subscribe(sessionID(c), feedID); err != nil {
		slog.Error("Database error", "operation", "subscribe", "feed_id", feedID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	h.scheduler.EnqueueIfStale(feedID, 0)

	c.JSON(http.StatusCreated, gin.H{"id": feedID, "url": feedURL})
}

func (h *Handler) ListFeeds(c *gin.Context) {
	feeds, err := h.sessionRepo.ListUserFeeds(sessionID(c))
	if err != nil {
		slog.Error("Database error", "operation", "list_user_feeds", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	out := make([]gin.H, 0, len(feeds))
	for _, f := range feeds {
		out = append(out, feedJSON(f))
	}

	c.JSON(http.StatusOK, gin.H{"feeds": out})
}

// feedJSON renders a feed for the reader, including the stale-but-available
// contract: a feed that never succeeded still renders, with its last attempt
// and failure count instead of content timestamps.
func feedJSON(f database.Feed) gin.H {
	out := gin.H{
		"id":            f.ID,
		"url":           f.URL,
		"title":         f.Title,
		"description":   f.Description,
		"failure_count": f.FailureCount,
	}
	if f.LastUpdated != nil {
		out["last_updated"] = f.LastUpdated.Format(time.RFC3339)
	}
	if f.LastAttempt != nil {
		out["last_attempt"] = f.LastAttempt.Format(time.RFC3339)
	}
	return out
}

// GetFeedItems serves a page of items and, as a side effect, queues a
// background refresh when the feed has gone stale. The page always reflects
// whatever is currently stored.
func (h *Handler) GetFeedItems(c *gin.Context) {
	feedID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	unreadOnly := c.Query("unread") == "1"

	staleAfter := time.Duration(cfg.Get().StaleAfter) * time.Second
	h.scheduler.EnqueueIfStale(feedID, staleAfter)

	items, err := h.itemRepo.GetItems(feedID, sessionID(c), unreadOnly, itemsPerPage, (page-1)*itemsPerPage)
	if err != nil {
		slog.Error("Database error", "operation", "get_items", "feed_id", feedID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	out := make([]gin.H, 0, len(items))
	for _, item := range items {
		out = append(out, gin.H{
			"id":          item.ID,
			"feed_id":     item.FeedID,
			"title":       item.Title,
			"link":        item.Link,
			"description": item.Description,
			"content":     item.Content,
			"published":   item.Published.Format(time.RFC3339),
			"is_read":     item.IsRead,
			"starred":     item.Starred,
		})
	}

	c.JSON(http.StatusOK, gin.H{"items": out, "page": page})
}

// RefreshFeed queues an immediate user-triggered refresh.
func (h *Handler) RefreshFeed(c *gin.Context) {
	feedID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	h.scheduler.EnqueueIfStale(feedID, 0)
	c.Status(http.StatusAccepted)
}

func (h *Handler) UnsubscribeFeed(c *gin.Context) {
	feedID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	if err := h.sessionRepo.Unsubscribe(sessionID(c), feedID); err != nil {
		slog.Error("Database error", "operation", "unsubscribe", "feed_id", feedID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) SetItemRead(c *gin.Context) {
	h.setItemFlag(c, h.sessionRepo.SetItemRead)
}

func (h *Handler) SetItemStarred(c *gin.Context) {
	h.setItemFlag(c, h.sessionRepo.SetItemStarred)
}

func (h *Handler) setItemFlag(c *gin.Context, set func(string, int64, bool) error) {
	itemID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	var req flagRequest
	_ = c.ShouldBindJSON(&req)
	value := true
	if req.Value != nil {
		value = *req.Value
	}

	if err := set(sessionID(c), itemID, value); err != nil {
		slog.Error("Database error", "operation", "set_item_flag", "item_id", itemID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) CreateFolder(c *gin.Context) {
	var req folderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	id, err := h.sessionRepo.CreateFolder(sessionID(c), req.Name)
	if err != nil {
		slog.Error("Database error", "operation", "create_folder", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id, "name": req.Name})
}

func (h *Handler) AssignItemFolder(c *gin.Context) {
	itemID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	var req assignFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "folder_id is required"})
		return
	}

	if err := h.sessionRepo.AssignItemFolder(sessionID(c), itemID, req.FolderID); err != nil {
		slog.Error("Database error", "operation", "assign_folder", "item_id", itemID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := gin.H{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   cfg.Get().Version,
	}

	if feedCount, err := h.feedRepo.GetFeedCount(); err == nil {
		health["feeds"] = feedCount
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := gin.H{
		"queue_depth": h.queue.Depth(),
	}

	if feedCount, err := h.feedRepo.GetFeedCount(); err == nil {
		stats["feeds"] = feedCount
	}

	c.JSON(http.StatusOK, stats)
}
