package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/feedpane/feedpane/app/database"
	"github.com/feedpane/feedpane/app/update"
)

const sessionCookie = "session_id"

func NewHandler(feedRepo database.FeedRepository, itemRepo database.ItemRepository,
	sessionRepo database.SessionRepository, scheduler update.SchedulerInterface,
	queue *update.Queue, resolver FeedResolver) *Handler {
	return &Handler{
		feedRepo:    feedRepo,
		itemRepo:    itemRepo,
		sessionRepo: sessionRepo,
		scheduler:   scheduler,
		queue:       queue,
		resolver:    resolver,
	}
}

// NewServer creates the HTTP engine with all routes configured.
func NewServer(handler *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(accessLog())

	r.GET("/health", handler.GetHealth)
	r.GET("/stats", handler.GetStats)

	session := r.Group("/")
	session.Use(sessionMiddleware(handler.sessionRepo))
	{
		session.POST("/feeds", handler.SubscribeFeed)
		session.GET("/feeds", handler.ListFeeds)
		session.GET("/feeds/:id/items", handler.GetFeedItems)
		session.POST("/feeds/:id/refresh", handler.RefreshFeed)
		session.DELETE("/feeds/:id", handler.UnsubscribeFeed)
		session.POST("/items/:id/read", handler.SetItemRead)
		session.POST("/items/:id/star", handler.SetItemStarred)
		session.POST("/items/:id/folder", handler.AssignItemFolder)
		session.POST("/folders", handler.CreateFolder)
	}

	return r
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		slog.Info("Request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client", c.ClientIP())
	}
}

// sessionMiddleware gives every browser an anonymous session. There is no
// authentication; the cookie is the whole identity.
func sessionMiddleware(sessions database.SessionRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(sessionCookie)
		if err != nil || uuid.Validate(id) != nil {
			id = uuid.NewString()
			c.SetCookie(sessionCookie, id, int((365 * 24 * time.Hour).Seconds()), "/", "", false, true)
		}

		if err := sessions.EnsureSession(id); err != nil {
			slog.Error("Failed to ensure session", "error", err)
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		c.Set(sessionCookie, id)
		c.Next()
	}
}

func sessionID(c *gin.Context) string {
	return c.GetString(sessionCookie)
}
