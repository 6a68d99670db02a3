package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/feedpane/feedpane/app/cfg"
	"github.com/feedpane/feedpane/app/database"
	"github.com/feedpane/feedpane/app/update"
)

type MockFeedRepository struct {
	feeds map[int64]*database.Feed
}

func (m *MockFeedRepository) CreateFeed(url string) (int64, error) {
	for id, f := range m.feeds {
		if f.URL == url {
			return id, nil
		}
	}
	id := int64(len(m.feeds) + 1)
	if m.feeds == nil {
		m.feeds = make(map[int64]*database.Feed)
	}
	m.feeds[id] = &database.Feed{ID: id, URL: url}
	return id, nil
}

func (m *MockFeedRepository) GetFeed(id int64) (*database.Feed, error) {
	return m.feeds[id], nil
}
func (m *MockFeedRepository) GetFeedByURL(url string) (*database.Feed, error) { return nil, nil }
func (m *MockFeedRepository) ListFeeds() ([]database.Feed, error)             { return nil, nil }
func (m *MockFeedRepository) GetFeedsToUpdate(maxAge time.Duration) ([]database.Feed, error) {
	return nil, nil
}
func (m *MockFeedRepository) GetFeedCount() (int, error) { return len(m.feeds), nil }
func (m *MockFeedRepository) MarkFetchSuccess(id int64, meta database.FeedMetadata) error {
	return nil
}
func (m *MockFeedRepository) MarkFetchNotModified(id int64) error { return nil }
func (m *MockFeedRepository) MarkFetchFailure(id int64) (int, error) {
	return 0, nil
}

type MockItemRepository struct {
	items []database.Item
}

func (m *MockItemRepository) UpsertItems(feedID int64, items []database.FeedItem) (int, int, error) {
	return 0, 0, nil
}

func (m *MockItemRepository) GetItems(feedID int64, sessionID string, unreadOnly bool, limit, offset int) ([]database.Item, error) {
	if offset >= len(m.items) {
		return nil, nil
	}
	end := offset + limit
	if end > len(m.items) {
		end = len(m.items)
	}
	return m.items[offset:end], nil
}

func (m *MockItemRepository) GetItem(id int64) (*database.Item, error) { return nil, nil }
func (m *MockItemRepository) GetItemCount(feedID int64) (int, error)   { return len(m.items), nil }
func (m *MockItemRepository) GetItemsForExtraction(feedID int64, limit int) ([]database.Item, error) {
	return nil, nil
}
func (m *MockItemRepository) UpdateItemContent(id int64, content string) error { return nil }

type MockSessionRepository struct {
	mu            sync.Mutex
	sessions      map[string]bool
	subscriptions map[string][]int64
	readCalls     []bool
	starCalls     []bool
}

func (m *MockSessionRepository) EnsureSession(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions == nil {
		m.sessions = make(map[string]bool)
	}
	m.sessions[id] = true
	return nil
}

func (m *MockSessionRepository) Subscribe(sessionID string, feedID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscriptions == nil {
		m.subscriptions = make(map[string][]int64)
	}
	m.subscriptions[sessionID] = append(m.subscriptions[sessionID], feedID)
	return nil
}

func (m *MockSessionRepository) Unsubscribe(sessionID string, feedID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []int64
	for _, id := range m.subscriptions[sessionID] {
		if id != feedID {
			kept = append(kept, id)
		}
	}
	m.subscriptions[sessionID] = kept
	return nil
}

func (m *MockSessionRepository) ListUserFeeds(sessionID string) ([]database.Feed, error) {
	old := time.Date(2023, 7, 3, 10, 0, 0, 0, time.UTC)
	var feeds []database.Feed
	for _, id := range m.subscriptions[sessionID] {
		feeds = append(feeds, database.Feed{
			ID: id, URL: "https://example.com/feed.xml", Title: "Example",
			LastUpdated: &old,
		})
	}
	return feeds, nil
}

func (m *MockSessionRepository) SetItemRead(sessionID string, itemID int64, read bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readCalls = append(m.readCalls, read)
	return nil
}

func (m *MockSessionRepository) SetItemStarred(sessionID string, itemID int64, starred bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starCalls = append(m.starCalls, starred)
	return nil
}

func (m *MockSessionRepository) CreateFolder(sessionID, name string) (int64, error) { return 7, nil }
func (m *MockSessionRepository) AssignItemFolder(sessionID string, itemID, folderID int64) error {
	return nil
}

// MockScheduler records staleness checks instead of queuing work.
type MockScheduler struct {
	mu    sync.Mutex
	calls []schedulerCall
}

type schedulerCall struct {
	feedID int64
	maxAge time.Duration
}

func (m *MockScheduler) EnqueueIfStale(feedID int64, maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, schedulerCall{feedID: feedID, maxAge: maxAge})
}

func (m *MockScheduler) SweepAll(maxAge time.Duration) {}

func (m *MockScheduler) Calls() []schedulerCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]schedulerCall(nil), m.calls...)
}

// MockResolver maps submitted URLs straight through, or fails.
type MockResolver struct {
	resolved string
	err      error
}

func (m *MockResolver) Resolve(ctx context.Context, rawURL string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if m.resolved != "" {
		return m.resolved, nil
	}
	return rawURL, nil
}

type testEnv struct {
	router      *gin.Engine
	feedRepo    *MockFeedRepository
	itemRepo    *MockItemRepository
	sessionRepo *MockSessionRepository
	scheduler   *MockScheduler
	resolver    *MockResolver
}

func setupAPITest(t *testing.T) *testEnv {
	t.Helper()

	cfg.Set(&cfg.Cfg{
		StaleAfter: 900,
		Version:    "test",
	})

	env := &testEnv{
		feedRepo:    &MockFeedRepository{},
		itemRepo:    &MockItemRepository{},
		sessionRepo: &MockSessionRepository{},
		scheduler:   &MockScheduler{},
		resolver:    &MockResolver{},
	}

	handler := NewHandler(env.feedRepo, env.itemRepo, env.sessionRepo,
		env.scheduler, update.NewQueue(), env.resolver)
	env.router = NewServer(handler)

	return env
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSubscribeFeed(t *testing.T) {
	env := setupAPITest(t)
	env.resolver.resolved = "https://example.com/feed.xml"

	w := doRequest(env.router, "POST", "/feeds", `{"url": "example.com"}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got: %d (%s)", w.Code, w.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp["url"] != "https://example.com/feed.xml" {
		t.Errorf("Expected resolved feed URL in response, got: %v", resp["url"])
	}

	// Subscribing must trigger an immediate background refresh, not block on it.
	calls := env.scheduler.Calls()
	if len(calls) != 1 {
		t.Fatalf("Expected 1 scheduler call, got: %d", len(calls))
	}
	if calls[0].maxAge != 0 {
		t.Errorf("Expected forced refresh (maxAge 0), got: %v", calls[0].maxAge)
	}
}

func TestSubscribeFeedMissingURL(t *testing.T) {
	env := setupAPITest(t)

	w := doRequest(env.router, "POST", "/feeds", `{}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got: %d", w.Code)
	}
}

func TestSubscribeFeedResolutionFails(t *testing.T) {
	env := setupAPITest(t)
	env.resolver.err = fmt.Errorf("no feed found at https://example.com")

	w := doRequest(env.router, "POST", "/feeds", `{"url": "example.com"}`)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected status 422, got: %d", w.Code)
	}
	if len(env.sessionRepo.subscriptions) != 0 {
		t.Error("Failed resolution must not create a subscription")
	}
}

func TestSessionCookieIssuedOnFirstRequest(t *testing.T) {
	env := setupAPITest(t)

	w := doRequest(env.router, "GET", "/feeds", "")

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got: %d", w.Code)
	}

	var issued string
	for _, c := range w.Result().Cookies() {
		if c.Name == "session_id" {
			issued = c.Value
		}
	}
	if issued == "" {
		t.Fatal("Expected a session cookie to be issued")
	}
	if uuid.Validate(issued) != nil {
		t.Errorf("Expected a UUID session id, got: %s", issued)
	}
	if !env.sessionRepo.sessions[issued] {
		t.Error("Expected the issued session to be persisted")
	}
}

func TestSessionCookieReused(t *testing.T) {
	env := setupAPITest(t)
	existing := uuid.NewString()

	req := httptest.NewRequest("GET", "/feeds", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: existing})
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	for _, c := range w.Result().Cookies() {
		if c.Name == "session_id" {
			t.Errorf("Valid session cookie must not be reissued, got: %s", c.Value)
		}
	}
	if !env.sessionRepo.sessions[existing] {
		t.Error("Expected the existing session to be touched")
	}
}

func TestGetFeedItemsTriggersStalenessCheck(t *testing.T) {
	env := setupAPITest(t)
	env.itemRepo.items = []database.Item{
		{ID: 1, FeedID: 3, GUID: "a", Title: "A", Published: time.Now()},
		{ID: 2, FeedID: 3, GUID: "b", Title: "B", Published: time.Now()},
	}

	w := doRequest(env.router, "GET", "/feeds/3/items", "")

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got: %d", w.Code)
	}

	var resp struct {
		Items []map[string]any `json:"items"`
		Page  int              `json:"page"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(resp.Items) != 2 {
		t.Errorf("Expected 2 items, got: %d", len(resp.Items))
	}
	if resp.Page != 1 {
		t.Errorf("Expected page 1, got: %d", resp.Page)
	}

	calls := env.scheduler.Calls()
	if len(calls) != 1 {
		t.Fatalf("Expected a staleness check on view, got %d calls", len(calls))
	}
	if calls[0].feedID != 3 {
		t.Errorf("Expected staleness check for feed 3, got: %d", calls[0].feedID)
	}
	if calls[0].maxAge != 900*time.Second {
		t.Errorf("Expected configured staleness threshold, got: %v", calls[0].maxAge)
	}
}

func TestRefreshFeed(t *testing.T) {
	env := setupAPITest(t)

	w := doRequest(env.router, "POST", "/feeds/5/refresh", "")

	if w.Code != http.StatusAccepted {
		t.Errorf("Expected status 202, got: %d", w.Code)
	}

	calls := env.scheduler.Calls()
	if len(calls) != 1 || calls[0].feedID != 5 || calls[0].maxAge != 0 {
		t.Errorf("Expected forced refresh for feed 5, got: %+v", calls)
	}
}

func TestListFeedsIncludesHealthFields(t *testing.T) {
	env := setupAPITest(t)
	env.resolver.resolved = "https://example.com/feed.xml"

	// Subscribe and list within one session.
	w := doRequest(env.router, "POST", "/feeds", `{"url": "example.com"}`)
	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "session_id" {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("Expected a session cookie")
	}

	req := httptest.NewRequest("GET", "/feeds", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	var resp struct {
		Feeds []map[string]any `json:"feeds"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(resp.Feeds) != 1 {
		t.Fatalf("Expected 1 feed, got: %d", len(resp.Feeds))
	}

	f := resp.Feeds[0]
	if _, ok := f["failure_count"]; !ok {
		t.Error("Expected failure_count in feed payload")
	}
	if _, ok := f["last_updated"]; !ok {
		t.Error("Expected last_updated in feed payload")
	}
}

func TestSetItemReadDefaultsToTrue(t *testing.T) {
	env := setupAPITest(t)

	w := doRequest(env.router, "POST", "/items/9/read", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got: %d", w.Code)
	}

	if len(env.sessionRepo.readCalls) != 1 || !env.sessionRepo.readCalls[0] {
		t.Errorf("Expected read=true recorded, got: %v", env.sessionRepo.readCalls)
	}
}

func TestSetItemReadExplicitFalse(t *testing.T) {
	env := setupAPITest(t)

	w := doRequest(env.router, "POST", "/items/9/read", `{"value": false}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got: %d", w.Code)
	}

	if len(env.sessionRepo.readCalls) != 1 || env.sessionRepo.readCalls[0] {
		t.Errorf("Expected read=false recorded, got: %v", env.sessionRepo.readCalls)
	}
}

func TestCreateFolder(t *testing.T) {
	env := setupAPITest(t)

	w := doRequest(env.router, "POST", "/folders", `{"name": "Reading List"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got: %d", w.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp["name"] != "Reading List" {
		t.Errorf("Expected folder name echoed, got: %v", resp["name"])
	}
}

func TestGetHealth(t *testing.T) {
	env := setupAPITest(t)

	w := doRequest(env.router, "GET", "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got: %d", w.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp["version"] != "test" {
		t.Errorf("Expected version from configuration, got: %v", resp["version"])
	}
}
