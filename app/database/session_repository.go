package database

import (
	"fmt"
)

var _ SessionRepository = (*SessionRepositoryImpl)(nil)

type SessionRepositoryImpl struct {
	db *DB
}

func NewSessionRepository(db *DB) *SessionRepositoryImpl {
	return &SessionRepositoryImpl{db: db}
}

// EnsureSession creates the session row if needed and bumps last_accessed.
func (r *SessionRepositoryImpl) EnsureSession(id string) error {
	_, err := r.db.Exec(`
		INSERT INTO sessions (id) VALUES (?)
		ON CONFLICT (id) DO UPDATE SET last_accessed = CURRENT_TIMESTAMP
	`, id)
	if err != nil {
		return fmt.Errorf("failed to ensure session: %w", err)
	}
	return nil
}

func (r *SessionRepositoryImpl) Subscribe(sessionID string, feedID int64) error {
	_, err := r.db.Exec(`
		INSERT INTO user_feeds (session_id, feed_id) VALUES (?, ?)
		ON CONFLICT (session_id, feed_id) DO NOTHING
	`, sessionID, feedID)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	return nil
}

func (r *SessionRepositoryImpl) Unsubscribe(sessionID string, feedID int64) error {
	// The feed row itself stays; other sessions may still reference it and
	// feed retention is not this layer's call.
	_, err := r.db.Exec(`
		DELETE FROM user_feeds WHERE session_id = ? AND feed_id = ?
	`, sessionID, feedID)
	if err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}
	return nil
}

func (r *SessionRepositoryImpl) ListUserFeeds(sessionID string) ([]Feed, error) {
	rows, err := r.db.Query(`
		SELECT f.id, f.url, f.title, f.description, f.etag, f.last_modified,
		       f.last_updated, f.last_attempt, f.failure_count, f.created_at
		FROM feeds f
		JOIN user_feeds uf ON uf.feed_id = f.id
		WHERE uf.session_id = ?
		ORDER BY f.title, f.url
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user feeds: %w", err)
	}
	defer rows.Close()

	return collectFeeds(rows)
}

func (r *SessionRepositoryImpl) SetItemRead(sessionID string, itemID int64, read bool) error {
	_, err := r.db.Exec(`
		INSERT INTO user_items (session_id, item_id, is_read) VALUES (?, ?, ?)
		ON CONFLICT (session_id, item_id) DO UPDATE SET
			is_read = excluded.is_read,
			marked_at = CURRENT_TIMESTAMP
	`, sessionID, itemID, read)
	if err != nil {
		return fmt.Errorf("failed to set item read state: %w", err)
	}
	return nil
}

func (r *SessionRepositoryImpl) SetItemStarred(sessionID string, itemID int64, starred bool) error {
	_, err := r.db.Exec(`
		INSERT INTO user_items (session_id, item_id, starred) VALUES (?, ?, ?)
		ON CONFLICT (session_id, item_id) DO UPDATE SET
			starred = excluded.starred,
			marked_at = CURRENT_TIMESTAMP
	`, sessionID, itemID, starred)
	if err != nil {
		return fmt.Errorf("failed to set item starred state: %w", err)
	}
	return nil
}

func (r *SessionRepositoryImpl) CreateFolder(sessionID, name string) (int64, error) {
	res, err := r.db.Exec(`
		INSERT INTO folders (session_id, name) VALUES (?, ?)
	`, sessionID, name)
	if err != nil {
		return 0, fmt.Errorf("failed to create folder: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get folder id: %w", err)
	}

	return id, nil
}

func (r *SessionRepositoryImpl) AssignItemFolder(sessionID string, itemID, folderID int64) error {
	_, err := r.db.Exec(`
		INSERT INTO user_items (session_id, item_id, folder_id) VALUES (?, ?, ?)
		ON CONFLICT (session_id, item_id) DO UPDATE SET
			folder_id = excluded.folder_id,
			marked_at = CURRENT_TIMESTAMP
	`, sessionID, itemID, folderID)
	if err != nil {
		return fmt.Errorf("failed to assign item folder: %w", err)
	}
	return nil
}
