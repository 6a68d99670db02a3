package database

import (
	"database/sql"
	"fmt"
)

var _ ItemRepository = (*ItemRepositoryImpl)(nil)

type ItemRepositoryImpl struct {
	db *DB
}

func NewItemRepository(db *DB) *ItemRepositoryImpl {
	return &ItemRepositoryImpl{db: db}
}

// UpsertItems applies one parse cycle's items in a single transaction keyed by
// (feed_id, guid). Re-delivering the same items is idempotent; either every
// item from the cycle commits or none do.
func (r *ItemRepositoryImpl) UpsertItems(feedID int64, items []FeedItem) (int, int, error) {
	if len(items) == 0 {
		return 0, 0, nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	existsStmt, err := tx.Prepare(`SELECT 1 FROM feed_items WHERE feed_id = ? AND guid = ?`)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to prepare exists statement: %w", err)
	}
	defer existsStmt.Close()

	upsertStmt, err := tx.Prepare(`
		INSERT INTO feed_items (feed_id, guid, title, link, description, content, published)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (feed_id, guid) DO UPDATE SET
			title = excluded.title,
			link = excluded.link,
			description = excluded.description,
			content = CASE WHEN excluded.content != '' THEN excluded.content ELSE content END,
			published = excluded.published
	`)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to prepare upsert statement: %w", err)
	}
	defer upsertStmt.Close()

	inserted := 0
	updated := 0

	for _, item := range items {
		var one int
		err := existsStmt.QueryRow(feedID, item.GUID).Scan(&one)
		switch {
		case err == sql.ErrNoRows:
			inserted++
		case err != nil:
			return 0, 0, fmt.Errorf("failed to check existing item: %w", err)
		default:
			updated++
		}

		_, err = upsertStmt.Exec(feedID, item.GUID, item.Title, item.Link,
			item.Description, item.Content, item.Published.UTC())
		if err != nil {
			return 0, 0, fmt.Errorf("failed to upsert item %q: %w", item.GUID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit items: %w", err)
	}

	return inserted, updated, nil
}

const itemColumns = `i.id, i.feed_id, i.guid, i.title, i.link, i.description,
       i.content, i.published, i.created_at`

// GetItems returns a page of items for a feed, newest first with stable
// tie-breaking by id, joined against the session's read/star state.
func (r *ItemRepositoryImpl) GetItems(feedID int64, sessionID string, unreadOnly bool, limit, offset int) ([]Item, error) {
	query := `
		SELECT ` + itemColumns + `,
		       COALESCE(u.is_read, FALSE), COALESCE(u.starred, FALSE)
		FROM feed_items i
		LEFT JOIN user_items u ON u.item_id = i.id AND u.session_id = ?
		WHERE i.feed_id = ?`

	if unreadOnly {
		query += ` AND COALESCE(u.is_read, FALSE) = FALSE`
	}

	query += `
		ORDER BY i.published DESC, i.id DESC
		LIMIT ? OFFSET ?`

	rows, err := r.db.Query(query, sessionID, feedID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		err := rows.Scan(
			&item.ID, &item.FeedID, &item.GUID, &item.Title, &item.Link,
			&item.Description, &item.Content, &item.Published, &item.CreatedAt,
			&item.IsRead, &item.Starred,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item rows: %w", err)
	}

	return items, nil
}

func (r *ItemRepositoryImpl) GetItem(id int64) (*Item, error) {
	var item Item
	err := r.db.QueryRow(`
		SELECT `+itemColumns+`
		FROM feed_items i
		WHERE i.id = ?
	`, id).Scan(
		&item.ID, &item.FeedID, &item.GUID, &item.Title, &item.Link,
		&item.Description, &item.Content, &item.Published, &item.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	return &item, nil
}

func (r *ItemRepositoryImpl) GetItemCount(feedID int64) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM feed_items WHERE feed_id = ?`, feedID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get item count: %w", err)
	}
	return count, nil
}

// GetItemsForExtraction returns recent items that still carry only a teaser:
// a link to fetch but no extracted content.
func (r *ItemRepositoryImpl) GetItemsForExtraction(feedID int64, limit int) ([]Item, error) {
	rows, err := r.db.Query(`
		SELECT `+itemColumns+`
		FROM feed_items i
		WHERE i.feed_id = ? AND i.content = '' AND i.link != ''
		ORDER BY i.published DESC, i.id DESC
		LIMIT ?
	`, feedID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get items for extraction: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		err := rows.Scan(
			&item.ID, &item.FeedID, &item.GUID, &item.Title, &item.Link,
			&item.Description, &item.Content, &item.Published, &item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item rows: %w", err)
	}

	return items, nil
}

func (r *ItemRepositoryImpl) UpdateItemContent(id int64, content string) error {
	_, err := r.db.Exec(`UPDATE feed_items SET content = ? WHERE id = ?`, content, id)
	if err != nil {
		return fmt.Errorf("failed to update item content: %w", err)
	}
	return nil
}
