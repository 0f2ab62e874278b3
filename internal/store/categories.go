package store

import (
	"database/sql"
	"fmt"
)

// ContentType partitions categories and their cache scopes.
type ContentType string

const (
	ContentLive   ContentType = "live"
	ContentVOD    ContentType = "vod"
	ContentSeries ContentType = "series"
)

// DefaultCategoryID is the sentinel local category used when a remote
// category id cannot be mapped. Catalog completeness beats strict
// categorization: the row is kept, just uncategorized.
const DefaultCategoryID int64 = 0

// Category is one remote category scoped to a server and content type.
type Category struct {
	ServerID    int64
	CategoryID  int64 // remote id
	Name        string
	ParentID    sql.NullInt64
	ContentType ContentType
}

// CategoryExists reports whether (server, remote id, content type) is present.
func (s *Store) CategoryExists(serverID, categoryID int64, ct ContentType) (bool, error) {
	var one int
	err := s.db.QueryRow(`
		SELECT 1 FROM categories
		WHERE server_id = ? AND category_id = ? AND content_type = ?`,
		serverID, categoryID, ct).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: category exists: %w", err)
	}
	return true, nil
}

// InsertCategories inserts the batch in one transaction and returns the
// number inserted. Callers are expected to have filtered out existing rows.
func (s *Store) InsertCategories(cats []Category) (int, error) {
	if len(cats) == 0 {
		return 0, nil
	}
	inserted := 0
	err := s.withWriteTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO categories (server_id, category_id, category_name, parent_id, content_type)
			VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("store: prepare category insert: %w", err)
		}
		defer stmt.Close()
		for _, c := range cats {
			if _, err := stmt.Exec(c.ServerID, c.CategoryID, c.Name, c.ParentID, c.ContentType); err != nil {
				return fmt.Errorf("store: insert category %q: %w", c.Name, err)
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// CategoryMapping returns remote category id -> local row id for one server
// and content type. Built fresh per sync pass; categories are cheap to
// enumerate locally. The same remote-id column (categories.category_id) is
// used for all three content types.
func (s *Store) CategoryMapping(serverID int64, ct ContentType) (map[int64]int64, error) {
	rows, err := s.db.Query(`
		SELECT category_id, id FROM categories
		WHERE server_id = ? AND content_type = ?`, serverID, ct)
	if err != nil {
		return nil, fmt.Errorf("store: category mapping: %w", err)
	}
	defer rows.Close()
	m := make(map[int64]int64)
	for rows.Next() {
		var remote, local int64
		if err := rows.Scan(&remote, &local); err != nil {
			return nil, fmt.Errorf("store: scan category mapping: %w", err)
		}
		m[remote] = local
	}
	return m, rows.Err()
}
