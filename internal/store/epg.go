package store

import (
	"database/sql"
	"fmt"
)

// EpgEntry is one programme row. The guide is a full snapshot with no stable
// revision marker, so imports replace the whole table rather than merging.
type EpgEntry struct {
	ChannelID   string
	StartTime   string // local normalized form, "YYYY-MM-DD HH:MM:SS"
	StopTime    string
	Title       string
	Description string
	Lang        string
	Category    string
	Icon        string
}

// ReplaceEPG deletes all existing programme rows and bulk-inserts the new set
// in a single transaction: a failure anywhere leaves the previous guide
// intact. Duplicate (channel, start, title) tuples within the input are
// collapsed by the table's UNIQUE constraint via INSERT OR IGNORE.
func (s *Store) ReplaceEPG(entries []EpgEntry) (int, error) {
	inserted := 0
	err := s.withWriteTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM epg_data"); err != nil {
			return fmt.Errorf("store: clear epg: %w", err)
		}
		stmt, err := tx.Prepare(`
			INSERT OR IGNORE INTO epg_data
				(channel_id, start_time, stop_time, title, description, lang, category, icon)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("store: prepare epg insert: %w", err)
		}
		defer stmt.Close()
		for _, e := range entries {
			res, err := stmt.Exec(e.ChannelID, e.StartTime, e.StopTime, e.Title,
				e.Description, e.Lang, e.Category, e.Icon)
			if err != nil {
				return fmt.Errorf("store: insert epg entry: %w", err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// EpgCount returns the number of programme rows.
func (s *Store) EpgCount() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(id) FROM epg_data").Scan(&n); err != nil {
		return 0, fmt.Errorf("store: epg count: %w", err)
	}
	return n, nil
}
