package store

import (
	"database/sql"
	"fmt"
)

// LiveChannel is one live stream row as created by the listing sync.
type LiveChannel struct {
	ServerID          int64
	CategoryID        int64 // local category row id (DefaultCategoryID when unmapped)
	StreamID          int64 // remote id
	Name              string
	StreamType        string
	StreamIcon        string
	EpgChannelID      string
	TVArchive         int
	DirectSource      string
	TVArchiveDuration int
}

// LiveExists reports whether (server, remote stream id) is present.
func (s *Store) LiveExists(serverID, streamID int64) (bool, error) {
	return s.pairExists("live_streams", "stream_id", serverID, streamID)
}

// InsertLiveChannels inserts the batch in one transaction and returns the
// number inserted.
func (s *Store) InsertLiveChannels(chans []LiveChannel) (int, error) {
	if len(chans) == 0 {
		return 0, nil
	}
	inserted := 0
	err := s.withWriteTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO live_streams (
				server_id, category_id, stream_id, name, stream_type,
				stream_icon, epg_channel_id, tv_archive, direct_source, tv_archive_duration
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("store: prepare live insert: %w", err)
		}
		defer stmt.Close()
		for _, c := range chans {
			if _, err := stmt.Exec(
				c.ServerID, c.CategoryID, c.StreamID, c.Name, c.StreamType,
				c.StreamIcon, c.EpgChannelID, c.TVArchive, c.DirectSource, c.TVArchiveDuration,
			); err != nil {
				return fmt.Errorf("store: insert live %q: %w", c.Name, err)
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

// pairExists is the shared (server_id, remote id) existence check.
func (s *Store) pairExists(table, idCol string, serverID, remoteID int64) (bool, error) {
	var one int
	// table and idCol come from fixed call sites, never user input.
	q := fmt.Sprintf("SELECT 1 FROM %s WHERE server_id = ? AND %s = ?", table, idCol)
	err := s.db.QueryRow(q, serverID, remoteID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: %s exists: %w", table, err)
	}
	return true, nil
}
