package store

import (
	"database/sql"
	"fmt"
)

// Series is one series row as created by the listing sync.
type Series struct {
	ServerID     int64
	CategoryID   int64 // local category row id (DefaultCategoryID when unmapped)
	SeriesID     int64 // remote id
	Name         string
	Cover        string
	Plot         string
	Cast         string
	Director     string
	Genre        string
	Rating       float64
	ReleaseDate  string
	LastModified string
}

// SeriesExists reports whether (server, remote series id) is present.
func (s *Store) SeriesExists(serverID, seriesID int64) (bool, error) {
	return s.pairExists("series", "series_id", serverID, seriesID)
}

// InsertSeries inserts the batch in one transaction and returns the
// number inserted.
func (s *Store) InsertSeries(list []Series) (int, error) {
	if len(list) == 0 {
		return 0, nil
	}
	inserted := 0
	err := s.withWriteTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO series (
				server_id, category_id, series_id, name, cover, plot, "cast",
				director, genre, rating, release_date, last_modified
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("store: prepare series insert: %w", err)
		}
		defer stmt.Close()
		for _, se := range list {
			if _, err := stmt.Exec(
				se.ServerID, se.CategoryID, se.SeriesID, se.Name, se.Cover, se.Plot, se.Cast,
				se.Director, se.Genre, se.Rating, se.ReleaseDate, se.LastModified,
			); err != nil {
				return fmt.Errorf("store: insert series %q: %w", se.Name, err)
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

// SeriesRef identifies a series row for enrichment. LastModified carries the
// provider's epoch-seconds marker used for cache freshness comparison.
type SeriesRef struct {
	ServerID     int64
	SeriesID     int64
	LastModified string
}

// AllSeries returns every series row; series enrichment is unconditional,
// gated only by per-item cache freshness against LastModified.
func (s *Store) AllSeries() ([]SeriesRef, error) {
	rows, err := s.db.Query(`SELECT server_id, series_id, IFNULL(last_modified, '') FROM series`)
	if err != nil {
		return nil, fmt.Errorf("store: all series: %w", err)
	}
	defer rows.Close()
	var out []SeriesRef
	for rows.Next() {
		var r SeriesRef
		if err := rows.Scan(&r.ServerID, &r.SeriesID, &r.LastModified); err != nil {
			return nil, fmt.Errorf("store: scan series ref: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SeriesMetadata is the fully-populated enrichment column set for one series.
type SeriesMetadata struct {
	Rating5Based   float64
	BackdropPath   string
	YoutubeTrailer string
	TMDBID         string
	EpisodeRunTime string
	CategoryID     int64 // local category row id
	CategoryIDs    string
}

// UpdateSeriesMetadata overwrites the enrichment columns of one series row.
func (s *Store) UpdateSeriesMetadata(serverID, seriesID int64, m SeriesMetadata) (int64, error) {
	var affected int64
	err := s.withWriteTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			UPDATE series SET
				rating_5based = ?, backdrop_path = ?, youtube_trailer = ?,
				tmdb_id = ?, episode_run_time = ?, category_id = ?, category_ids = ?
			WHERE server_id = ? AND series_id = ?`,
			m.Rating5Based, m.BackdropPath, m.YoutubeTrailer,
			m.TMDBID, m.EpisodeRunTime, m.CategoryID, m.CategoryIDs,
			serverID, seriesID)
		if err != nil {
			return fmt.Errorf("store: update series metadata %d: %w", seriesID, err)
		}
		affected, _ = res.RowsAffected()
		return nil
	})
	return affected, err
}
