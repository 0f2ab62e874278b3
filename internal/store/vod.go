package store

import (
	"database/sql"
	"fmt"
)

// VODTitle is one movie row as created by the listing sync. Enrichment later
// fills the remaining columns in place (see VODMetadata).
type VODTitle struct {
	ServerID           int64
	CategoryID         int64 // local category row id (DefaultCategoryID when unmapped)
	StreamID           int64 // remote id
	Name               string
	StreamIcon         string
	Rating             float64
	Rating5Based       float64
	Added              string
	ContainerExtension string
	CustomSID          string
	DirectSource       string
	Plot               string
	Cast               string
	Director           string
	Genre              string
	ReleaseDate        string
	Year               int // release year; 0 when neither date nor title carries one
	DurationSecs       int64
	Duration           string
	VideoQuality       string
}

// VODExists reports whether (server, remote stream id) is present.
func (s *Store) VODExists(serverID, streamID int64) (bool, error) {
	return s.pairExists("vod_streams", "stream_id", serverID, streamID)
}

// InsertVODTitles inserts the batch in one transaction and returns the
// number inserted.
func (s *Store) InsertVODTitles(titles []VODTitle) (int, error) {
	if len(titles) == 0 {
		return 0, nil
	}
	inserted := 0
	err := s.withWriteTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO vod_streams (
				server_id, category_id, stream_id, name, stream_icon, rating, rating_5based,
				added, container_extension, custom_sid, direct_source, plot, "cast", director,
				genre, release_date, year, duration_secs, duration, video_quality
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("store: prepare vod insert: %w", err)
		}
		defer stmt.Close()
		for _, t := range titles {
			if _, err := stmt.Exec(
				t.ServerID, t.CategoryID, t.StreamID, t.Name, t.StreamIcon, t.Rating, t.Rating5Based,
				t.Added, t.ContainerExtension, t.CustomSID, t.DirectSource, t.Plot, t.Cast, t.Director,
				t.Genre, t.ReleaseDate, t.Year, t.DurationSecs, t.Duration, t.VideoQuality,
			); err != nil {
				return fmt.Errorf("store: insert vod %q: %w", t.Name, err)
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

// VODRef identifies a movie row for enrichment.
type VODRef struct {
	ServerID int64
	StreamID int64
}

// VODMissingMetadata returns movies that have not been enriched yet
// (no external metadata identifier).
func (s *Store) VODMissingMetadata() ([]VODRef, error) {
	rows, err := s.db.Query(`
		SELECT server_id, stream_id FROM vod_streams
		WHERE tmdb_id IS NULL OR tmdb_id = ''`)
	if err != nil {
		return nil, fmt.Errorf("store: vod missing metadata: %w", err)
	}
	defer rows.Close()
	var out []VODRef
	for rows.Next() {
		var r VODRef
		if err := rows.Scan(&r.ServerID, &r.StreamID); err != nil {
			return nil, fmt.Errorf("store: scan vod ref: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// VODMetadata is the fully-populated enrichment column set for one movie.
// Absent numeric fields must already be zero and absent text fields empty;
// normalization happens before this struct is built so the update is a plain
// column overwrite, idempotent per payload.
type VODMetadata struct {
	CustomSID      string
	DirectSource   string
	Plot           string
	Cast           string
	Director       string
	Genre          string
	ReleaseDate    string
	DurationSecs   int64
	Duration       string
	VideoQuality   string
	TMDBID         string
	OName          string
	CoverBig       string
	MovieImage     string
	YoutubeTrailer string
	Actors         string
	Description    string
	Age            string
	Country        string
	BackdropPath   string
	Bitrate        int64
	Status         string
	Runtime        string
}

// UpdateVODMetadata overwrites the enrichment columns of one movie row.
// Returns the number of rows affected (0 when the row vanished).
func (s *Store) UpdateVODMetadata(serverID, streamID int64, m VODMetadata) (int64, error) {
	var affected int64
	err := s.withWriteTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			UPDATE vod_streams SET
				custom_sid = ?, direct_source = ?, plot = ?, "cast" = ?, director = ?,
				genre = ?, release_date = ?, duration_secs = ?, duration = ?, video_quality = ?,
				tmdb_id = ?, o_name = ?, cover_big = ?, movie_image = ?, youtube_trailer = ?,
				actors = ?, description = ?, age = ?, country = ?, backdrop_path = ?,
				bitrate = ?, status = ?, runtime = ?
			WHERE server_id = ? AND stream_id = ?`,
			m.CustomSID, m.DirectSource, m.Plot, m.Cast, m.Director,
			m.Genre, m.ReleaseDate, m.DurationSecs, m.Duration, m.VideoQuality,
			m.TMDBID, m.OName, m.CoverBig, m.MovieImage, m.YoutubeTrailer,
			m.Actors, m.Description, m.Age, m.Country, m.BackdropPath,
			m.Bitrate, m.Status, m.Runtime,
			serverID, streamID)
		if err != nil {
			return fmt.Errorf("store: update vod metadata %d: %w", streamID, err)
		}
		affected, _ = res.RowsAffected()
		return nil
	})
	return affected, err
}
