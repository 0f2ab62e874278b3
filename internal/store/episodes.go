package store

import (
	"database/sql"
	"fmt"
)

// Episode is one episode row, created only during series enrichment, never
// during the initial series listing pass. Existing episodes are never updated
// by enrichment; only new remote episode ids are added.
type Episode struct {
	ServerID           int64
	SeriesID           int64 // remote series id
	SeasonNum          int
	EpisodeID          int64 // remote id
	Title              string
	Plot               string
	Duration           string
	Airdate            string
	ContainerExtension string
	EpisodeNum         int
	Rating             float64
	Crew               string
	TMDBID             string
	MovieImage         string
	DurationSecs       int64
	Video              string
	Audio              string
	Bitrate            int64
	CustomSID          string
	Added              string
	DirectSource       string
	Season             int
}

// EpisodeExists reports whether (server, remote episode id) is present.
func (s *Store) EpisodeExists(serverID, episodeID int64) (bool, error) {
	return s.pairExists("episodes", "episode_id", serverID, episodeID)
}

// InsertEpisodes inserts the batch in one transaction and returns the
// number inserted.
func (s *Store) InsertEpisodes(eps []Episode) (int, error) {
	if len(eps) == 0 {
		return 0, nil
	}
	inserted := 0
	err := s.withWriteTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO episodes (
				server_id, series_id, season_num, episode_id, title, plot, duration, airdate,
				container_extension, episode_num, rating, crew, tmdb_id, movie_image, duration_secs,
				video, audio, bitrate, custom_sid, added, direct_source, season
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("store: prepare episode insert: %w", err)
		}
		defer stmt.Close()
		for _, e := range eps {
			if _, err := stmt.Exec(
				e.ServerID, e.SeriesID, e.SeasonNum, e.EpisodeID, e.Title, e.Plot, e.Duration, e.Airdate,
				e.ContainerExtension, e.EpisodeNum, e.Rating, e.Crew, e.TMDBID, e.MovieImage, e.DurationSecs,
				e.Video, e.Audio, e.Bitrate, e.CustomSID, e.Added, e.DirectSource, e.Season,
			); err != nil {
				return fmt.Errorf("store: insert episode %d: %w", e.EpisodeID, err)
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
