// Package store is the sqlite-backed relational store for the synced catalog:
// servers, categories, live channels, VOD titles, series, episodes and EPG
// entries. All writes are serialized through a single mutex so concurrent
// enrichment workers never interleave transactions; reads go through the
// database/sql pool concurrently.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// Store wraps the sqlite database with a single-writer discipline.
type Store struct {
	db      *sql.DB
	writeMu sync.Mutex
}

// Open opens (creating the parent directory if needed) the sqlite database at
// path, enables WAL and foreign keys, and ensures the schema exists.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}
	s := &Store{db: db}
	if err := s.EnsureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the raw handle for read-only queries in tests.
func (s *Store) DB() *sql.DB {
	return s.db
}

// EnsureSchema creates all tables and indexes if they do not exist.
func (s *Store) EnsureSchema() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	for _, stmt := range schemaStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("store: schema: %w", err)
		}
	}
	return nil
}

// Vacuum compacts the database file.
func (s *Store) Vacuum() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.db.Exec("VACUUM"); err != nil {
		return fmt.Errorf("store: vacuum: %w", err)
	}
	return nil
}

// withWriteTx runs fn inside a transaction under the write mutex.
// A fn error rolls the transaction back.
func (s *Store) withWriteTx(fn func(tx *sql.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// Statistics summarises catalog contents. Visible counts follow category
// visibility (categories.visible, toggled by the front-end, not this engine).
type Statistics struct {
	Servers         int
	Categories      int
	TotalMovies     int
	VisibleMovies   int
	TotalSeries     int
	VisibleSeries   int
	TotalEpisodes   int
	VisibleEpisodes int
	TotalChannels   int
	EpgEntries      int
}

// Stats returns catalog row counts.
func (s *Store) Stats() (Statistics, error) {
	var st Statistics
	queries := []struct {
		dst   *int
		query string
	}{
		{&st.Servers, "SELECT COUNT(id) FROM servers"},
		{&st.Categories, "SELECT COUNT(id) FROM categories"},
		{&st.TotalMovies, "SELECT COUNT(id) FROM vod_streams"},
		{&st.TotalSeries, "SELECT COUNT(id) FROM series"},
		{&st.TotalEpisodes, "SELECT COUNT(id) FROM episodes"},
		{&st.TotalChannels, "SELECT COUNT(id) FROM live_streams"},
		{&st.EpgEntries, "SELECT COUNT(id) FROM epg_data"},
		{&st.VisibleMovies, "SELECT COUNT(v.id) FROM vod_streams v JOIN categories c ON v.category_id = c.id WHERE c.visible = 1"},
		{&st.VisibleSeries, "SELECT COUNT(se.id) FROM series se JOIN categories c ON se.category_id = c.id WHERE c.visible = 1"},
		{&st.VisibleEpisodes, "SELECT COUNT(e.id) FROM episodes e JOIN series se ON e.series_id = se.series_id AND e.server_id = se.server_id JOIN categories c ON se.category_id = c.id WHERE c.visible = 1"},
	}
	for _, q := range queries {
		if err := s.db.QueryRow(q.query).Scan(q.dst); err != nil {
			return st, fmt.Errorf("store: stats: %w", err)
		}
	}
	return st, nil
}
