package store

import (
	"database/sql"
	"fmt"
)

// Server is a remote Xtream endpoint. Created once via AddServer (or the
// setup wizard); the sync engine only ever reads these rows.
type Server struct {
	ID       int64
	Name     string
	URL      string
	Username string
	Password string
	Port     int
	Status   string
}

// AddServer inserts a server row. The name must be unique.
func (s *Store) AddServer(name, url, username, password string, port int) (int64, error) {
	if port <= 0 {
		port = 80
	}
	var id int64
	err := s.withWriteTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			INSERT INTO servers (name, url, username, password, port, status)
			VALUES (?, ?, ?, ?, ?, 'active')`,
			name, url, username, password, port)
		if err != nil {
			return fmt.Errorf("store: insert server %q: %w", name, err)
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// ActiveServers returns all active servers ordered by id, so "first active
// server" selections (EPG import) are stable across runs.
func (s *Store) ActiveServers() ([]Server, error) {
	rows, err := s.db.Query(`
		SELECT id, name, url, username, password, port
		FROM servers
		WHERE status = 'active'
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: active servers: %w", err)
	}
	defer rows.Close()
	var out []Server
	for rows.Next() {
		var sv Server
		if err := rows.Scan(&sv.ID, &sv.Name, &sv.URL, &sv.Username, &sv.Password, &sv.Port); err != nil {
			return nil, fmt.Errorf("store: scan server: %w", err)
		}
		sv.Status = "active"
		out = append(out, sv)
	}
	return out, rows.Err()
}

// ServerByID looks up one server row.
func (s *Store) ServerByID(id int64) (Server, error) {
	var sv Server
	err := s.db.QueryRow(`
		SELECT id, name, url, username, password, port, status
		FROM servers WHERE id = ?`, id).
		Scan(&sv.ID, &sv.Name, &sv.URL, &sv.Username, &sv.Password, &sv.Port, &sv.Status)
	if err != nil {
		return Server{}, fmt.Errorf("store: server %d: %w", id, err)
	}
	return sv, nil
}
