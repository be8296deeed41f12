// Package store provides sqlite-backed persistence for server, schedule, and
// backup records. Each call is a single transaction-sized unit; the lifecycle
// engine owns all mutations of runtime state fields.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Sahaj33-op/msm/internal/models"
	"github.com/Sahaj33-op/msm/internal/msmerr"
)

const serverColumns = `id, name, type, version, path, port, memory, java_path, jvm_args,
       created_at, updated_at, is_running, pid, last_started, last_stopped`

// ServerStore provides CRUD for server records
type ServerStore struct {
	db *sql.DB
}

func NewServerStore(db *sql.DB) *ServerStore {
	return &ServerStore{db: db}
}

// Get loads a server by id.
func (s *ServerStore) Get(id int64) (*models.Server, error) {
	row := s.db.QueryRow(`SELECT `+serverColumns+` FROM servers WHERE id = ?`, id)
	server, err := scanServer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &msmerr.NotFoundError{Kind: "server", ID: id}
	}
	return server, err
}

// GetByName loads a server by its unique name.
func (s *ServerStore) GetByName(name string) (*models.Server, error) {
	row := s.db.QueryRow(`SELECT `+serverColumns+` FROM servers WHERE name = ?`, name)
	server, err := scanServer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("server not found: %s", name)
	}
	return server, err
}

// Create inserts a new server record and returns it with its assigned id.
func (s *ServerStore) Create(server *models.Server) (*models.Server, error) {
	res, err := s.db.Exec(`
		INSERT INTO servers (name, type, version, path, port, memory, java_path, jvm_args)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, server.Name, server.Type, server.Version, server.Path, server.Port,
		server.Memory, nullString(server.JavaPath), nullString(server.JVMArgs))
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	return s.Get(id)
}

// Update rewrites the configuration fields of a server record. Runtime
// state (is_running, pid, timestamps) is owned by MarkStarted/MarkStopped.
func (s *ServerStore) Update(server *models.Server) error {
	res, err := s.db.Exec(`
		UPDATE servers
		SET name = ?, type = ?, version = ?, path = ?, port = ?, memory = ?,
		    java_path = ?, jvm_args = ?, updated_at = ?
		WHERE id = ?
	`, server.Name, server.Type, server.Version, server.Path, server.Port,
		server.Memory, nullString(server.JavaPath), nullString(server.JVMArgs),
		time.Now().UTC(), server.ID)
	if err != nil {
		return fmt.Errorf("failed to update server: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &msmerr.NotFoundError{Kind: "server", ID: server.ID}
	}
	return nil
}

// List returns all server records, ordered by name.
func (s *ServerStore) List() ([]*models.Server, error) {
	rows, err := s.db.Query(`SELECT ` + serverColumns + ` FROM servers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}
	defer rows.Close()

	return scanServers(rows)
}

// ListRunning returns all server records whose persisted flag claims running.
// Callers must not trust the flag without reconciling against the OS.
func (s *ServerStore) ListRunning() ([]*models.Server, error) {
	rows, err := s.db.Query(`SELECT ` + serverColumns + ` FROM servers WHERE is_running = 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to list running servers: %w", err)
	}
	defer rows.Close()

	return scanServers(rows)
}

// Delete removes a server record.
func (s *ServerStore) Delete(id int64) error {
	res, err := s.db.Exec(`DELETE FROM servers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete server: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &msmerr.NotFoundError{Kind: "server", ID: id}
	}
	return nil
}

// MarkStarted records a successful start: running flag, pid, last_started.
func (s *ServerStore) MarkStarted(id int64, pid int, at time.Time) error {
	_, err := s.db.Exec(`
		UPDATE servers
		SET is_running = 1, pid = ?, last_started = ?, updated_at = ?
		WHERE id = ?
	`, pid, at, at, id)
	if err != nil {
		return fmt.Errorf("failed to mark server %d started: %w", id, err)
	}
	return nil
}

// MarkStopped clears the running flag and pid and stamps last_stopped.
func (s *ServerStore) MarkStopped(id int64, at time.Time) error {
	_, err := s.db.Exec(`
		UPDATE servers
		SET is_running = 0, pid = NULL, last_stopped = ?, updated_at = ?
		WHERE id = ?
	`, at, at, id)
	if err != nil {
		return fmt.Errorf("failed to mark server %d stopped: %w", id, err)
	}
	return nil
}

func scanServer(row *sql.Row) (*models.Server, error) {
	var (
		server      models.Server
		javaPath    sql.NullString
		jvmArgs     sql.NullString
		updatedAt   sql.NullTime
		pid         sql.NullInt64
		lastStarted sql.NullTime
		lastStopped sql.NullTime
	)

	if err := row.Scan(
		&server.ID, &server.Name, &server.Type, &server.Version, &server.Path,
		&server.Port, &server.Memory, &javaPath, &jvmArgs,
		&server.CreatedAt, &updatedAt, &server.IsRunning, &pid, &lastStarted, &lastStopped,
	); err != nil {
		return nil, err
	}

	applyServerNullables(&server, javaPath, jvmArgs, updatedAt, pid, lastStarted, lastStopped)
	return &server, nil
}

func scanServers(rows *sql.Rows) ([]*models.Server, error) {
	var servers []*models.Server
	for rows.Next() {
		var (
			server      models.Server
			javaPath    sql.NullString
			jvmArgs     sql.NullString
			updatedAt   sql.NullTime
			pid         sql.NullInt64
			lastStarted sql.NullTime
			lastStopped sql.NullTime
		)
		if err := rows.Scan(
			&server.ID, &server.Name, &server.Type, &server.Version, &server.Path,
			&server.Port, &server.Memory, &javaPath, &jvmArgs,
			&server.CreatedAt, &updatedAt, &server.IsRunning, &pid, &lastStarted, &lastStopped,
		); err != nil {
			return nil, err
		}
		applyServerNullables(&server, javaPath, jvmArgs, updatedAt, pid, lastStarted, lastStopped)
		servers = append(servers, &server)
	}
	return servers, rows.Err()
}

func applyServerNullables(server *models.Server, javaPath, jvmArgs sql.NullString, updatedAt sql.NullTime, pid sql.NullInt64, lastStarted, lastStopped sql.NullTime) {
	if javaPath.Valid {
		server.JavaPath = javaPath.String
	}
	if jvmArgs.Valid {
		server.JVMArgs = jvmArgs.String
	}
	if updatedAt.Valid {
		t := updatedAt.Time
		server.UpdatedAt = &t
	}
	if pid.Valid {
		server.PID = int(pid.Int64)
	}
	if lastStarted.Valid {
		t := lastStarted.Time
		server.LastStarted = &t
	}
	if lastStopped.Valid {
		t := lastStopped.Time
		server.LastStopped = &t
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
