package store

import (
	"database/sql"
	"fmt"

	"github.com/Sahaj33-op/msm/internal/models"
)

// BackupStore records created backup archives
type BackupStore struct {
	db *sql.DB
}

func NewBackupStore(db *sql.DB) *BackupStore {
	return &BackupStore{db: db}
}

// Create inserts a backup record.
func (s *BackupStore) Create(backup *models.Backup) error {
	_, err := s.db.Exec(`
		INSERT INTO backups (id, server_id, path, size_bytes, type, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`, backup.ID, backup.ServerID, backup.Path, backup.SizeBytes, backup.Type, backup.Status)
	if err != nil {
		return fmt.Errorf("failed to record backup: %w", err)
	}
	return nil
}

// List returns backups for a server, newest first.
func (s *BackupStore) List(serverID int64) ([]*models.Backup, error) {
	rows, err := s.db.Query(`
		SELECT id, server_id, path, size_bytes, type, status, created_at
		FROM backups WHERE server_id = ?
		ORDER BY created_at DESC
	`, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}
	defer rows.Close()

	var backups []*models.Backup
	for rows.Next() {
		var (
			backup models.Backup
			size   sql.NullInt64
		)
		if err := rows.Scan(&backup.ID, &backup.ServerID, &backup.Path, &size,
			&backup.Type, &backup.Status, &backup.CreatedAt); err != nil {
			return nil, err
		}
		if size.Valid {
			backup.SizeBytes = size.Int64
		}
		backups = append(backups, &backup)
	}
	return backups, rows.Err()
}
