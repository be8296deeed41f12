// Package backup archives server directories into timestamped tar.gz files
// and records them in the database.
package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Sahaj33-op/msm/internal/models"
	"github.com/Sahaj33-op/msm/internal/store"
)

type Service struct {
	servers   *store.ServerStore
	backups   *store.BackupStore
	backupDir string
}

func NewService(servers *store.ServerStore, backups *store.BackupStore, backupDir string) *Service {
	return &Service{servers: servers, backups: backups, backupDir: backupDir}
}

// CreateBackup archives a server's directory. kind is "manual" or
// "scheduled". Backing up a running server is allowed; the world files may
// be mid-save, which is the same tradeoff the game's own backup mods make.
func (s *Service) CreateBackup(ctx context.Context, serverID int64, kind string) (*models.Backup, error) {
	srv, err := s.servers.Get(serverID)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	stamp := time.Now().UTC().Format("20060102-150405")
	archivePath := filepath.Join(s.backupDir, fmt.Sprintf("%s-%s.tar.gz", srv.Name, stamp))

	size, err := writeArchive(ctx, archivePath, srv.Path)
	if err != nil {
		os.Remove(archivePath)
		return nil, fmt.Errorf("archive %s: %w", srv.Name, err)
	}

	record := &models.Backup{
		ID:        uuid.NewString(),
		ServerID:  srv.ID,
		Path:      archivePath,
		SizeBytes: size,
		Type:      kind,
		Status:    "completed",
		CreatedAt: time.Now().UTC(),
	}
	if err := s.backups.Create(record); err != nil {
		return nil, fmt.Errorf("record backup: %w", err)
	}

	slog.Info("[Backup] created", "server", srv.Name, "path", archivePath, "size_bytes", size)
	return record, nil
}

// List returns recorded backups, optionally filtered by server.
func (s *Service) List(serverID int64) ([]*models.Backup, error) {
	return s.backups.List(serverID)
}

// writeArchive tars and gzips the contents of srcDir into archivePath and
// returns the archive size. Entry names are relative to srcDir so restores
// unpack cleanly into a fresh directory.
func writeArchive(ctx context.Context, archivePath, srcDir string) (int64, error) {
	out, err := os.Create(archivePath)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	walkErr := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			// File vanished mid-walk, common with live session locks.
			return nil
		}
		if !info.Mode().IsRegular() && !info.IsDir() {
			return nil
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if walkErr != nil {
		tw.Close()
		gz.Close()
		return 0, walkErr
	}

	if err := tw.Close(); err != nil {
		return 0, err
	}
	if err := gz.Close(); err != nil {
		return 0, err
	}
	if err := out.Close(); err != nil {
		return 0, err
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
