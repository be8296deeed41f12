package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/Sahaj33-op/msm/internal/database"
	"github.com/Sahaj33-op/msm/internal/models"
	"github.com/Sahaj33-op/msm/internal/msmerr"
	"github.com/Sahaj33-op/msm/internal/store"
)

func newTestService(t *testing.T) (*Service, *models.Server) {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "msm.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	serverDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(serverDir, "server.properties"), []byte("motd=hi\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(serverDir, "world"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(serverDir, "world", "level.dat"), []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	servers := store.NewServerStore(db.DB)
	srv, err := servers.Create(&models.Server{
		Name:    "backup-target",
		Type:    "paper",
		Version: "1.21",
		Path:    serverDir,
		Port:    25565,
	})
	if err != nil {
		t.Fatalf("create server: %v", err)
	}

	svc := NewService(servers, store.NewBackupStore(db.DB), filepath.Join(t.TempDir(), "backups"))
	return svc, srv
}

func TestCreateBackup(t *testing.T) {
	svc, srv := newTestService(t)

	record, err := svc.CreateBackup(context.Background(), srv.ID, "manual")
	if err != nil {
		t.Fatalf("CreateBackup: %v", err)
	}
	if record.SizeBytes == 0 {
		t.Error("SizeBytes = 0")
	}
	if record.Type != "manual" || record.Status != "completed" {
		t.Errorf("record type=%q status=%q", record.Type, record.Status)
	}

	names := archiveEntries(t, record.Path)
	for _, want := range []string{"server.properties", "world", "world/level.dat"} {
		if !names[want] {
			t.Errorf("archive missing entry %q (has %v)", want, names)
		}
	}

	listed, err := svc.List(srv.ID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != record.ID {
		t.Errorf("List = %v, want the created record", listed)
	}
}

func TestCreateBackupUnknownServer(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.CreateBackup(context.Background(), 9999, "manual")
	var notFound *msmerr.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("error = %v, want NotFoundError", err)
	}
}

func archiveEntries(t *testing.T, path string) map[string]bool {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip: %v", err)
	}
	tr := tar.NewReader(gz)

	names := make(map[string]bool)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("tar: %v", err)
		}
		names[header.Name] = true
	}
	return names
}
