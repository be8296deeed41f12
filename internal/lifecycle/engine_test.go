package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/Sahaj33-op/msm/internal/config"
	"github.com/Sahaj33-op/msm/internal/console"
	"github.com/Sahaj33-op/msm/internal/database"
	"github.com/Sahaj33-op/msm/internal/models"
	"github.com/Sahaj33-op/msm/internal/msmerr"
	"github.com/Sahaj33-op/msm/internal/store"
)

const obedientScript = `#!/bin/sh
echo "server ready"
while read line; do
	if [ "$line" = "stop" ]; then
		echo "stopping"
		exit 0
	fi
done
sleep 60
`

const stubbornScript = `#!/bin/sh
echo "server ready"
exec sleep 60
`

const crashingScript = `#!/bin/sh
echo "boom" >&2
exit 7
`

type testEnv struct {
	engine  *Engine
	servers *store.ServerStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses shell scripts as fake java")
	}

	db, err := database.NewDB(filepath.Join(t.TempDir(), "msm.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	cfg := config.Default()
	cfg.Lifecycle.GracefulTimeout = 500 * time.Millisecond
	cfg.Lifecycle.StopPollEvery = 20 * time.Millisecond
	cfg.Lifecycle.MonitorInterval = 20 * time.Millisecond

	servers := store.NewServerStore(db.DB)
	return &testEnv{
		engine:  NewEngine(cfg, servers, console.NewRegistry()),
		servers: servers,
	}
}

func (env *testEnv) createServer(t *testing.T, script string) *models.Server {
	t.Helper()
	dir := t.TempDir()
	javaPath := filepath.Join(dir, "java")
	if err := os.WriteFile(javaPath, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake java: %v", err)
	}

	srv, err := env.servers.Create(&models.Server{
		Name:     fmt.Sprintf("test-%d", time.Now().UnixNano()),
		Type:     "paper",
		Version:  "1.21",
		Path:     dir,
		Port:     freePort(t),
		Memory:   "64M",
		JavaPath: javaPath,
	})
	if err != nil {
		t.Fatalf("create server: %v", err)
	}
	return srv
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestStartAndGracefulStop(t *testing.T) {
	env := newTestEnv(t)
	srv := env.createServer(t, obedientScript)
	ctx := context.Background()

	if err := env.engine.Start(ctx, srv.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}

	got, _ := env.servers.Get(srv.ID)
	if !got.IsRunning || got.PID == 0 {
		t.Fatalf("server row after start: running=%v pid=%d", got.IsRunning, got.PID)
	}
	if env.engine.Registry().Get(srv.ID) == nil {
		t.Fatal("no process registered after start")
	}

	waitFor(t, 5*time.Second, func() bool {
		lines, _ := env.engine.History(srv.ID, 0)
		for _, l := range lines {
			if l.Text == "server ready" {
				return true
			}
		}
		return false
	})

	if err := env.engine.Stop(ctx, srv.ID, false); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		got, _ := env.servers.Get(srv.ID)
		return !got.IsRunning
	})
	got, _ = env.servers.Get(srv.ID)
	if got.LastStopped == nil {
		t.Error("LastStopped not recorded")
	}
}

func TestStartWhileRunningIsRejected(t *testing.T) {
	env := newTestEnv(t)
	srv := env.createServer(t, obedientScript)
	ctx := context.Background()

	if err := env.engine.Start(ctx, srv.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer env.engine.Stop(ctx, srv.ID, true)

	err := env.engine.Start(ctx, srv.ID)
	var already *msmerr.AlreadyRunningError
	if !errors.As(err, &already) {
		t.Fatalf("second Start error = %v, want AlreadyRunningError", err)
	}
}

func TestStartPortConflict(t *testing.T) {
	env := newTestEnv(t)
	srv := env.createServer(t, obedientScript)

	l, err := net.Listen("tcp", fmt.Sprintf(":%d", srv.Port))
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()

	startErr := env.engine.Start(context.Background(), srv.ID)
	var portErr *msmerr.PortInUseError
	if !errors.As(startErr, &portErr) {
		t.Fatalf("Start error = %v, want PortInUseError", startErr)
	}
	if portErr.Port != srv.Port {
		t.Errorf("PortInUseError.Port = %d, want %d", portErr.Port, srv.Port)
	}
}

func TestStopWhenNotRunning(t *testing.T) {
	env := newTestEnv(t)
	srv := env.createServer(t, obedientScript)

	err := env.engine.Stop(context.Background(), srv.ID, false)
	var notRunning *msmerr.NotRunningError
	if !errors.As(err, &notRunning) {
		t.Fatalf("Stop error = %v, want NotRunningError", err)
	}
}

func TestStartUnknownServer(t *testing.T) {
	env := newTestEnv(t)
	err := env.engine.Start(context.Background(), 9999)
	var notFound *msmerr.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Start error = %v, want NotFoundError", err)
	}
}

func TestRuntimeNotFound(t *testing.T) {
	env := newTestEnv(t)

	// Point the stored record at a missing binary.
	dir := t.TempDir()
	created, err := env.servers.Create(&models.Server{
		Name:     "no-java",
		Type:     "paper",
		Version:  "1.21",
		Path:     dir,
		Port:     freePort(t),
		JavaPath: filepath.Join(dir, "nope"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	startErr := env.engine.Start(context.Background(), created.ID)
	if !errors.Is(startErr, msmerr.ErrRuntimeNotFound) {
		t.Fatalf("Start error = %v, want ErrRuntimeNotFound", startErr)
	}
}

func TestGracefulStopEscalatesToKill(t *testing.T) {
	env := newTestEnv(t)
	srv := env.createServer(t, stubbornScript)
	ctx := context.Background()

	if err := env.engine.Start(ctx, srv.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}

	start := time.Now()
	if err := env.engine.Stop(ctx, srv.ID, false); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 400*time.Millisecond {
		t.Errorf("Stop returned in %v, before the graceful window elapsed", elapsed)
	}

	waitFor(t, 5*time.Second, func() bool {
		got, _ := env.servers.Get(srv.ID)
		return !got.IsRunning
	})
}

func TestCrashConvergesToStopped(t *testing.T) {
	env := newTestEnv(t)
	srv := env.createServer(t, crashingScript)
	ctx := context.Background()

	if err := env.engine.Start(ctx, srv.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		got, _ := env.servers.Get(srv.ID)
		return !got.IsRunning
	})

	view, err := env.engine.Status(ctx, srv.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if view.IsRunning {
		t.Error("Status reports running after crash")
	}
}

func TestSyncAllCorrectsStaleRows(t *testing.T) {
	env := newTestEnv(t)
	srv := env.createServer(t, obedientScript)

	// Fake a row left behind by a dead manager: running with a pid that no
	// longer exists.
	if err := env.servers.MarkStarted(srv.ID, 999999, time.Now().UTC()); err != nil {
		t.Fatalf("MarkStarted: %v", err)
	}

	corrected, err := env.engine.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("SyncAll: %v", err)
	}
	if corrected != 1 {
		t.Errorf("SyncAll corrected %d rows, want 1", corrected)
	}

	again, err := env.engine.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("SyncAll again: %v", err)
	}
	if again != 0 {
		t.Errorf("second SyncAll corrected %d rows, want 0", again)
	}
}

func TestRestartFromStopped(t *testing.T) {
	env := newTestEnv(t)
	srv := env.createServer(t, obedientScript)
	ctx := context.Background()

	if err := env.engine.Restart(ctx, srv.ID); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	defer env.engine.Stop(ctx, srv.ID, true)

	got, _ := env.servers.Get(srv.ID)
	if !got.IsRunning {
		t.Error("server not running after Restart from stopped")
	}
}

func TestEULAAutoAccept(t *testing.T) {
	env := newTestEnv(t)
	srv := env.createServer(t, crashingScript)

	if err := env.engine.Start(context.Background(), srv.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(srv.Path, "eula.txt"))
	if err != nil {
		t.Fatalf("eula.txt not created: %v", err)
	}
	if !strings.Contains(string(data), "eula=true") {
		t.Errorf("eula.txt = %q, want eula=true", data)
	}
}

func TestAuditPortsFlagsSharedPorts(t *testing.T) {
	env := newTestEnv(t)

	// Two stopped servers configured on the same port must be flagged even
	// though neither holds the port yet.
	for _, name := range []string{"lobby", "lobby-backup"} {
		if _, err := env.servers.Create(&models.Server{
			Name:    name,
			Type:    "paper",
			Version: "1.21",
			Path:    t.TempDir(),
			Port:    25600,
		}); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}
	if _, err := env.servers.Create(&models.Server{
		Name:    "solo",
		Type:    "paper",
		Version: "1.21",
		Path:    t.TempDir(),
		Port:    25601,
	}); err != nil {
		t.Fatalf("create solo: %v", err)
	}

	conflicts, err := env.engine.AuditPorts(context.Background())
	if err != nil {
		t.Fatalf("AuditPorts: %v", err)
	}
	if len(conflicts) != 1 {
		t.Fatalf("conflicts = %v, want exactly one port", conflicts)
	}
	names := conflicts[25600]
	if len(names) != 2 {
		t.Errorf("port 25600 claimants = %v, want both servers", names)
	}
	if _, flagged := conflicts[25601]; flagged {
		t.Error("uncontested port 25601 was flagged")
	}
}

func TestSendCommandRequiresRunning(t *testing.T) {
	env := newTestEnv(t)
	srv := env.createServer(t, obedientScript)

	err := env.engine.SendCommand(srv.ID, "say hi")
	var notRunning *msmerr.NotRunningError
	if !errors.As(err, &notRunning) {
		t.Fatalf("SendCommand error = %v, want NotRunningError", err)
	}
}
