// Package lifecycle drives server state transitions. The engine is the only
// place that spawns, stops, or reconciles server processes; everything else
// (HTTP handlers, the scheduler, background tasks) goes through it.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Sahaj33-op/msm/internal/config"
	"github.com/Sahaj33-op/msm/internal/console"
	"github.com/Sahaj33-op/msm/internal/models"
	"github.com/Sahaj33-op/msm/internal/msmerr"
	"github.com/Sahaj33-op/msm/internal/osproc"
	"github.com/Sahaj33-op/msm/internal/store"
)

// ServerJarName is the jar file every managed server directory must contain.
const ServerJarName = "server.jar"

// Engine owns the start/stop/restart state machine for all servers.
type Engine struct {
	cfg      *config.Config
	servers  *store.ServerStore
	registry *console.Registry
}

func NewEngine(cfg *config.Config, servers *store.ServerStore, registry *console.Registry) *Engine {
	return &Engine{cfg: cfg, servers: servers, registry: registry}
}

// Registry exposes the live process registry for console consumers.
func (e *Engine) Registry() *console.Registry {
	return e.registry
}

// Start spawns the server process for id. It refuses when the server is
// already running or its port is taken, auto-accepts the EULA when
// configured, and records the new pid once the child is supervised.
func (e *Engine) Start(ctx context.Context, id int64) error {
	srv, err := e.servers.Get(id)
	if err != nil {
		return err
	}

	if err := e.reconcile(srv); err != nil {
		return err
	}
	if e.isRunning(srv) {
		return &msmerr.AlreadyRunningError{Name: srv.Name, PID: srv.PID}
	}

	if ok, blockingPID := osproc.PortAvailable(srv.Port); !ok {
		return &msmerr.PortInUseError{Port: srv.Port, BlockingPID: blockingPID}
	}

	javaPath, err := resolveJava(srv)
	if err != nil {
		return err
	}

	if e.cfg.Lifecycle.AutoAcceptEULA {
		if err := ensureEULA(srv.Path); err != nil {
			return &msmerr.SpawnError{Name: srv.Name, Err: err}
		}
	}

	args := buildJavaArgs(srv)
	slog.Info("[Lifecycle] starting server", "server", srv.Name, "java", javaPath, "port", srv.Port)

	handle, err := osproc.Spawn(javaPath, args, srv.Path, nil)
	if err != nil {
		return &msmerr.SpawnError{Name: srv.Name, Err: err}
	}

	buffer := console.NewBuffer(e.cfg.Console.HistoryLines)
	proc := console.Supervise(srv.ID, srv.Name, handle, buffer, e.cfg.Lifecycle.MonitorInterval, e.onProcessExit)
	e.registry.Register(proc)

	if err := e.servers.MarkStarted(srv.ID, handle.PID, time.Now().UTC()); err != nil {
		slog.Error("[Lifecycle] failed to persist start", "server", srv.Name, "error", err)
	}
	slog.Info("[Lifecycle] server started", "server", srv.Name, "pid", handle.PID)
	return nil
}

// Stop shuts a server down. The graceful path writes the stop command to the
// console and polls for exit; on timeout or when force is set the process is
// killed. Stopping a stopped server is an error so callers can distinguish
// no-ops from real transitions.
func (e *Engine) Stop(ctx context.Context, id int64, force bool) error {
	srv, err := e.servers.Get(id)
	if err != nil {
		return err
	}

	if err := e.reconcile(srv); err != nil {
		return err
	}
	if !e.isRunning(srv) {
		return &msmerr.NotRunningError{Name: srv.Name}
	}

	proc := e.registry.Get(srv.ID)
	if proc == nil {
		// Orphaned child from a previous manager run: we can signal it but
		// not talk to its stdin.
		return e.stopOrphan(srv)
	}

	proc.MarkStopping()

	if !force {
		slog.Info("[Lifecycle] stopping server gracefully", "server", srv.Name, "pid", proc.PID())
		proc.SendCommand(e.cfg.Lifecycle.StopCommand)
		if e.waitStopped(ctx, proc) {
			return nil
		}
		slog.Warn("[Lifecycle] graceful stop timed out, escalating", "server", srv.Name, "pid", proc.PID())
	} else {
		slog.Info("[Lifecycle] force stopping server", "server", srv.Name, "pid", proc.PID())
	}

	if !osproc.Terminate(proc.PID(), !force) {
		return fmt.Errorf("server %q pid %d: %w", srv.Name, proc.PID(), msmerr.ErrStopTimeout)
	}
	return nil
}

// Restart stops the server if it is running, then starts it. A server that
// was already stopped is simply started.
func (e *Engine) Restart(ctx context.Context, id int64) error {
	err := e.Stop(ctx, id, false)
	if err != nil {
		var notRunning *msmerr.NotRunningError
		if !errors.As(err, &notRunning) {
			return err
		}
	}
	return e.Start(ctx, id)
}

// SendCommand writes a command line to a running server's console.
func (e *Engine) SendCommand(id int64, cmd string) error {
	srv, err := e.servers.Get(id)
	if err != nil {
		return err
	}
	proc := e.registry.Get(id)
	if proc == nil || !proc.SendCommand(cmd) {
		return &msmerr.NotRunningError{Name: srv.Name}
	}
	return nil
}

// History returns the most recent console lines for a server; empty when no
// live process exists.
func (e *Engine) History(id int64, n int) ([]console.Line, error) {
	if _, err := e.servers.Get(id); err != nil {
		return nil, err
	}
	proc := e.registry.Get(id)
	if proc == nil {
		return []console.Line{}, nil
	}
	return proc.Buffer().Tail(n), nil
}

// Status returns the reconciled state of a server plus live metrics when it
// is running. Metrics collection failure downgrades to a nil Process field
// rather than an error.
func (e *Engine) Status(ctx context.Context, id int64) (*models.StatusView, error) {
	srv, err := e.servers.Get(id)
	if err != nil {
		return nil, err
	}
	if err := e.reconcile(srv); err != nil {
		return nil, err
	}

	view := &models.StatusView{
		ID:          srv.ID,
		Name:        srv.Name,
		Type:        srv.Type,
		Version:     srv.Version,
		Port:        srv.Port,
		Memory:      srv.Memory,
		IsRunning:   srv.IsRunning,
		PID:         srv.PID,
		LastStarted: srv.LastStarted,
		LastStopped: srv.LastStopped,
	}
	if srv.IsRunning && srv.PID > 0 {
		if stats, err := osproc.Stats(srv.PID); err == nil {
			view.Process = stats
		}
	}
	return view, nil
}

// SyncAll reconciles every server row marked running against the OS process
// table and returns how many rows were corrected. Crashed or externally
// killed servers converge to stopped here.
func (e *Engine) SyncAll(ctx context.Context) (int, error) {
	running, err := e.servers.ListRunning()
	if err != nil {
		return 0, err
	}

	corrected := 0
	for _, srv := range running {
		was := srv.IsRunning
		if err := e.reconcile(srv); err != nil {
			slog.Error("[Lifecycle] reconcile failed", "server", srv.Name, "error", err)
			continue
		}
		if was && !srv.IsRunning {
			corrected++
		}
	}
	if corrected > 0 {
		slog.Info("[Lifecycle] reconciled stale server records", "corrected", corrected)
	}
	return corrected, nil
}

// AuditPorts groups all server records by configured port and returns the
// ports claimed by more than one server, each with the claimant names. Every
// conflict is logged; the caller decides nothing is wrong enough to act on.
func (e *Engine) AuditPorts(ctx context.Context) (map[int][]string, error) {
	all, err := e.servers.List()
	if err != nil {
		return nil, err
	}

	byPort := make(map[int][]string)
	for _, srv := range all {
		byPort[srv.Port] = append(byPort[srv.Port], srv.Name)
	}

	conflicts := make(map[int][]string)
	for port, names := range byPort {
		if len(names) > 1 {
			conflicts[port] = names
			slog.Warn("[Lifecycle] port claimed by multiple servers", "port", port, "servers", names)
		}
	}
	return conflicts, nil
}

// reconcile folds OS truth into the server record. A row claiming running is
// demoted to stopped when no supervised process is alive and the recorded
// pid is gone or belongs to something that is not a Java process.
func (e *Engine) reconcile(srv *models.Server) error {
	if !srv.IsRunning {
		return nil
	}

	if proc := e.registry.Get(srv.ID); proc != nil && proc.Running() {
		return nil
	}
	if srv.PID > 0 && osproc.Exists(srv.PID) && osproc.LooksLikeJava(srv.PID) {
		// Live orphan from a previous manager run. Leave the row alone;
		// stop requests fall back to direct signalling.
		return nil
	}

	slog.Warn("[Lifecycle] server recorded running but process is gone", "server", srv.Name, "pid", srv.PID)
	if err := e.servers.MarkStopped(srv.ID, time.Now().UTC()); err != nil {
		return err
	}
	srv.IsRunning = false
	srv.PID = 0
	return nil
}

func (e *Engine) isRunning(srv *models.Server) bool {
	if proc := e.registry.Get(srv.ID); proc != nil && proc.Running() {
		return true
	}
	return srv.IsRunning && srv.PID > 0 && osproc.Exists(srv.PID)
}

func (e *Engine) stopOrphan(srv *models.Server) error {
	slog.Warn("[Lifecycle] stopping orphaned server by signal", "server", srv.Name, "pid", srv.PID)
	if !osproc.Terminate(srv.PID, true) {
		return fmt.Errorf("server %q pid %d: %w", srv.Name, srv.PID, msmerr.ErrStopTimeout)
	}
	return e.servers.MarkStopped(srv.ID, time.Now().UTC())
}

// waitStopped polls until the process exits, the graceful timeout lapses, or
// the context is cancelled.
func (e *Engine) waitStopped(ctx context.Context, proc *console.Process) bool {
	deadline := time.Now().Add(e.cfg.Lifecycle.GracefulTimeout)
	ticker := time.NewTicker(e.cfg.Lifecycle.StopPollEvery)
	defer ticker.Stop()
	for time.Now().Before(deadline) {
		if !proc.Running() {
			return true
		}
		select {
		case <-ctx.Done():
			return !proc.Running()
		case <-ticker.C:
		}
	}
	return !proc.Running()
}

// onProcessExit is wired into every supervised process. It runs at most once
// per process and keeps the registry and database consistent with the death.
func (e *Engine) onProcessExit(p *console.Process, exitCode int, expected bool) {
	e.registry.Unregister(p)
	if err := e.servers.MarkStopped(p.ServerID, time.Now().UTC()); err != nil {
		slog.Error("[Lifecycle] failed to persist exit", "server", p.Name, "error", err)
	}
	if !expected {
		slog.Warn("[Lifecycle] server crashed", "server", p.Name, "exit_code", exitCode)
	}
}

func buildJavaArgs(srv *models.Server) []string {
	var args []string
	if srv.Memory != "" {
		args = append(args, "-Xms"+srv.Memory, "-Xmx"+srv.Memory)
	}
	if srv.JVMArgs != "" {
		args = append(args, strings.Fields(srv.JVMArgs)...)
	}
	return append(args, "-jar", ServerJarName, "nogui")
}
