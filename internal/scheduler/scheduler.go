// Package scheduler executes cron-driven server tasks: timed starts, stops,
// restarts, backups, and console commands.
package scheduler

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Sahaj33-op/msm/internal/models"
	"github.com/Sahaj33-op/msm/internal/msmerr"
	"github.com/Sahaj33-op/msm/internal/store"
)

// cronParser accepts standard five-field expressions plus the @every and
// @daily style descriptors.
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// NextRun computes the first fire time of a cron expression strictly after
// from. Returns InvalidScheduleError for expressions the parser rejects.
func NextRun(expr string, from time.Time) (time.Time, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, &msmerr.InvalidScheduleError{Expr: expr, Reason: err.Error()}
	}
	return sched.Next(from), nil
}

// ValidateExpr checks a cron expression without computing anything.
func ValidateExpr(expr string) error {
	_, err := cronParser.Parse(expr)
	if err != nil {
		return &msmerr.InvalidScheduleError{Expr: expr, Reason: err.Error()}
	}
	return nil
}

// Lifecycle is the slice of the engine the dispatcher drives.
type Lifecycle interface {
	Start(ctx context.Context, id int64) error
	Stop(ctx context.Context, id int64, force bool) error
	Restart(ctx context.Context, id int64) error
	SendCommand(id int64, cmd string) error
}

// BackupRunner creates archives for the backup action.
type BackupRunner interface {
	CreateBackup(ctx context.Context, serverID int64, kind string) (*models.Backup, error)
}

// Dispatcher wakes on an interval, finds schedules whose next run has
// passed, executes them, and advances their run bookkeeping. A failed
// execution still advances next_run so a broken schedule fires once per
// slot instead of hammering every tick.
type Dispatcher struct {
	schedules *store.ScheduleStore
	lifecycle Lifecycle
	backups   BackupRunner
	interval  time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

func NewDispatcher(schedules *store.ScheduleStore, lifecycle Lifecycle, backups BackupRunner, interval time.Duration) *Dispatcher {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Dispatcher{
		schedules: schedules,
		lifecycle: lifecycle,
		backups:   backups,
		interval:  interval,
	}
}

// Start launches the dispatch loop.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})

	go func() {
		defer close(d.done)
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()
		slog.Info("[Scheduler] dispatch loop started", "interval", d.interval)
		for {
			select {
			case <-ctx.Done():
				slog.Info("[Scheduler] dispatch loop stopped")
				return
			case now := <-ticker.C:
				d.RunDue(ctx, now.UTC())
			}
		}
	}()
}

// Stop cancels the loop and waits for it to drain.
func (d *Dispatcher) Stop() {
	if d.cancel == nil {
		return
	}
	d.cancel()
	<-d.done
}

// RunDue executes every enabled schedule whose next run is at or before
// now. Exposed for the dispatch loop and for tests.
func (d *Dispatcher) RunDue(ctx context.Context, now time.Time) {
	due, err := d.schedules.ListDue(now)
	if err != nil {
		slog.Error("[Scheduler] failed to list due schedules", "error", err)
		return
	}

	for _, sched := range due {
		if err := d.execute(ctx, sched); err != nil {
			slog.Error("[Scheduler] schedule failed", "schedule_id", sched.ID, "server_id", sched.ServerID, "action", sched.Action, "error", err)
		} else {
			slog.Info("[Scheduler] schedule executed", "schedule_id", sched.ID, "server_id", sched.ServerID, "action", sched.Action)
		}

		next, err := NextRun(sched.Cron, now)
		if err != nil {
			slog.Error("[Scheduler] stored cron no longer parses", "schedule_id", sched.ID, "cron", sched.Cron, "error", err)
			continue
		}
		if err := d.schedules.UpdateRuns(sched.ID, now, next); err != nil {
			slog.Error("[Scheduler] failed to advance schedule", "schedule_id", sched.ID, "error", err)
		}
	}
}

func (d *Dispatcher) execute(ctx context.Context, sched *models.Schedule) error {
	switch sched.Action {
	case models.ActionStart:
		return d.lifecycle.Start(ctx, sched.ServerID)
	case models.ActionStop:
		return d.lifecycle.Stop(ctx, sched.ServerID, false)
	case models.ActionRestart:
		return d.lifecycle.Restart(ctx, sched.ServerID)
	case models.ActionBackup:
		_, err := d.backups.CreateBackup(ctx, sched.ServerID, "scheduled")
		return err
	case models.ActionCommand:
		return d.lifecycle.SendCommand(sched.ServerID, commandFromPayload(sched.Payload))
	default:
		return &msmerr.InvalidScheduleError{Expr: sched.Cron, Reason: "unknown action " + string(sched.Action)}
	}
}

// commandFromPayload accepts either a JSON object {"command": "..."} or the
// raw command text.
func commandFromPayload(payload string) string {
	var parsed struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal([]byte(payload), &parsed); err == nil && parsed.Command != "" {
		return parsed.Command
	}
	return payload
}
