// Package background runs the manager's periodic maintenance: reconciling
// server records against the OS, sweeping dead registry entries, and
// auditing port conflicts.
package background

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// TaskFunc is a periodic maintenance callback.
type TaskFunc func(ctx context.Context)

type task struct {
	name           string
	fn             TaskFunc
	interval       time.Duration
	runImmediately bool
	lastRun        time.Time
	ran            bool
}

// TaskManager runs registered tasks on their intervals from a single ticker
// loop. A panicking task is logged and retried on its next interval; it
// never takes the loop down.
type TaskManager struct {
	mu           sync.Mutex
	tasks        []*task
	tickInterval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewTaskManager creates a manager ticking at the given resolution; zero
// means the default of one second.
func NewTaskManager(tick time.Duration) *TaskManager {
	if tick <= 0 {
		tick = time.Second
	}
	return &TaskManager{tickInterval: tick}
}

// Register adds a task. When runImmediately is set the task fires on the
// first tick instead of waiting a full interval. Must be called before
// Start.
func (m *TaskManager) Register(name string, interval time.Duration, runImmediately bool, fn TaskFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, &task{
		name:           name,
		fn:             fn,
		interval:       interval,
		runImmediately: runImmediately,
	})
}

// Start launches the tick loop. Tasks run inline on the loop goroutine, so
// one long task delays the others for that tick.
func (m *TaskManager) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.tickInterval)
		defer ticker.Stop()
		slog.Info("[Background] task loop started", "tasks", len(m.tasks))
		for {
			select {
			case <-ctx.Done():
				slog.Info("[Background] task loop stopped")
				return
			case now := <-ticker.C:
				m.runDue(ctx, now)
			}
		}
	}()
}

// Stop cancels the loop and waits for it to drain.
func (m *TaskManager) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}

func (m *TaskManager) runDue(ctx context.Context, now time.Time) {
	m.mu.Lock()
	due := make([]*task, 0, len(m.tasks))
	for _, t := range m.tasks {
		switch {
		case !t.ran && t.runImmediately:
			due = append(due, t)
		case !t.ran:
			// First interval counts from loop start.
			t.ran = true
			t.lastRun = now
		case now.Sub(t.lastRun) >= t.interval:
			due = append(due, t)
		}
	}
	for _, t := range due {
		t.ran = true
		t.lastRun = now
	}
	m.mu.Unlock()

	for _, t := range due {
		m.runOne(ctx, t)
	}
}

func (m *TaskManager) runOne(ctx context.Context, t *task) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("[Background] task panicked", "task", t.name, "panic", r)
		}
	}()
	t.fn(ctx)
}
