package console

import (
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sahaj33-op/msm/internal/osproc"
)

func spawnShell(t *testing.T, script string) *osproc.Handle {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/sh")
	}
	h, err := osproc.Spawn("/bin/sh", []string{"-c", script}, t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	return h
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

func TestProcessCapturesOutputAndExit(t *testing.T) {
	h := spawnShell(t, "echo out; echo err >&2; exit 3")
	buf := NewBuffer(100)

	var exits atomic.Int32
	var gotCode atomic.Int32
	p := Supervise(1, "alpha", h, buf, 20*time.Millisecond, func(_ *Process, code int, expected bool) {
		exits.Add(1)
		gotCode.Store(int32(code))
		if expected {
			t.Error("unrequested exit reported as expected")
		}
	})

	waitFor(t, 5*time.Second, func() bool { return exits.Load() > 0 })

	if got := exits.Load(); got != 1 {
		t.Errorf("exit callback ran %d times, want 1", got)
	}
	if got := gotCode.Load(); got != 3 {
		t.Errorf("exit code = %d, want 3", got)
	}
	if p.Running() {
		t.Error("Running() = true after exit")
	}

	var sawOut, sawErr, sawExit bool
	for _, line := range buf.Tail(0) {
		switch {
		case line.Stream == StreamStdout && line.Text == "out":
			sawOut = true
		case line.Stream == StreamStderr && line.Text == "err":
			sawErr = true
		case line.Stream == StreamSystem && strings.Contains(line.Text, "exited with code 3"):
			sawExit = true
		}
	}
	if !sawOut || !sawErr || !sawExit {
		t.Errorf("missing lines: stdout=%v stderr=%v exit=%v", sawOut, sawErr, sawExit)
	}
}

func TestProcessExitHandledOnce(t *testing.T) {
	h := spawnShell(t, "exit 0")
	buf := NewBuffer(100)

	var exits atomic.Int32
	p := Supervise(1, "alpha", h, buf, 10*time.Millisecond, func(*Process, int, bool) {
		exits.Add(1)
	})

	waitFor(t, 5*time.Second, func() bool { return exits.Load() > 0 })

	// Hammer the exit path from many goroutines; the callback and the
	// synthetic line must stay singular.
	for i := 0; i < 16; i++ {
		go p.handleExit()
	}
	time.Sleep(100 * time.Millisecond)

	if got := exits.Load(); got != 1 {
		t.Errorf("exit callback ran %d times, want 1", got)
	}
	systemLines := 0
	for _, line := range buf.Tail(0) {
		if line.Stream == StreamSystem {
			systemLines++
		}
	}
	if systemLines != 1 {
		t.Errorf("%d system exit lines, want 1", systemLines)
	}
}

func TestProcessSendCommand(t *testing.T) {
	h := spawnShell(t, "read line; echo \"got $line\"")
	buf := NewBuffer(100)
	p := Supervise(1, "alpha", h, buf, 20*time.Millisecond, nil)

	if !p.SendCommand("hello") {
		t.Fatal("SendCommand returned false for live process")
	}

	waitFor(t, 5*time.Second, func() bool { return !p.Running() })

	var saw bool
	for _, line := range buf.Tail(0) {
		if line.Text == "got hello" {
			saw = true
		}
	}
	if !saw {
		t.Error("child never echoed the command")
	}

	if p.SendCommand("late") {
		t.Error("SendCommand returned true for exited process")
	}
}

func TestProcessExitCallbackPanicIsContained(t *testing.T) {
	h := spawnShell(t, "exit 0")
	buf := NewBuffer(100)

	var ran atomic.Bool
	p := Supervise(1, "alpha", h, buf, 10*time.Millisecond, func(*Process, int, bool) {
		ran.Store(true)
		panic("boom")
	})

	// A panicking callback must not take the monitor goroutine (and with it
	// the test process) down; the exit is still fully handled.
	waitFor(t, 5*time.Second, func() bool { return ran.Load() })
	time.Sleep(50 * time.Millisecond)

	if p.Running() {
		t.Error("Running() = true after exit")
	}
	var sawExit bool
	for _, line := range buf.Tail(0) {
		if line.Stream == StreamSystem {
			sawExit = true
		}
	}
	if !sawExit {
		t.Error("synthetic exit line missing after panicking callback")
	}
}

func TestProcessMarkStopping(t *testing.T) {
	h := spawnShell(t, "sleep 60")
	buf := NewBuffer(100)

	var expected atomic.Bool
	var done atomic.Bool
	p := Supervise(1, "alpha", h, buf, 20*time.Millisecond, func(_ *Process, _ int, exp bool) {
		expected.Store(exp)
		done.Store(true)
	})

	p.MarkStopping()
	osproc.Terminate(p.PID(), false)

	waitFor(t, 5*time.Second, func() bool { return done.Load() })
	if !expected.Load() {
		t.Error("exit after MarkStopping reported as unexpected")
	}
}
