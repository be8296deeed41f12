package console

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Sahaj33-op/msm/internal/osproc"
)

// ExitFunc is invoked exactly once when a supervised process leaves the OS
// process table, whether by request or by crash.
type ExitFunc func(p *Process, exitCode int, expected bool)

// Process supervises one spawned server child: it drains both output pipes
// into the console buffer, watches for process exit, and guarantees the
// exit handling runs at most once no matter how many observers notice the
// death.
type Process struct {
	ServerID int64
	Name     string

	handle *osproc.Handle
	buffer *Buffer
	onExit ExitFunc

	monitorInterval time.Duration

	exited      chan struct{}
	exitCode    atomic.Int64
	exitHandled atomic.Bool
	stopping    atomic.Bool
}

// Supervise starts the reader and monitor goroutines for a freshly spawned
// child. The returned Process is live immediately.
func Supervise(serverID int64, name string, handle *osproc.Handle, buffer *Buffer, monitorInterval time.Duration, onExit ExitFunc) *Process {
	if monitorInterval <= 0 {
		monitorInterval = 500 * time.Millisecond
	}
	p := &Process{
		ServerID:        serverID,
		Name:            name,
		handle:          handle,
		buffer:          buffer,
		onExit:          onExit,
		monitorInterval: monitorInterval,
		exited:          make(chan struct{}),
	}

	go p.readStream(StreamStdout, handle.Stdout)
	go p.readStream(StreamStderr, handle.Stderr)
	go p.wait()
	go p.monitor()

	return p
}

// PID returns the child's process id.
func (p *Process) PID() int {
	return p.handle.PID
}

// Buffer returns the console history for this process.
func (p *Process) Buffer() *Buffer {
	return p.buffer
}

// Running reports whether the child has not yet exited.
func (p *Process) Running() bool {
	select {
	case <-p.exited:
		return false
	default:
		return true
	}
}

// ExitCode returns the child's exit code, valid only after Running is false.
func (p *Process) ExitCode() int {
	return int(p.exitCode.Load())
}

// MarkStopping flags the next exit as operator-requested so it is reported
// as a shutdown rather than a crash.
func (p *Process) MarkStopping() {
	p.stopping.Store(true)
}

// SendCommand writes a line to the child's stdin. Returns false when the
// child is gone or the pipe is closed.
func (p *Process) SendCommand(cmd string) bool {
	if !p.Running() {
		return false
	}
	if _, err := io.WriteString(p.handle.Stdin, cmd+"\n"); err != nil {
		slog.Warn("[Console] stdin write failed", "server", p.Name, "error", err)
		return false
	}
	return true
}

func (p *Process) readStream(stream Stream, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		p.buffer.Append(stream, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		slog.Debug("[Console] stream closed with error", "server", p.Name, "stream", stream, "error", err)
	}
}

// wait reaps the child and records its exit code. Closing the exited
// channel is the single source of truth for process death.
func (p *Process) wait() {
	err := p.handle.Cmd.Wait()
	code := 0
	if err != nil {
		code = -1
		if state := p.handle.Cmd.ProcessState; state != nil {
			code = state.ExitCode()
		}
	}
	p.exitCode.Store(int64(code))
	close(p.exited)
}

// monitor polls for process death and runs the exit handling. The poll
// keeps supervision alive even if the Wait goroutine is starved.
func (p *Process) monitor() {
	ticker := time.NewTicker(p.monitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.exited:
			p.handleExit()
			return
		case <-ticker.C:
			if !p.Running() {
				p.handleExit()
				return
			}
		}
	}
}

// handleExit runs the one-shot exit path: a compare-and-swap ensures the
// synthetic console line and the exit callback fire at most once even when
// multiple goroutines observe the death concurrently.
func (p *Process) handleExit() {
	if !p.exitHandled.CompareAndSwap(false, true) {
		return
	}

	code := p.ExitCode()
	expected := p.stopping.Load()
	p.buffer.Append(StreamSystem, fmt.Sprintf("[MSM] Server process exited with code %d", code))

	if expected {
		slog.Info("[Console] server stopped", "server", p.Name, "pid", p.handle.PID, "exit_code", code)
	} else {
		slog.Warn("[Console] server exited unexpectedly", "server", p.Name, "pid", p.handle.PID, "exit_code", code)
	}

	if p.onExit != nil {
		p.runExitCallback(code, expected)
	}
}

// runExitCallback isolates a panicking exit callback the same way the buffer
// isolates its subscribers; the monitor goroutine must survive it.
func (p *Process) runExitCallback(code int, expected bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("[Console] exit callback panicked", "server", p.Name, "panic", r)
		}
	}()
	p.onExit(p, code, expected)
}
