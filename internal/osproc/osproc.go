// Package osproc is the boundary to the OS process table: spawning children,
// signalling them, and answering liveness and metrics queries. Everything the
// lifecycle engine believes about a process is verified through this package.
package osproc

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"strings"
	"time"

	gnet "github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/Sahaj33-op/msm/internal/models"
)

// Handle wraps a spawned child process and its standard streams.
type Handle struct {
	Cmd    *exec.Cmd
	PID    int
	Stdin  io.WriteCloser
	Stdout io.ReadCloser
	Stderr io.ReadCloser
}

// Spawn launches a child process with piped stdio in the given working
// directory. The caller owns the returned handle and must drain the output
// pipes to keep the child from blocking.
func Spawn(name string, args []string, cwd string, env []string) (*Handle, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = cwd
	if len(env) > 0 {
		cmd.Env = env
	} else {
		cmd.Env = os.Environ()
	}
	cmd.SysProcAttr = sysProcAttr()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	return &Handle{
		Cmd:    cmd,
		PID:    cmd.Process.Pid,
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: stderr,
	}, nil
}

// Exists reports whether a process with the given pid is present in the OS
// process table.
func Exists(pid int) bool {
	if pid <= 0 {
		return false
	}
	ok, err := process.PidExists(int32(pid))
	if err != nil {
		return false
	}
	return ok
}

// LooksLikeJava reports whether the process name for pid contains "java".
// This is the identity heuristic the reconciler uses to decide whether a
// recorded pid still belongs to a server after pid reuse.
func LooksLikeJava(pid int) bool {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return false
	}
	name, err := p.Name()
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(name), "java")
}

// Stats collects live metrics for a running process. Returns an error when
// the process disappeared between the liveness check and collection; callers
// treat that as "no metrics", not a fault.
func Stats(pid int) (*models.ProcessStats, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil, err
	}

	stats := &models.ProcessStats{}

	if cpu, err := p.CPUPercent(); err == nil {
		stats.CPUPercent = cpu
	}
	if mem, err := p.MemoryInfo(); err == nil && mem != nil {
		stats.MemoryRSS = mem.RSS
	}
	if status, err := p.Status(); err == nil && len(status) > 0 {
		stats.Status = status[0]
	}
	createMS, err := p.CreateTime()
	if err != nil {
		return nil, err
	}
	stats.UptimeSeconds = time.Since(time.UnixMilli(createMS)).Seconds()

	return stats, nil
}

// Terminate stops the process with pid. When graceful is true it sends the
// platform's polite termination signal first and waits briefly before
// escalating to a hard kill. Returns true once the process is gone.
func Terminate(pid int, graceful bool) bool {
	if !Exists(pid) {
		return true
	}

	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return !Exists(pid)
	}

	if graceful {
		if err := p.Terminate(); err != nil {
			slog.Debug("terminate signal failed", "pid", pid, "error", err)
		}
		if waitGone(pid, 5*time.Second) {
			return true
		}
	}

	if err := p.Kill(); err != nil {
		slog.Debug("kill signal failed", "pid", pid, "error", err)
	}
	return waitGone(pid, 5*time.Second)
}

func waitGone(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !Exists(pid) {
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	return !Exists(pid)
}

// PortAvailable checks whether a TCP port can be bound. When it cannot, the
// owning pid is looked up in the OS connection table; 0 means unknown.
func PortAvailable(port int) (bool, int) {
	l, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err == nil {
		l.Close()
		return true, 0
	}

	conns, err := gnet.Connections("tcp")
	if err != nil {
		return false, 0
	}
	for _, conn := range conns {
		if int(conn.Laddr.Port) == port && conn.Status == "LISTEN" {
			return false, int(conn.Pid)
		}
	}
	return false, 0
}
