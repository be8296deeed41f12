package osproc

import (
	"bufio"
	"net"
	"runtime"
	"testing"
	"time"
)

func TestSpawnAndExists(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/sh")
	}

	h, err := Spawn("/bin/sh", []string{"-c", "echo hello; sleep 5"}, t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer h.Cmd.Process.Kill()
	defer h.Cmd.Wait()

	if !Exists(h.PID) {
		t.Errorf("Exists(%d) = false for live child", h.PID)
	}

	scanner := bufio.NewScanner(h.Stdout)
	if !scanner.Scan() {
		t.Fatal("no output from child")
	}
	if got := scanner.Text(); got != "hello" {
		t.Errorf("stdout = %q, want %q", got, "hello")
	}
}

func TestExistsRejectsBadPids(t *testing.T) {
	if Exists(0) {
		t.Error("Exists(0) = true")
	}
	if Exists(-1) {
		t.Error("Exists(-1) = true")
	}
}

func TestTerminateGraceful(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/sh")
	}

	h, err := Spawn("/bin/sh", []string{"-c", "sleep 60"}, t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	if !Terminate(h.PID, true) {
		t.Errorf("Terminate(%d) did not stop the child", h.PID)
	}
	h.Cmd.Wait()

	if Exists(h.PID) {
		t.Errorf("child %d still exists after Terminate", h.PID)
	}
}

func TestTerminateOnDeadPidIsTrue(t *testing.T) {
	if !Terminate(0, true) {
		t.Error("Terminate on invalid pid should report success")
	}
}

func TestPortAvailable(t *testing.T) {
	l, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	port := l.Addr().(*net.TCPAddr).Port

	if ok, _ := PortAvailable(port); ok {
		t.Errorf("PortAvailable(%d) = true while listener is open", port)
	}

	l.Close()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ok, _ := PortAvailable(port); ok {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Errorf("PortAvailable(%d) never became true after close", port)
}

func TestStatsOnSelf(t *testing.T) {
	pid := selfPid(t)
	stats, err := Stats(pid)
	if err != nil {
		t.Fatalf("Stats(%d): %v", pid, err)
	}
	if stats.MemoryRSS == 0 {
		t.Error("MemoryRSS = 0 for a live process")
	}
	if stats.UptimeSeconds < 0 {
		t.Errorf("UptimeSeconds = %f, want >= 0", stats.UptimeSeconds)
	}
}

func selfPid(t *testing.T) int {
	t.Helper()
	h, err := Spawn("/bin/sh", []string{"-c", "sleep 5"}, t.TempDir(), nil)
	if err != nil {
		t.Skipf("cannot spawn helper: %v", err)
	}
	t.Cleanup(func() {
		h.Cmd.Process.Kill()
		h.Cmd.Wait()
	})
	return h.PID
}

func TestStatsOnMissingPid(t *testing.T) {
	if _, err := Stats(99999999); err == nil {
		t.Error("Stats on bogus pid should error")
	}
}
