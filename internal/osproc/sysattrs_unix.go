//go:build !windows

package osproc

import "syscall"

// sysProcAttr places the child in its own process group so server shutdown
// signals do not propagate to the manager and vice versa.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}
