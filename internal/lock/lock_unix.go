//go:build !windows

package lock

import "golang.org/x/sys/unix"

// processAlive reports whether pid names a live process on this host,
// using signal 0 (spec §4.4 step 3: "the OS reports payload.pid as
// absent"). ESRCH means the process is gone; EPERM means it exists but we
// can't signal it, which still counts as alive.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}
	return err == unix.EPERM
}
