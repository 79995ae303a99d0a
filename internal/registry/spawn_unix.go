//go:build unix

package registry

import "syscall"

// detachAttr starts a background agent in its own session, detached
// from the controlling terminal so it survives the parent.
func detachAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}
