//go:build windows

package registry

import "syscall"

// detachedProcess creates the process without a console window so it
// runs independently of the parent.
const detachedProcess = 0x00000008

func detachAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP | detachedProcess,
	}
}
