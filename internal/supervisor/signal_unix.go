// SPDX-License-Identifier: MPL-2.0

//go:build unix

package supervisor

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcessGroup makes the child lead its own process group so Stop can
// signal everything nspawn spawned.
func setProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// killProcessGroup sends SIGKILL and then SIGTERM to the group led by p and
// reports whether the group still existed. A group that is already gone is
// not an error.
func killProcessGroup(p *os.Process) (bool, error) {
	signalled := false
	for _, sig := range []unix.Signal{unix.SIGKILL, unix.SIGTERM} {
		err := unix.Kill(-p.Pid, sig)
		switch {
		case err == nil:
			signalled = true
		case !errors.Is(err, unix.ESRCH):
			return signalled, err
		}
	}
	return signalled, nil
}
