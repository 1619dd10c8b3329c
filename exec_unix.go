//go:build unix

package hancho

import (
	"os/exec"
	"syscall"
)

// setGracefulShutdown arranges for cmd to receive SIGINT (rather than an
// immediate SIGKILL) when its context is cancelled, giving the subprocess a
// chance to clean up before cmd.WaitDelay elapses.
func setGracefulShutdown(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGINT)
	}
}
