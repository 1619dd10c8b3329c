//go:build !unix

package hancho

import "os/exec"

// setGracefulShutdown is a no-op on non-Unix platforms: SIGINT doesn't
// apply, so cmd.Cancel falls back to its default (Process.Kill).
func setGracefulShutdown(cmd *exec.Cmd) {
	_ = cmd
}
