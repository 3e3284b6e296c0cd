//go:build windows

package hooks

import "os/exec"

func isolate(*exec.Cmd) {}

// kill terminates the hook process. Children it spawned are not tracked.
func kill(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	_ = cmd.Process.Kill()
	return nil
}
