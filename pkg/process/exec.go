package process

import (
	"fmt"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

// ExecReplace replaces the current process image with cmd. It only returns
// when the replacement failed.
func ExecReplace(cmd *exec.Cmd) error {
	if cmd.Err != nil {
		return fmt.Errorf("failed to resolve %s: %w", cmd.Path, cmd.Err)
	}

	env := cmd.Env
	if env == nil {
		env = os.Environ()
	}
	if cmd.Dir != "" {
		if err := os.Chdir(cmd.Dir); err != nil {
			return fmt.Errorf("failed to change directory to %s: %w", cmd.Dir, err)
		}
	}

	err := unix.Exec(cmd.Path, cmd.Args, env)
	return fmt.Errorf("failed to execute %s: %w", cmd.Path, err)
}
