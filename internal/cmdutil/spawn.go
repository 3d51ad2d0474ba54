package cmdutil

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// Spawn starts a long-running subprocess bound to ctx's lifetime
// instead of a fixed timeout — for supervising peer/nameserver
// processes under `trackerd cluster`. The process is not waited on
// here; the caller may Wait on the returned *exec.Cmd. Stdout/stderr are passed
// through so each subprocess's own logging is visible directly.
func Spawn(ctx context.Context, name string, args ...string) (*exec.Cmd, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("cmdutil: spawn %s: %w", name, err)
	}
	return cmd, nil
}
