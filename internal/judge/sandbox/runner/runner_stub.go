//go:build !linux

package runner

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"codejudge/internal/judge/sandbox/workspace"
	"codejudge/pkg/utils/logger"
)

// Run is unsupported on this platform.
func (r *Runner) Run(ctx context.Context, id workspace.ID, cpuLimit, memLimit int) int {
	logger.Error(ctx, "sandbox runner is only supported on linux")
	return StatusSpawnFailed
}

// RunInit is unsupported on this platform.
func RunInit() int {
	_, _ = fmt.Fprintln(os.Stderr, "sandbox-init: only supported on linux")
	return InitFailureStatus
}

func resolveSignals(names []string) ([]syscall.Signal, error) {
	return nil, nil
}
