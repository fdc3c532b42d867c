// Package runner executes a compiled workspace artifact under CPU-time and
// address-space limits. Limits are applied by a small init helper process
// that replaces its own image with the user executable.
package runner

import (
	"fmt"
	"syscall"

	"codejudge/internal/judge/sandbox/workspace"
)

// Run statuses below zero are failures before the user program could run.
const (
	StatusOK           = 0
	StatusOpenFailed   = -1
	StatusSpawnFailed  = -2
	StatusHelperFailed = -3
)

const (
	// HelperEnvKey marks a process as the init helper. Tests re-exec
	// their own binary with it set.
	HelperEnvKey = "CODEJUDGE_SANDBOX_INIT"

	// InitFailureStatus is the helper's exit status for any failure
	// before the user program replaces it.
	InitFailureStatus = 1

	defaultHelperPath = "sandbox-init"
)

// DefaultTimeLimitSignals are the outcomes reported as time limit exceeded.
// SIGALRM comes from the alarm armed by the problem harness.
var DefaultTimeLimitSignals = []string{"SIGALRM"}

// Config holds runner settings.
type Config struct {
	HelperPath       string   `yaml:"helperPath"`
	TimeLimitSignals []string `yaml:"timeLimitSignals"`
}

// InitRequest is sent to the helper on its extra descriptor.
type InitRequest struct {
	Path     string `json:"path"`
	CPULimit int    `json:"cpuLimit"`
	MemLimit int    `json:"memLimit"`
}

// Runner spawns the init helper for workspace executables. It is safe for
// concurrent use.
type Runner struct {
	helperPath string
	ws         *workspace.Generator
	timeLimit  map[syscall.Signal]struct{}
}

// New creates a runner.
func New(cfg Config, ws *workspace.Generator) (*Runner, error) {
	if ws == nil {
		return nil, fmt.Errorf("workspace generator is required")
	}
	helper := cfg.HelperPath
	if helper == "" {
		helper = defaultHelperPath
	}
	names := cfg.TimeLimitSignals
	if len(names) == 0 {
		names = DefaultTimeLimitSignals
	}
	signals, err := resolveSignals(names)
	if err != nil {
		return nil, err
	}
	set := make(map[syscall.Signal]struct{}, len(signals))
	for _, sig := range signals {
		set[sig] = struct{}{}
	}
	return &Runner{helperPath: helper, ws: ws, timeLimit: set}, nil
}

func (r *Runner) isTimeLimit(sig syscall.Signal) bool {
	_, ok := r.timeLimit[sig]
	return ok
}
