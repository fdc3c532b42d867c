//go:build linux

package runner

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

const initRequestFD = 3

// RunInit is the body of the init helper. It reads the InitRequest from
// descriptor 3, lowers its own limits and execs the user program. It only
// returns on failure, with InitFailureStatus.
func RunInit() int {
	if err := runInit(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "sandbox-init:", err)
	}
	return InitFailureStatus
}

func runInit() error {
	pipe := os.NewFile(initRequestFD, "init-request")
	if pipe == nil {
		return fmt.Errorf("init request descriptor is missing")
	}
	var req InitRequest
	err := json.NewDecoder(pipe).Decode(&req)
	_ = pipe.Close()
	if err != nil {
		return fmt.Errorf("decode init request: %w", err)
	}
	if req.Path == "" {
		return fmt.Errorf("executable path is required")
	}
	if err := applyLimits(req); err != nil {
		return err
	}
	return unix.Exec(req.Path, []string{req.Path}, childEnv(os.Environ()))
}

// applyLimits sets soft limits; the hard limit is left as inherited.
func applyLimits(req InitRequest) error {
	if req.CPULimit > 0 {
		if err := setSoftLimit(unix.RLIMIT_CPU, uint64(req.CPULimit)); err != nil {
			return fmt.Errorf("set rlimit cpu: %w", err)
		}
	}
	if req.MemLimit > 0 {
		if err := setSoftLimit(unix.RLIMIT_AS, uint64(req.MemLimit)*1024*1024); err != nil {
			return fmt.Errorf("set rlimit as: %w", err)
		}
	}
	return nil
}

func setSoftLimit(resource int, value uint64) error {
	var lim unix.Rlimit
	if err := unix.Getrlimit(resource, &lim); err != nil {
		return err
	}
	if value > lim.Max {
		value = lim.Max
	}
	lim.Cur = value
	return unix.Setrlimit(resource, &lim)
}

func childEnv(env []string) []string {
	out := make([]string, 0, len(env))
	for _, kv := range env {
		if strings.HasPrefix(kv, HelperEnvKey+"=") {
			continue
		}
		out = append(out, kv)
	}
	return out
}
