//go:build linux

package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"codejudge/internal/judge/sandbox/workspace"
	"codejudge/pkg/utils/logger"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Run executes the executable artifact of id with the stdin, stdout and
// stderr artifacts as its standard streams. The child is not tied to ctx:
// it ends through its CPU limit or its own harness.
func (r *Runner) Run(ctx context.Context, id workspace.ID, cpuLimit, memLimit int) int {
	paths := r.ws.Paths(id)
	fields := []zap.Field{zap.String("workspace", string(id))}

	stdin, err := os.OpenFile(paths.Stdin, os.O_CREATE|os.O_RDONLY, 0644)
	if err != nil {
		logger.Error(ctx, "open stdin artifact failed", append(fields, zap.Error(err))...)
		return StatusOpenFailed
	}
	defer stdin.Close()
	stdout, err := os.OpenFile(paths.Stdout, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		logger.Error(ctx, "open stdout artifact failed", append(fields, zap.Error(err))...)
		return StatusOpenFailed
	}
	defer stdout.Close()
	stderr, err := os.OpenFile(paths.Stderr, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		logger.Error(ctx, "open stderr artifact failed", append(fields, zap.Error(err))...)
		return StatusOpenFailed
	}
	defer stderr.Close()

	initReader, err := writeInitRequest(InitRequest{Path: paths.Executable, CPULimit: cpuLimit, MemLimit: memLimit})
	if err != nil {
		logger.Error(ctx, "prepare init request failed", append(fields, zap.Error(err))...)
		return StatusSpawnFailed
	}

	cmd := exec.Command(r.helperPath)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.ExtraFiles = []*os.File{initReader}
	cmd.Env = append(os.Environ(), HelperEnvKey+"=1")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		_ = initReader.Close()
		logger.Error(ctx, "start sandbox helper failed", append(fields, zap.String("helper", r.helperPath), zap.Error(err))...)
		return StatusSpawnFailed
	}
	_ = initReader.Close()

	waitErr := cmd.Wait()
	if cmd.ProcessState == nil {
		logger.Error(ctx, "wait sandbox helper failed", append(fields, zap.Error(waitErr))...)
		return StatusSpawnFailed
	}
	code := r.classify(cmd.ProcessState)
	logger.Debug(ctx, "sandbox run finished", append(fields, zap.Int("status", code), zap.Duration("cpu", cmd.ProcessState.UserTime()+cmd.ProcessState.SystemTime()))...)
	return code
}

func (r *Runner) classify(state *os.ProcessState) int {
	status, ok := state.Sys().(syscall.WaitStatus)
	if !ok {
		return state.ExitCode()
	}
	if status.Signaled() {
		sig := status.Signal()
		if r.isTimeLimit(sig) {
			return int(unix.SIGXCPU)
		}
		return int(sig)
	}
	code := status.ExitStatus()
	switch {
	case code == 0:
		return StatusOK
	case code == InitFailureStatus:
		return StatusHelperFailed
	case r.isTimeLimit(syscall.Signal(code)):
		return int(unix.SIGXCPU)
	default:
		return code
	}
}

// writeInitRequest returns the read end of a pipe already holding req.
func writeInitRequest(req InitRequest) (*os.File, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode init request: %w", err)
	}
	reader, writer, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create init pipe: %w", err)
	}
	_, err = writer.Write(payload)
	closeErr := writer.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = reader.Close()
		return nil, fmt.Errorf("write init request: %w", err)
	}
	return reader, nil
}

func resolveSignals(names []string) ([]syscall.Signal, error) {
	out := make([]syscall.Signal, 0, len(names))
	for _, name := range names {
		name = strings.ToUpper(strings.TrimSpace(name))
		if !strings.HasPrefix(name, "SIG") {
			name = "SIG" + name
		}
		sig := unix.SignalNum(name)
		if sig == 0 {
			return nil, fmt.Errorf("unknown signal %q", name)
		}
		out = append(out, sig)
	}
	return out, nil
}
