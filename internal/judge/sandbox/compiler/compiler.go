// Package compiler turns a workspace source artifact into an executable.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"time"

	"codejudge/internal/judge/sandbox/workspace"
	"codejudge/pkg/utils/logger"

	"github.com/google/shlex"
	"go.uber.org/zap"
)

const (
	// DefaultCommand is the toolchain invocation used when none is configured.
	DefaultCommand = "g++ -o {exe} {src} -D COMPILER_ONLINE -Werror=return-type -Wfatal-errors -std=c++11"

	SourcePlaceholder     = "{src}"
	ExecutablePlaceholder = "{exe}"

	DefaultTimeout = 30 * time.Second
)

// Config holds compiler settings.
type Config struct {
	// Command is split shell-style; {src} and {exe} are substituted per argument.
	Command string `yaml:"command"`
	// Timeout bounds one toolchain run; zero uses DefaultTimeout.
	Timeout time.Duration `yaml:"timeout"`
}

// Compiler runs the configured toolchain against workspace artifacts.
type Compiler struct {
	argv    []string
	timeout time.Duration
	ws      *workspace.Generator
}

// New parses the command template.
func New(cfg Config, ws *workspace.Generator) (*Compiler, error) {
	if ws == nil {
		return nil, fmt.Errorf("workspace generator is required")
	}
	command := strings.TrimSpace(cfg.Command)
	if command == "" {
		command = DefaultCommand
	}
	argv, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("parse compile command: %w", err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("compile command is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Compiler{argv: argv, timeout: timeout, ws: ws}, nil
}

// Args returns the expanded toolchain argv for paths.
func (c *Compiler) Args(paths workspace.Paths) []string {
	replacer := strings.NewReplacer(SourcePlaceholder, paths.Source, ExecutablePlaceholder, paths.Executable)
	out := make([]string, len(c.argv))
	for i, arg := range c.argv {
		out[i] = replacer.Replace(arg)
	}
	return out
}

// Compile builds the executable artifact of id. Diagnostics go to the
// compile-error artifact. The toolchain is killed when ctx ends or the
// configured timeout passes. It reports success only when the toolchain
// exits cleanly and the executable exists.
func (c *Compiler) Compile(ctx context.Context, id workspace.ID) bool {
	paths := c.ws.Paths(id)
	if err := os.Remove(paths.Executable); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn(ctx, "remove stale executable failed", zap.String("workspace", string(id)), zap.Error(err))
		return false
	}

	diagnostics, err := os.OpenFile(paths.CompileError, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		logger.Warn(ctx, "open compile error artifact failed", zap.String("workspace", string(id)), zap.Error(err))
		return false
	}
	defer diagnostics.Close()

	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	args := c.Args(paths)
	cmd := exec.CommandContext(runCtx, args[0], args[1:]...)
	cmd.Stderr = diagnostics
	cmd.WaitDelay = time.Second

	if err := cmd.Run(); err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			logger.Warn(ctx, "compilation timed out", zap.String("workspace", string(id)), zap.Duration("timeout", c.timeout))
			_, _ = fmt.Fprintf(diagnostics, "\ncompilation timed out after %s\n", c.timeout)
			return false
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			logger.Error(ctx, "launch compiler failed", zap.String("workspace", string(id)), zap.Error(err))
			return false
		}
		logger.Info(ctx, "compilation failed", zap.String("workspace", string(id)), zap.Int("exit_code", exitErr.ExitCode()))
		return false
	}
	if !workspace.Exists(paths.Executable) {
		logger.Warn(ctx, "compiler exited cleanly without an executable", zap.String("workspace", string(id)))
		return false
	}
	logger.Debug(ctx, "compilation succeeded", zap.String("workspace", string(id)))
	return true
}
