//go:build linux

package runner

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"codejudge/internal/judge/sandbox/workspace"
)

func TestMain(m *testing.M) {
	if os.Getenv(HelperEnvKey) != "" {
		os.Exit(RunInit())
	}
	os.Exit(m.Run())
}

func newRunner(t *testing.T, cfg Config) (*Runner, *workspace.Generator) {
	t.Helper()
	ws := workspace.NewGenerator(t.TempDir())
	if cfg.HelperPath == "" {
		cfg.HelperPath = os.Args[0]
	}
	r, err := New(cfg, ws)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	return r, ws
}

func writeProgram(t *testing.T, ws *workspace.Generator, script string) workspace.ID {
	t.Helper()
	id := ws.Generate()
	if err := os.WriteFile(ws.Paths(id).Executable, []byte("#!/bin/sh\n"+script+"\n"), 0755); err != nil {
		t.Fatalf("write program: %v", err)
	}
	return id
}

func TestRunStatuses(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   int
	}{
		{name: "clean exit", script: "exit 0", want: StatusOK},
		{name: "exit one is ambiguous with helper failure", script: "exit 1", want: StatusHelperFailed},
		{name: "other exit status", script: "exit 3", want: 3},
		{name: "segfault", script: "kill -SEGV $$", want: int(syscall.SIGSEGV)},
		{name: "abort", script: "kill -ABRT $$", want: int(syscall.SIGABRT)},
		{name: "harness alarm", script: "kill -ALRM $$", want: int(syscall.SIGXCPU)},
		{name: "alarm exit status", script: "exit 14", want: int(syscall.SIGXCPU)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ws := newRunner(t, Config{})
			id := writeProgram(t, ws, tt.script)
			if got := r.Run(context.Background(), id, 2, 256); got != tt.want {
				t.Fatalf("Run() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRunWiresStandardStreams(t *testing.T) {
	r, ws := newRunner(t, Config{})
	id := writeProgram(t, ws, "echo line1; echo line2; echo oops >&2; cat")
	paths := ws.Paths(id)
	if err := os.WriteFile(paths.Stdin, []byte("from stdin\n"), 0644); err != nil {
		t.Fatalf("write stdin: %v", err)
	}

	if got := r.Run(context.Background(), id, 2, 256); got != StatusOK {
		t.Fatalf("Run() = %d", got)
	}
	out, _ := os.ReadFile(paths.Stdout)
	if string(out) != "line1\nline2\nfrom stdin\n" {
		t.Fatalf("unexpected stdout %q", out)
	}
	errOut, _ := os.ReadFile(paths.Stderr)
	if string(errOut) != "oops\n" {
		t.Fatalf("unexpected stderr %q", errOut)
	}
}

func TestRunHelperDoesNotLeakIntoChildEnv(t *testing.T) {
	r, ws := newRunner(t, Config{})
	id := writeProgram(t, ws, `printf '%s' "$`+HelperEnvKey+`"`)
	if got := r.Run(context.Background(), id, 2, 256); got != StatusOK {
		t.Fatalf("Run() = %d", got)
	}
	out, _ := os.ReadFile(ws.Paths(id).Stdout)
	if len(out) != 0 {
		t.Fatalf("helper marker leaked: %q", out)
	}
}

func TestRunCPULimitExceeded(t *testing.T) {
	if testing.Short() {
		t.Skip("burns one second of CPU")
	}
	r, ws := newRunner(t, Config{})
	id := writeProgram(t, ws, "while :; do :; done")
	if got := r.Run(context.Background(), id, 1, 256); got != int(syscall.SIGXCPU) {
		t.Fatalf("Run() = %d, want SIGXCPU", got)
	}
}

func TestRunMissingExecutable(t *testing.T) {
	r, ws := newRunner(t, Config{})
	id := ws.Generate()
	if got := r.Run(context.Background(), id, 1, 64); got != StatusHelperFailed {
		t.Fatalf("Run() = %d, want %d", got, StatusHelperFailed)
	}
}

func TestRunHelperSpawnFailure(t *testing.T) {
	r, ws := newRunner(t, Config{HelperPath: "/nonexistent/sandbox-init"})
	id := writeProgram(t, ws, "exit 0")
	if got := r.Run(context.Background(), id, 1, 64); got != StatusSpawnFailed {
		t.Fatalf("Run() = %d, want %d", got, StatusSpawnFailed)
	}
}

func TestRunOpenFailure(t *testing.T) {
	ws := workspace.NewGenerator(filepath.Join(t.TempDir(), "missing"))
	r, err := New(Config{HelperPath: os.Args[0]}, ws)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	if got := r.Run(context.Background(), ws.Generate(), 1, 64); got != StatusOpenFailed {
		t.Fatalf("Run() = %d, want %d", got, StatusOpenFailed)
	}
}

func TestConfiguredTimeLimitSignals(t *testing.T) {
	r, ws := newRunner(t, Config{TimeLimitSignals: []string{"usr1", "SIGALRM"}})
	id := writeProgram(t, ws, "kill -USR1 $$")
	if got := r.Run(context.Background(), id, 2, 256); got != int(syscall.SIGXCPU) {
		t.Fatalf("Run() = %d, want SIGXCPU", got)
	}

	if _, err := New(Config{TimeLimitSignals: []string{"SIGNOPE"}}, ws); err == nil {
		t.Fatal("expected unknown signal error")
	}
}
