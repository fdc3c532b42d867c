// Package workspace names per-attempt artifacts and owns their lifecycle.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"
)

const (
	SourceSuffix       = ".cpp"
	ExecutableSuffix   = ".exe"
	CompileErrorSuffix = ".compiler_error"
	StdinSuffix        = ".stdin"
	StdoutSuffix       = ".stdout"
	StderrSuffix       = ".stderr"
)

// ID identifies one judge attempt. It has no directory and no suffix.
type ID string

// Paths lists every artifact path derived from one ID.
type Paths struct {
	Source       string
	Executable   string
	CompileError string
	Stdin        string
	Stdout       string
	Stderr       string
}

// All returns the artifact paths in cleanup order.
func (p Paths) All() []string {
	return []string{p.Source, p.CompileError, p.Stdin, p.Stdout, p.Stderr, p.Executable}
}

// Generator hands out collision-free IDs under one temp directory.
type Generator struct {
	dir     string
	counter atomic.Uint64
	now     func() time.Time
}

// NewGenerator creates a generator rooted at dir.
func NewGenerator(dir string) *Generator {
	return &Generator{dir: dir, now: time.Now}
}

// Dir returns the temp directory holding the artifacts.
func (g *Generator) Dir() string {
	return g.dir
}

// EnsureDir creates the temp directory if needed.
func (g *Generator) EnsureDir() error {
	if err := os.MkdirAll(g.dir, 0755); err != nil {
		return fmt.Errorf("create workspace dir: %w", err)
	}
	return nil
}

// Generate returns a fresh ID: millisecond timestamp plus a counter value.
func (g *Generator) Generate() ID {
	seq := g.counter.Add(1)
	ms := g.now().UnixMilli()
	return ID(strconv.FormatInt(ms, 10) + "." + strconv.FormatUint(seq, 10))
}

// Paths derives every artifact path of id.
func (g *Generator) Paths(id ID) Paths {
	base := filepath.Join(g.dir, string(id))
	return Paths{
		Source:       base + SourceSuffix,
		Executable:   base + ExecutableSuffix,
		CompileError: base + CompileErrorSuffix,
		Stdin:        base + StdinSuffix,
		Stdout:       base + StdoutSuffix,
		Stderr:       base + StderrSuffix,
	}
}

// WriteSource persists code as the source artifact of id.
func (g *Generator) WriteSource(id ID, code string) error {
	if err := os.WriteFile(g.Paths(id).Source, []byte(code), 0644); err != nil {
		return fmt.Errorf("write source: %w", err)
	}
	return nil
}

// Cleanup removes every artifact of id that exists. It is idempotent and
// reports the paths it failed to remove instead of failing.
func (g *Generator) Cleanup(id ID) []string {
	if id == "" {
		return nil
	}
	var failed []string
	for _, path := range g.Paths(id).All() {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			failed = append(failed, path)
		}
	}
	return failed
}

// Exists reports whether path can be stat'ed.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
