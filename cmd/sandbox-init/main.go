// Command sandbox-init applies resource limits to itself and execs the
// program named in the request it receives on descriptor 3.
package main

import (
	"os"

	"codejudge/internal/judge/sandbox/runner"
)

func main() {
	os.Exit(runner.RunInit())
}
