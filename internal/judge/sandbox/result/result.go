// Package result defines the compile-and-run status taxonomy and its
// human-readable reasons.
package result

import (
	"strconv"
	"syscall"
)

// Pipeline statuses. Positive values are the terminating signal number.
const (
	StatusOK            = 0
	StatusEmptyCode     = -1
	StatusWriteFailed   = -2
	StatusCompileFailed = -3
	StatusInternalError = -4
)

// DefaultCompileFailure is used when the compiler left no diagnostics.
const DefaultCompileFailure = "compilation failed"

// Reason maps a status to the message returned to users. Compile failures
// carry the compiler diagnostics instead, see CompileReason.
func Reason(code int) string {
	switch code {
	case StatusOK:
		return "compiled and ran successfully"
	case StatusEmptyCode:
		return "submitted code is empty"
	case StatusWriteFailed, StatusInternalError:
		return "internal error: " + strconv.Itoa(code)
	case StatusCompileFailed:
		return DefaultCompileFailure
	case int(syscall.SIGXCPU):
		return "time limit exceeded"
	case int(syscall.SIGABRT):
		return "memory limit exceeded"
	case int(syscall.SIGKILL):
		return "resource limit exceeded"
	case int(syscall.SIGFPE):
		return "division by zero / floating point overflow"
	case int(syscall.SIGSEGV):
		return "segmentation fault"
	default:
		return "unknown error: " + strconv.Itoa(code)
	}
}

// CompileReason returns the diagnostics text, or the fallback when empty.
func CompileReason(diagnostics string) string {
	if diagnostics == "" {
		return DefaultCompileFailure
	}
	return diagnostics
}

// Label returns a low-cardinality metrics label for a status.
func Label(code int) string {
	switch code {
	case StatusOK:
		return "ok"
	case StatusEmptyCode:
		return "empty_code"
	case StatusWriteFailed:
		return "write_failed"
	case StatusCompileFailed:
		return "compile_error"
	case StatusInternalError:
		return "internal_error"
	case int(syscall.SIGXCPU):
		return "time_limit"
	case int(syscall.SIGABRT):
		return "memory_limit"
	case int(syscall.SIGKILL):
		return "resource_limit"
	case int(syscall.SIGFPE):
		return "fpe"
	case int(syscall.SIGSEGV):
		return "segfault"
	default:
		return "unknown"
	}
}
