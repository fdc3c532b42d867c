// Package model defines the compile-and-run wire protocol shared by the
// compile server and the judge controller.
package model

// CompileRequest is the body of POST /compile_and_run.
type CompileRequest struct {
	Code string `json:"code"`
	// Input is carried for self-tests but not used for grading.
	Input string `json:"input"`
	// CPULimit is the CPU-time limit in seconds.
	CPULimit int `json:"cpuLimit"`
	// MemLimit is the address-space limit in MiB.
	MemLimit int `json:"memLimit"`
}

// CompileResponse is the body answered by the compile server.
// Stdout and Stderr are present iff Code is 0.
type CompileResponse struct {
	Code   int     `json:"code"`
	Reason string  `json:"reason"`
	Stdout *string `json:"stdout,omitempty"`
	Stderr *string `json:"stderr,omitempty"`
}
