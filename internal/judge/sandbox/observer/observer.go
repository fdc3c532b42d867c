// Package observer defines metrics hooks for sandbox execution.
package observer

import (
	"context"
	"time"
)

// Pipeline stages reported to ObserveStage.
const (
	StageCompile = "compile"
	StageRun     = "run"
	StageTotal   = "total"
)

// MetricsRecorder records sandbox metrics.
type MetricsRecorder interface {
	ObserveStage(ctx context.Context, stage string, elapsed time.Duration)
	ObserveResult(ctx context.Context, status string)
}

// Nop discards every observation.
type Nop struct{}

func (Nop) ObserveStage(context.Context, string, time.Duration) {}
func (Nop) ObserveResult(context.Context, string)               {}
