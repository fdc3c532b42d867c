package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"codejudge/internal/judge/model"
	"codejudge/internal/judge/sandbox/observer"
	"codejudge/internal/judge/sandbox/result"
	"codejudge/internal/judge/sandbox/workspace"
	appErr "codejudge/pkg/errors"
	"codejudge/pkg/utils/logger"

	"go.uber.org/zap"
)

const defaultOutputMaxBytes int64 = 4 << 20

// Compiler builds the executable artifact of a workspace.
type Compiler interface {
	Compile(ctx context.Context, id workspace.ID) bool
}

// Runner executes the executable artifact of a workspace and returns its status.
type Runner interface {
	Run(ctx context.Context, id workspace.ID, cpuLimit, memLimit int) int
}

// Config holds service dependencies and settings.
type Config struct {
	Workspace      *workspace.Generator
	Compiler       Compiler
	Runner         Runner
	Metrics        observer.MetricsRecorder
	OutputMaxBytes int64
	// MaxConcurrent caps in-flight attempts; zero means unlimited.
	MaxConcurrent int
	// SlotTimeout bounds the wait for a free slot, further capped at the
	// request's CPU limit. Zero refuses at once when every slot is taken.
	SlotTimeout time.Duration
}

// Service drives one compile-and-run attempt per request.
type Service struct {
	ws             *workspace.Generator
	compiler       Compiler
	runner         Runner
	metrics        observer.MetricsRecorder
	outputMaxBytes int64
	slotTimeout    time.Duration
	sem            chan struct{}
}

// NewService creates a new compile-and-run service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Workspace == nil {
		return nil, fmt.Errorf("workspace generator is required")
	}
	if cfg.Compiler == nil {
		return nil, fmt.Errorf("compiler is required")
	}
	if cfg.Runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observer.Nop{}
	}
	outputMax := cfg.OutputMaxBytes
	if outputMax <= 0 {
		outputMax = defaultOutputMaxBytes
	}
	s := &Service{
		ws:             cfg.Workspace,
		compiler:       cfg.Compiler,
		runner:         cfg.Runner,
		metrics:        metrics,
		outputMaxBytes: outputMax,
		slotTimeout:    cfg.SlotTimeout,
	}
	if cfg.MaxConcurrent > 0 {
		s.sem = make(chan struct{}, cfg.MaxConcurrent)
	}
	return s, nil
}

// Start compiles and runs req.Code and classifies the outcome. The only
// error returned is a failure to obtain an execution slot.
func (s *Service) Start(ctx context.Context, req model.CompileRequest) (model.CompileResponse, error) {
	if req.Code == "" {
		return s.finish(ctx, result.StatusEmptyCode, ""), nil
	}
	if err := s.acquireSlot(ctx, s.slotWait(req.CPULimit)); err != nil {
		return model.CompileResponse{}, err
	}
	defer s.releaseSlot()

	begin := time.Now()
	defer func() {
		s.metrics.ObserveStage(ctx, observer.StageTotal, time.Since(begin))
	}()

	id := s.ws.Generate()
	defer s.cleanup(ctx, id)
	fields := []zap.Field{zap.String("workspace", string(id))}

	if err := s.ws.WriteSource(id, req.Code); err != nil {
		logger.Error(ctx, "persist source failed", append(fields, zap.Error(err))...)
		return s.finish(ctx, result.StatusWriteFailed, ""), nil
	}

	compileStart := time.Now()
	ok := s.compiler.Compile(ctx, id)
	s.metrics.ObserveStage(ctx, observer.StageCompile, time.Since(compileStart))
	if !ok {
		diagnostics := s.readArtifact(ctx, s.ws.Paths(id).CompileError)
		return s.finish(ctx, result.StatusCompileFailed, result.CompileReason(diagnostics)), nil
	}

	runStart := time.Now()
	status := s.runner.Run(ctx, id, req.CPULimit, req.MemLimit)
	s.metrics.ObserveStage(ctx, observer.StageRun, time.Since(runStart))
	if status < 0 {
		logger.Error(ctx, "sandbox runner failed", append(fields, zap.Int("runner_status", status))...)
		return s.finish(ctx, result.StatusInternalError, ""), nil
	}

	resp := s.finish(ctx, status, "")
	if status == result.StatusOK {
		paths := s.ws.Paths(id)
		stdout := s.readArtifact(ctx, paths.Stdout)
		stderr := s.readArtifact(ctx, paths.Stderr)
		resp.Stdout = &stdout
		resp.Stderr = &stderr
	}
	return resp, nil
}

func (s *Service) finish(ctx context.Context, code int, reason string) model.CompileResponse {
	if reason == "" {
		reason = result.Reason(code)
	}
	s.metrics.ObserveResult(ctx, result.Label(code))
	logger.Info(ctx, "compile and run finished", zap.Int("code", code), zap.String("reason_label", result.Label(code)))
	return model.CompileResponse{Code: code, Reason: reason}
}

// readArtifact returns the file content, truncated to the output cap.
// A missing or unreadable artifact reads as empty.
func (s *Service) readArtifact(ctx context.Context, path string) string {
	file, err := os.Open(path)
	if err != nil {
		logger.Warn(ctx, "open artifact failed", zap.String("path", path), zap.Error(err))
		return ""
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, s.outputMaxBytes))
	if err != nil {
		logger.Warn(ctx, "read artifact failed", zap.String("path", path), zap.Error(err))
	}
	return string(data)
}

func (s *Service) cleanup(ctx context.Context, id workspace.ID) {
	if failed := s.ws.Cleanup(id); len(failed) > 0 {
		logger.Warn(ctx, "workspace cleanup incomplete", zap.String("workspace", string(id)), zap.Strings("paths", failed))
	}
}

// slotWait caps queueing at one CPU limit, well inside the caller's deadline.
func (s *Service) slotWait(cpuLimit int) time.Duration {
	wait := s.slotTimeout
	if limit := time.Duration(cpuLimit) * time.Second; cpuLimit > 0 && wait > limit {
		wait = limit
	}
	return wait
}

func (s *Service) acquireSlot(ctx context.Context, wait time.Duration) error {
	if s.sem == nil {
		return nil
	}
	select {
	case s.sem <- struct{}{}:
		return nil
	default:
	}
	if wait <= 0 {
		return appErr.New(appErr.JudgeQueueFull).WithMessage("worker pool is full")
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return appErr.Wrapf(ctx.Err(), appErr.Timeout, "wait for execution slot canceled")
	case <-timer.C:
		return appErr.New(appErr.JudgeQueueFull).WithMessage("worker pool is full")
	}
}

func (s *Service) releaseSlot() {
	if s.sem == nil {
		return
	}
	select {
	case <-s.sem:
	default:
	}
}
