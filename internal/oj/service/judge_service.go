package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	judgemodel "codejudge/internal/judge/model"
	"codejudge/internal/oj/judgeclient"
	"codejudge/internal/oj/loadbalance"
	"codejudge/internal/oj/model"
	"codejudge/internal/oj/repository"
	appErr "codejudge/pkg/errors"
	"codejudge/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	// The harness arms an alarm at twice the CPU limit; the call deadline
	// sits above that.
	defaultTimeoutFactor = 3
	defaultEventTimeout  = 2 * time.Second
)

// Outcome labels reported to Metrics.ObserveRequest.
const (
	OutcomeJudged      = "judged"
	OutcomeRetried     = "retried"
	OutcomeFleetDown   = "fleet_down"
	OutcomeBadRequest  = "bad_request"
	OutcomeNoProblem   = "problem_not_found"
	OutcomeStoreFailed = "store_unavailable"
	OutcomeCanceled    = "canceled"
	OutcomeBusy        = "busy"
	OutcomeOversize    = "oversize"
)

// JudgeClient sends one compile-and-run request to a compile server.
type JudgeClient interface {
	CompileAndRun(ctx context.Context, addr string, timeout time.Duration, req judgemodel.CompileRequest) ([]byte, error)
}

// Metrics receives dispatch and fleet observations.
type Metrics interface {
	ObserveRequest(outcome string)
	SetMachineLoad(machine string, load uint64)
	SetMachinesOnline(n int)
	MachineOffline(machine string)
}

type nopMetrics struct{}

func (nopMetrics) ObserveRequest(string)         {}
func (nopMetrics) SetMachineLoad(string, uint64) {}
func (nopMetrics) SetMachinesOnline(int)         {}
func (nopMetrics) MachineOffline(string)         {}

// Config holds service dependencies and settings.
type Config struct {
	Questions repository.QuestionRepository
	Balancer  *loadbalance.LoadBalancer
	Client    JudgeClient
	Events    repository.JudgeEventPublisher
	Metrics   Metrics
	// GlobalPreamble is prepended to every non-empty submission.
	GlobalPreamble string
	// TimeoutFactor multiplies the CPU limit into the per-call deadline.
	TimeoutFactor int
	EventTimeout  time.Duration
}

// Service is the judge controller: it serves the catalogue and dispatches
// submissions over the compile-server fleet.
type Service struct {
	questions      repository.QuestionRepository
	lb             *loadbalance.LoadBalancer
	client         JudgeClient
	events         repository.JudgeEventPublisher
	metrics        Metrics
	globalPreamble string
	timeoutFactor  int
	eventTimeout   time.Duration
}

// NewService creates a new judge controller.
func NewService(cfg Config) (*Service, error) {
	if cfg.Questions == nil {
		return nil, fmt.Errorf("question repository is required")
	}
	if cfg.Balancer == nil {
		return nil, fmt.Errorf("load balancer is required")
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("judge client is required")
	}
	s := &Service{
		questions:      cfg.Questions,
		lb:             cfg.Balancer,
		client:         cfg.Client,
		events:         cfg.Events,
		metrics:        cfg.Metrics,
		globalPreamble: cfg.GlobalPreamble,
		timeoutFactor:  cfg.TimeoutFactor,
		eventTimeout:   cfg.EventTimeout,
	}
	if s.events == nil {
		s.events = repository.NopJudgeEventPublisher{}
	}
	if s.metrics == nil {
		s.metrics = nopMetrics{}
	}
	if s.timeoutFactor <= 0 {
		s.timeoutFactor = defaultTimeoutFactor
	}
	if s.eventTimeout <= 0 {
		s.eventTimeout = defaultEventTimeout
	}
	s.metrics.SetMachinesOnline(s.lb.OnlineCount())
	return s, nil
}

// Judge runs the submission in body against problem number and returns
// the compile server's response body verbatim.
func (s *Service) Judge(ctx context.Context, number string, body []byte) ([]byte, error) {
	var sub model.Submission
	if err := json.Unmarshal(body, &sub); err != nil {
		s.metrics.ObserveRequest(OutcomeBadRequest)
		return nil, appErr.Wrapf(err, appErr.InvalidParams, "invalid submission body")
	}
	problem, err := s.GetQuestion(ctx, number)
	if err != nil {
		if appErr.Is(err, appErr.ProblemNotFound) {
			s.metrics.ObserveRequest(OutcomeNoProblem)
		} else {
			s.metrics.ObserveRequest(OutcomeStoreFailed)
		}
		return nil, err
	}

	req := judgemodel.CompileRequest{
		Code:     s.assembleSource(problem, sub.Code),
		Input:    sub.Input,
		CPULimit: problem.CPULimit,
		MemLimit: problem.MemLimit,
	}
	timeout := time.Duration(s.timeoutFactor*problem.CPULimit) * time.Second

	// busy holds workers that refused this request for lack of slots.
	busy := make(map[int]struct{})
	for {
		id, m, err := s.lb.SelectLeastLoadedExcept(busy)
		if errors.Is(err, loadbalance.ErrNoCandidate) {
			s.metrics.ObserveRequest(OutcomeBusy)
			logger.Warn(ctx, "every online compile server is busy", zap.String("problem", number), zap.Int("busy", len(busy)))
			return nil, appErr.New(appErr.JudgeQueueFull)
		}
		if err != nil {
			s.metrics.ObserveRequest(OutcomeFleetDown)
			logger.Error(ctx, "judge fleet unavailable", zap.String("problem", number))
			return nil, appErr.Wrap(err, appErr.JudgeFleetUnavailable)
		}
		fields := []zap.Field{
			zap.String("problem", number),
			zap.Int("machine_id", id),
			zap.String("addr", m.Addr()),
		}

		m.IncLoad()
		s.metrics.SetMachineLoad(m.Addr(), m.Load())
		logger.Info(ctx, "compile server selected", append(fields, zap.Uint64("load", m.Load()))...)

		respBody, err := s.client.CompileAndRun(ctx, m.Addr(), timeout, req)
		if err == nil {
			m.DecLoad()
			s.metrics.SetMachineLoad(m.Addr(), m.Load())
			s.metrics.ObserveRequest(OutcomeJudged)
			s.publish(ctx, number, id, m.Addr(), respBody)
			return respBody, nil
		}

		if ctx.Err() != nil {
			m.DecLoad()
			s.metrics.SetMachineLoad(m.Addr(), m.Load())
			s.metrics.ObserveRequest(OutcomeCanceled)
			logger.Warn(ctx, "judge request abandoned by client", append(fields, zap.Error(ctx.Err()))...)
			return nil, appErr.Wrapf(ctx.Err(), appErr.Timeout, "judge request canceled")
		}

		var terr *judgeclient.TransportError
		if errors.As(err, &terr) {
			switch terr.Kind {
			case judgeclient.KindBusy:
				m.DecLoad()
				s.metrics.SetMachineLoad(m.Addr(), m.Load())
				busy[id] = struct{}{}
				logger.Info(ctx, "compile server busy, trying another", fields...)
				continue
			case judgeclient.KindOversize:
				m.DecLoad()
				s.metrics.SetMachineLoad(m.Addr(), m.Load())
				s.metrics.ObserveRequest(OutcomeOversize)
				logger.Error(ctx, "compile server response too large", append(fields, zap.Error(err))...)
				return nil, appErr.Wrapf(err, appErr.JudgeSystemError, "judge result too large")
			case judgeclient.KindStatus:
				m.DecLoad()
				fields = append(fields, zap.Int("status_code", terr.StatusCode))
			}
		}
		if s.lb.MarkOffline(id) {
			s.metrics.MachineOffline(m.Addr())
		}
		s.metrics.SetMachinesOnline(s.lb.OnlineCount())
		s.metrics.ObserveRequest(OutcomeRetried)
		logger.Error(ctx, "compile server failed, retrying on another", append(fields, zap.Error(err))...)
	}
}

func (s *Service) assembleSource(p *model.Problem, code string) string {
	if code == "" {
		return ""
	}
	return s.globalPreamble + p.Preamble + code + p.Harness
}

// publish reports the worker's verdict; failures only log.
func (s *Service) publish(ctx context.Context, number string, id int, addr string, body []byte) {
	var resp judgemodel.CompileResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		logger.Warn(ctx, "compile server response is not a result", zap.String("addr", addr), zap.Error(err))
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.eventTimeout)
	defer cancel()
	event := model.JudgeEvent{
		Problem:   number,
		Machine:   id,
		Addr:      addr,
		Code:      resp.Code,
		Reason:    resp.Reason,
		CreatedAt: time.Now().Unix(),
	}
	if err := s.events.PublishJudgeEvent(pubCtx, event); err != nil {
		logger.Warn(ctx, "publish judge event failed", zap.String("problem", number), zap.Error(err))
	}
}

// GetQuestion looks up one problem. Store failures are reported as
// ProblemStoreUnavailable.
func (s *Service) GetQuestion(ctx context.Context, number string) (*model.Problem, error) {
	p, err := s.questions.GetOneQuestion(ctx, number)
	if err == nil {
		return p, nil
	}
	switch appErr.GetCode(err) {
	case appErr.ProblemNotFound, appErr.ProblemStoreUnavailable:
		return nil, err
	default:
		return nil, appErr.Wrapf(err, appErr.ProblemStoreUnavailable, "load question %s failed", number)
	}
}

// ListQuestions returns the catalogue ordered by numeric question number.
func (s *Service) ListQuestions(ctx context.Context) ([]model.ProblemSummary, error) {
	all, err := s.questions.GetAllQuestions(ctx)
	if err != nil {
		if appErr.GetCode(err) == appErr.ProblemStoreUnavailable {
			return nil, err
		}
		return nil, appErr.Wrapf(err, appErr.ProblemStoreUnavailable, "load questions failed")
	}
	sort.Slice(all, func(i, j int) bool {
		return lessNumber(all[i].Number, all[j].Number)
	})
	out := make([]model.ProblemSummary, 0, len(all))
	for _, p := range all {
		out = append(out, p.Summary())
	}
	return out, nil
}

// lessNumber orders numeric ids numerically, ahead of any non-numeric id.
func lessNumber(a, b string) bool {
	ai, aErr := strconv.Atoi(a)
	bi, bErr := strconv.Atoi(b)
	switch {
	case aErr == nil && bErr == nil:
		return ai < bi
	case aErr == nil:
		return true
	case bErr == nil:
		return false
	default:
		return a < b
	}
}

// RecoverMachines brings every offline compile server back online.
func (s *Service) RecoverMachines() int {
	moved := s.lb.MarkAllOnline()
	s.metrics.SetMachinesOnline(s.lb.OnlineCount())
	for _, state := range s.lb.Snapshot() {
		s.metrics.SetMachineLoad(state.Addr, state.Load)
	}
	return moved
}

// Machines returns the fleet state.
func (s *Service) Machines() []loadbalance.MachineState {
	return s.lb.Snapshot()
}
