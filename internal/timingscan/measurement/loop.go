package measurement

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"github.com/G-Research/timingscan/internal/timingscan/comparison"
	"github.com/G-Research/timingscan/internal/timingscan/domain"
	"github.com/G-Research/timingscan/internal/timingscan/escalation"
	"github.com/G-Research/timingscan/internal/timingscan/metrics"
	"github.com/G-Research/timingscan/internal/timingscan/oracle"
	"github.com/G-Research/timingscan/internal/timingscan/planner"
	"github.com/G-Research/timingscan/internal/timingscan/report"
	"github.com/G-Research/timingscan/internal/timingscan/subtask"
)

type State int

const (
	Planning State = iota
	Measuring
	Deciding
	Terminated
)

func (s State) String() string {
	switch s {
	case Planning:
		return "planning"
	case Measuring:
		return "measuring"
	case Deciding:
		return "deciding"
	default:
		return "terminated"
	}
}

const (
	ReasonAborted   = "aborted"
	ReasonCancelled = "cancelled"
)

// Restarter remediates an unresponsive target and returns the address it can be reached at afterwards.
type Restarter interface {
	RestartTarget(ctx context.Context) (string, error)
}

// FailureRecorder receives every classified measurement failure.
type FailureRecorder interface {
	RecordFailure(category string)
}

type Config struct {
	RunId                string
	MeasurementsPerRound int
	TotalMeasurements    int
	Policy               domain.TargetPolicy
	// Directory this loop's comparison files are written to.
	ComparisonDir string
}

// Loop runs one subtask against one target until its variants are resolved, its measurement budget
// is spent, or it is aborted. A Loop is single use and must only be run by one goroutine: the sample
// series, the active set and the escalation state are owned exclusively by it.
type Loop struct {
	config     Config
	subtask    subtask.Subtask
	targetName string
	endpoint   domain.Endpoint

	planner    *planner.Planner
	escalation *escalation.State
	builder    *comparison.Builder
	oracle     oracle.Oracle
	restarter  Restarter
	recorder   FailureRecorder
	report     *report.Builder

	series           map[string][]int64
	active           []string
	state            State
	round            int
	measurementsDone int
	logger           *log.Entry
}

func NewLoop(
	config Config,
	st subtask.Subtask,
	targetName string,
	endpoint domain.Endpoint,
	planner *planner.Planner,
	oracle oracle.Oracle,
	restarter Restarter,
	recorder FailureRecorder,
) *Loop {
	ids := st.Identifiers()
	series := make(map[string][]int64, len(ids))
	for _, id := range ids {
		series[id] = []int64{}
	}
	return &Loop{
		config:     config,
		subtask:    st,
		targetName: targetName,
		endpoint:   endpoint,
		planner:    planner,
		escalation: escalation.NewState(config.Policy),
		builder:    comparison.NewBuilder(st.Mode(), st.BaselineIdentifier(), config.ComparisonDir),
		oracle:     oracle,
		restarter:  restarter,
		recorder:   recorder,
		report: report.NewBuilder(
			config.RunId,
			st.Name(),
			targetName,
			string(st.Mode()),
			st.BaselineIdentifier(),
			ids,
			endpoint.Capabilities.Tags(),
		),
		series: series,
		active: ids,
		state:  Planning,
		logger: log.WithFields(log.Fields{"target": targetName, "subtask": st.Name()}),
	}
}

// Run drives rounds until the loop terminates and returns the final report.
func (l *Loop) Run(ctx context.Context) *report.SubtaskReport {
	l.logger.Infof("starting with %d variants", len(l.active))
	for {
		l.round++
		l.state = Planning
		l.escalation.ResetStreaks()
		roundActive := make([]string, len(l.active))
		copy(roundActive, l.active)
		plan := l.planner.Plan(len(roundActive), l.config.MeasurementsPerRound)
		l.report.StartRound(l.round, roundActive, len(plan))

		l.state = Measuring
		for _, idx := range plan {
			if ctx.Err() != nil {
				return l.terminate(true, ReasonCancelled)
			}
			if aborted := l.measure(ctx, roundActive[idx]); aborted {
				l.logger.Warnf(
					"aborting in round %d after %d consecutive failures (%d undetectable in total)",
					l.round, l.escalation.ConsecutiveFailures(), l.escalation.Cumulative(domain.Undetectable),
				)
				return l.terminate(true, ReasonAborted)
			}
		}

		l.measurementsDone += l.config.MeasurementsPerRound
		l.state = Deciding
		l.decide(ctx)

		if len(l.active) <= 1 || l.measurementsDone >= l.config.TotalMeasurements {
			return l.terminate(false, "")
		}
		l.logger.Debugf("round %d complete, %d variants still active", l.round, len(l.active))
	}
}

// measure performs one attempt and returns true if the subtask must be aborted.
func (l *Loop) measure(ctx context.Context, id string) bool {
	result := l.subtask.Measure(ctx, l.endpoint, id)
	if result.Ok() {
		l.series[id] = append(l.series[id], result.Sample)
		l.escalation.OnSuccess()
		l.report.RecordSuccess()
		metrics.MeasurementLatency.WithLabelValues(l.subtask.Name()).Observe(time.Duration(result.Sample).Seconds())
		return false
	}

	l.escalation.OnFailure(result.Failure)
	l.report.RecordFailure()
	if l.recorder != nil {
		l.recorder.RecordFailure(result.Failure.String())
	}
	l.logger.WithField("variant", id).Debugf("measurement failed: %s", result.Failure)

	if l.escalation.ShouldAbortSubtask() {
		return true
	}
	if l.escalation.ShouldEscalate() {
		l.remediate(ctx)
	}
	return false
}

func (l *Loop) remediate(ctx context.Context) {
	l.escalation.Escalated()
	l.report.RecordRemediation()
	metrics.Remediations.Inc()
	l.logger.Warnf("target unreachable %d times in a row, requesting restart", escalation.UnreachableEscalationThreshold)
	if l.restarter == nil {
		return
	}
	address, err := l.restarter.RestartTarget(ctx)
	if err != nil {
		l.logger.WithError(err).Error("restarting target failed")
		return
	}
	if address != "" && address != l.endpoint.Address {
		l.logger.Infof("target moved from %s to %s", l.endpoint.Address, address)
		l.endpoint.Address = address
	}
}

func (l *Loop) decide(ctx context.Context) {
	requests, err := l.builder.Build(l.round, l.active, l.series)
	if err != nil {
		l.logger.WithError(err).Errorf("could not build comparison requests for round %d", l.round)
		return
	}
	for _, req := range requests {
		if !l.isActive(req.IdentifierA) || !l.isActive(req.IdentifierB) {
			continue
		}
		decision := l.oracle.Evaluate(ctx, req, l.measurementsDone)
		l.report.RecordDecision(req.IdentifierA, req.IdentifierB, decision.String())
		switch decision {
		case domain.Significant:
			pruned := l.prunable(req)
			l.remove(pruned)
			l.report.AddFinding(report.Finding{
				IdentifierA: req.IdentifierA,
				IdentifierB: req.IdentifierB,
				Round:       l.round,
				SampleCount: l.measurementsDone,
			})
			l.logger.WithField("pair", req.String()).Infof("significant difference found, %s removed from comparison", pruned)
		case domain.OracleError:
			l.logger.WithField("pair", req.String()).Warn("oracle error, continuing as inconclusive")
		}
	}
}

// prunable returns the member of the pair to remove. The baseline is never removed.
func (l *Loop) prunable(req *comparison.Request) string {
	if req.IdentifierB == l.subtask.BaselineIdentifier() {
		return req.IdentifierA
	}
	return req.IdentifierB
}

func (l *Loop) remove(id string) {
	if i := slices.Index(l.active, id); i >= 0 {
		l.active = slices.Delete(l.active, i, i+1)
	}
}

func (l *Loop) isActive(id string) bool {
	return slices.Contains(l.active, id)
}

func (l *Loop) terminate(failed bool, reason string) *report.SubtaskReport {
	l.state = Terminated
	if l.escalation.InEscalatedMode() {
		l.logger.Debug("loop ran in escalated mode")
	}
	r := l.report.Build(failed, reason, l.active, l.measurementsDone, l.escalation.CumulativeCounts())
	l.logger.WithField("failed", failed).Infof(
		"finished after %d rounds with %d findings", len(r.Rounds), len(r.Findings),
	)
	return r
}

func (l *Loop) State() State {
	return l.state
}

// Series returns a copy of the samples collected for a variant.
func (l *Loop) Series(id string) []int64 {
	s := make([]int64, len(l.series[id]))
	copy(s, l.series[id])
	return s
}

// Endpoint returns where the target is currently reached, which changes if it was restarted.
func (l *Loop) Endpoint() domain.Endpoint {
	return l.endpoint
}
