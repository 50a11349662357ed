package progress

import (
	"fmt"
	"io"
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/G-Research/timingscan/internal/timingscan/domain"
	"github.com/G-Research/timingscan/internal/timingscan/metrics"
	"github.com/G-Research/timingscan/internal/timingscan/report"
)

// Target-level failure categories, recorded alongside the per-measurement ones.
const (
	ProvisioningFailure = "provisioning"
	HandshakeFailure    = "handshake"
	TargetFailure       = "target"
)

// AbortedSubtask identifies a (target, subtask) pair that terminated with failed set.
type AbortedSubtask struct {
	Target  string
	Subtask string
	Reason  string
}

type Snapshot struct {
	TotalTasks    int
	FinishedTasks int
	Findings      int
	// Failures by category name.
	Failures                 map[string]int
	Aborted                  []AbortedSubtask
	NoApplicableSubtaskFound []string
}

// Tracker aggregates progress across all target jobs of a run. It is the only state shared between
// workers; every method is safe for concurrent use.
type Tracker struct {
	mu            sync.Mutex
	totalTasks    int
	finishedTasks int
	findings      int
	failures      map[string]int
	aborted       []AbortedSubtask
	noApplicable  []string
}

func NewTracker() *Tracker {
	failures := make(map[string]int, len(domain.FailureCategories))
	for _, category := range domain.FailureCategories {
		failures[category.String()] = 0
	}
	return &Tracker{failures: failures}
}

func (t *Tracker) RegisterTotalTasks(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totalTasks += n
	metrics.TasksTotal.Set(float64(t.totalTasks))
}

func (t *Tracker) RecordFinished() {
	t.RecordFinishedN(1)
}

// RecordFinishedN marks several tasks as processed at once, e.g. all subtasks of a target that could
// not be started.
func (t *Tracker) RecordFinishedN(n int) {
	if n <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.finishedTasks += n
	metrics.TasksFinished.Add(float64(n))
}

func (t *Tracker) RecordFailure(category string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures[category]++
	metrics.Failures.WithLabelValues(category).Inc()
}

// RecordSubtaskOutcome records the findings of a terminated subtask and whether it was aborted.
// Measurement failures are not counted here as they are recorded as they happen.
func (t *Tracker) RecordSubtaskOutcome(r *report.SubtaskReport) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.findings += len(r.Findings)
	metrics.Findings.Add(float64(len(r.Findings)))
	if r.Failed {
		t.aborted = append(t.aborted, AbortedSubtask{Target: r.TargetName, Subtask: r.TaskName, Reason: r.FailureReason})
	}
}

func (t *Tracker) RecordNoApplicableSubtask(target string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.noApplicable = append(t.noApplicable, target)
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	failures := make(map[string]int, len(t.failures))
	for k, v := range t.failures {
		failures[k] = v
	}
	return Snapshot{
		TotalTasks:               t.totalTasks,
		FinishedTasks:            t.finishedTasks,
		Findings:                 t.findings,
		Failures:                 failures,
		Aborted:                  append([]AbortedSubtask{}, t.aborted...),
		NoApplicableSubtaskFound: append([]string{}, t.noApplicable...),
	}
}

// Percentage of registered tasks that have been processed.
func (s Snapshot) Percentage() float64 {
	if s.TotalTasks == 0 {
		return 0
	}
	return 100 * float64(s.FinishedTasks) / float64(s.TotalTasks)
}

func (t *Tracker) PrintSummary(w io.Writer) error {
	s := t.Snapshot()
	lines := []string{
		fmt.Sprintf("Processed %d of %d tasks (%.1f%%)", s.FinishedTasks, s.TotalTasks, s.Percentage()),
		fmt.Sprintf("Findings: %d", s.Findings),
		"Failures:",
	}
	categories := maps.Keys(s.Failures)
	slices.Sort(categories)
	for _, category := range categories {
		lines = append(lines, fmt.Sprintf("  %s: %d", category, s.Failures[category]))
	}
	if len(s.Aborted) > 0 {
		lines = append(lines, "Aborted subtasks:")
		slices.SortFunc(s.Aborted, func(a, b AbortedSubtask) bool {
			if a.Target != b.Target {
				return a.Target < b.Target
			}
			return a.Subtask < b.Subtask
		})
		for _, a := range s.Aborted {
			lines = append(lines, fmt.Sprintf("  %s/%s (%s)", a.Target, a.Subtask, a.Reason))
		}
	}
	if len(s.NoApplicableSubtaskFound) > 0 {
		lines = append(lines, "Targets without applicable subtasks:")
		slices.Sort(s.NoApplicableSubtaskFound)
		for _, target := range s.NoApplicableSubtaskFound {
			lines = append(lines, "  "+target)
		}
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
