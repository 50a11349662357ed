package escalation

import (
	"github.com/G-Research/timingscan/internal/timingscan/domain"
)

const (
	// Consecutive unreachable attempts after which a restart-capable target is remediated.
	UnreachableEscalationThreshold = 5
	// Consecutive failures of any category after which a subtask is aborted.
	ConsecutiveFailureAbortThreshold = 15
	// Cumulative undetectable attempts beyond which a subtask is aborted.
	UndetectableAbortLimit = 300
)

// State tracks failure streaks for a single measurement loop. It is not threadsafe; it must only be
// touched by the goroutine running the loop that owns it.
type State struct {
	restartCapable bool

	consecutiveFailures    int
	consecutiveUnreachable int
	cumulative             map[domain.FailureCategory]int
	escalated              bool
}

func NewState(policy domain.TargetPolicy) *State {
	return &State{
		restartCapable: policy.RestartCapable(),
		cumulative:     make(map[domain.FailureCategory]int, len(domain.FailureCategories)),
	}
}

func (s *State) OnSuccess() {
	s.consecutiveFailures = 0
	s.consecutiveUnreachable = 0
}

func (s *State) OnFailure(category domain.FailureCategory) {
	s.consecutiveFailures++
	s.cumulative[category]++
	if category == domain.Unreachable {
		s.consecutiveUnreachable++
	}
}

// ResetStreaks clears the consecutive counters. Called at the start of every round;
// cumulative counters are kept.
func (s *State) ResetStreaks() {
	s.consecutiveFailures = 0
	s.consecutiveUnreachable = 0
}

func (s *State) ShouldEscalate() bool {
	return s.restartCapable && s.consecutiveUnreachable >= UnreachableEscalationThreshold
}

// Escalated records that remediation has been requested. The unreachable streak starts over so that
// the next remediation needs another full streak.
func (s *State) Escalated() {
	s.escalated = true
	s.consecutiveUnreachable = 0
}

func (s *State) ShouldAbortSubtask() bool {
	return s.consecutiveFailures >= ConsecutiveFailureAbortThreshold ||
		s.cumulative[domain.Undetectable] > UndetectableAbortLimit
}

func (s *State) ConsecutiveFailures() int {
	return s.consecutiveFailures
}

func (s *State) ConsecutiveUnreachable() int {
	return s.consecutiveUnreachable
}

func (s *State) Cumulative(category domain.FailureCategory) int {
	return s.cumulative[category]
}

// CumulativeCounts returns a copy of the per-category totals keyed by category name.
func (s *State) CumulativeCounts() map[string]int {
	counts := make(map[string]int, len(s.cumulative))
	for category, n := range s.cumulative {
		counts[category.String()] = n
	}
	return counts
}

// InEscalatedMode reports whether remediation was requested at least once.
func (s *State) InEscalatedMode() bool {
	return s.escalated
}
