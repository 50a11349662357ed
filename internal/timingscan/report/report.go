package report

import (
	"time"
)

// Finding is a pair of variants the oracle confirmed as distinguishable.
type Finding struct {
	IdentifierA string `json:"identifierA"`
	IdentifierB string `json:"identifierB"`
	Round       int    `json:"round"`
	// Measurements per variant that had been planned when the decision was made.
	SampleCount int `json:"sampleCount"`
}

type PairDecision struct {
	IdentifierA string `json:"identifierA"`
	IdentifierB string `json:"identifierB"`
	Decision    string `json:"decision"`
}

// RoundSummary describes one planning/measuring/deciding cycle.
type RoundSummary struct {
	Round        int            `json:"round"`
	Active       []string       `json:"active"`
	PlannedSlots int            `json:"plannedSlots"`
	Successes    int            `json:"successes"`
	Failures     int            `json:"failures"`
	Decisions    []PairDecision `json:"decisions,omitempty"`
}

// SubtaskReport is the immutable outcome of running one subtask against one target.
type SubtaskReport struct {
	RunId      string `json:"runId"`
	TaskName   string `json:"taskName"`
	TargetName string `json:"targetName"`
	Mode       string `json:"mode"`
	Baseline   string `json:"baseline,omitempty"`
	// Identifiers the subtask started with.
	InitialIdentifiers []string `json:"initialIdentifiers"`
	// Identifiers still active when the subtask terminated.
	ExecutedIdentifiers []string          `json:"executedIdentifiers"`
	Findings            []Finding         `json:"findings"`
	Failed              bool              `json:"failed"`
	FailureReason       string            `json:"failureReason,omitempty"`
	MeasurementsDone    int               `json:"measurementsDone"`
	Rounds              []RoundSummary    `json:"rounds"`
	FailureCounts       map[string]int    `json:"failureCounts,omitempty"`
	Remediations        int               `json:"remediations"`
	Tags                map[string]string `json:"tags,omitempty"`
	Started             time.Time         `json:"started"`
	Finished            time.Time         `json:"finished"`
}

// HasFinding returns true if the given pair, in either order, was found distinguishable.
func (r *SubtaskReport) HasFinding(a string, b string) bool {
	for _, f := range r.Findings {
		if (f.IdentifierA == a && f.IdentifierB == b) || (f.IdentifierA == b && f.IdentifierB == a) {
			return true
		}
	}
	return false
}
