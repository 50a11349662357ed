package report

import (
	"time"
)

// Builder accumulates the facts of a running measurement loop. It is owned by the loop and is not
// threadsafe. Build copies everything, so the resulting report shares no state with the builder.
type Builder struct {
	runId      string
	taskName   string
	targetName string
	mode       string
	baseline   string
	initial    []string
	tags       map[string]string
	started    time.Time

	rounds       []RoundSummary
	findings     []Finding
	remediations int
}

func NewBuilder(runId string, taskName string, targetName string, mode string, baseline string, initial []string, tags map[string]string) *Builder {
	return &Builder{
		runId:      runId,
		taskName:   taskName,
		targetName: targetName,
		mode:       mode,
		baseline:   baseline,
		initial:    copyStrings(initial),
		tags:       tags,
		started:    time.Now(),
	}
}

func (b *Builder) StartRound(round int, active []string, plannedSlots int) {
	b.rounds = append(b.rounds, RoundSummary{
		Round:        round,
		Active:       copyStrings(active),
		PlannedSlots: plannedSlots,
	})
}

func (b *Builder) RecordSuccess() {
	if r := b.current(); r != nil {
		r.Successes++
	}
}

func (b *Builder) RecordFailure() {
	if r := b.current(); r != nil {
		r.Failures++
	}
}

func (b *Builder) RecordDecision(a string, bId string, decision string) {
	if r := b.current(); r != nil {
		r.Decisions = append(r.Decisions, PairDecision{IdentifierA: a, IdentifierB: bId, Decision: decision})
	}
}

func (b *Builder) RecordRemediation() {
	b.remediations++
}

func (b *Builder) AddFinding(f Finding) {
	b.findings = append(b.findings, f)
}

// Build produces the final report.
func (b *Builder) Build(failed bool, reason string, executed []string, measurementsDone int, failureCounts map[string]int) *SubtaskReport {
	rounds := make([]RoundSummary, len(b.rounds))
	for i, r := range b.rounds {
		rounds[i] = r
		rounds[i].Active = copyStrings(r.Active)
		rounds[i].Decisions = append([]PairDecision(nil), r.Decisions...)
	}
	counts := make(map[string]int, len(failureCounts))
	for k, v := range failureCounts {
		counts[k] = v
	}
	tags := make(map[string]string, len(b.tags))
	for k, v := range b.tags {
		tags[k] = v
	}
	return &SubtaskReport{
		RunId:               b.runId,
		TaskName:            b.taskName,
		TargetName:          b.targetName,
		Mode:                b.mode,
		Baseline:            b.baseline,
		InitialIdentifiers:  copyStrings(b.initial),
		ExecutedIdentifiers: copyStrings(executed),
		Findings:            append([]Finding{}, b.findings...),
		Failed:              failed,
		FailureReason:       reason,
		MeasurementsDone:    measurementsDone,
		Rounds:              rounds,
		FailureCounts:       counts,
		Remediations:        b.remediations,
		Tags:                tags,
		Started:             b.started,
		Finished:            time.Now(),
	}
}

func (b *Builder) current() *RoundSummary {
	if len(b.rounds) == 0 {
		return nil
	}
	return &b.rounds[len(b.rounds)-1]
}

func copyStrings(s []string) []string {
	copied := make([]string, len(s))
	copy(copied, s)
	return copied
}
