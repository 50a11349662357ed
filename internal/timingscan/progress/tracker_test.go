package progress

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G-Research/timingscan/internal/timingscan/report"
)

func TestTracker_ConcurrentUpdates(t *testing.T) {
	tracker := NewTracker()
	tracker.RegisterTotalTasks(100)

	wg := sync.WaitGroup{}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				tracker.RecordFailure("unreachable")
				tracker.RecordSubtaskOutcome(&report.SubtaskReport{Findings: []report.Finding{{IdentifierA: "a", IdentifierB: "b"}}})
				tracker.RecordFinished()
			}
		}()
	}
	wg.Wait()

	s := tracker.Snapshot()
	assert.Equal(t, 100, s.TotalTasks)
	assert.Equal(t, 100, s.FinishedTasks)
	assert.Equal(t, 100, s.Findings)
	assert.Equal(t, 100, s.Failures["unreachable"])
	assert.Equal(t, 0, s.Failures["undetectable"])
	assert.Equal(t, 100.0, s.Percentage())
}

func TestTracker_RecordsAbortedAndNoApplicable(t *testing.T) {
	tracker := NewTracker()
	tracker.RegisterTotalTasks(4)
	tracker.RecordSubtaskOutcome(&report.SubtaskReport{TargetName: "t1", TaskName: "padding", Failed: true, FailureReason: "aborted"})
	tracker.RecordSubtaskOutcome(&report.SubtaskReport{TargetName: "t1", TaskName: "other"})
	tracker.RecordNoApplicableSubtask("t2")
	tracker.RecordFinishedN(2)
	tracker.RecordFinishedN(0)

	s := tracker.Snapshot()
	assert.Equal(t, []AbortedSubtask{{Target: "t1", Subtask: "padding", Reason: "aborted"}}, s.Aborted)
	assert.Equal(t, []string{"t2"}, s.NoApplicableSubtaskFound)
	assert.Equal(t, 2, s.FinishedTasks)
	assert.Equal(t, 50.0, s.Percentage())
}

func TestTracker_SnapshotIsIndependent(t *testing.T) {
	tracker := NewTracker()
	s := tracker.Snapshot()
	s.Failures["unreachable"] = 10

	assert.Equal(t, 0, tracker.Snapshot().Failures["unreachable"])
}

func TestSnapshot_PercentageWithoutTasks(t *testing.T) {
	assert.Equal(t, 0.0, NewTracker().Snapshot().Percentage())
}

func TestTracker_PrintSummary(t *testing.T) {
	tracker := NewTracker()
	tracker.RegisterTotalTasks(2)
	tracker.RecordFailure("handshake")
	tracker.RecordFailure("undetectable")
	tracker.RecordSubtaskOutcome(&report.SubtaskReport{TargetName: "b", TaskName: "x", Failed: true, FailureReason: "aborted"})
	tracker.RecordSubtaskOutcome(&report.SubtaskReport{TargetName: "a", TaskName: "y", Failed: true, FailureReason: "cancelled"})
	tracker.RecordNoApplicableSubtask("c")
	tracker.RecordFinishedN(2)

	buf := &bytes.Buffer{}
	require.NoError(t, tracker.PrintSummary(buf))

	expected := `Processed 2 of 2 tasks (100.0%)
Findings: 0
Failures:
  early-termination: 0
  handshake: 1
  undetectable: 1
  unexpected: 0
  unreachable: 0
Aborted subtasks:
  a/y (cancelled)
  b/x (aborted)
Targets without applicable subtasks:
  c
`
	assert.Equal(t, expected, buf.String())
}
