package report

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis"
	"github.com/go-redis/redis"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G-Research/timingscan/internal/common/scanerrors"
)

func TestFileStore(t *testing.T) {
	testStore(t, NewFileStore(t.TempDir()))
}

func TestRedisStore(t *testing.T) {
	withRedisStore(t, func(s *RedisStore) {
		testStore(t, s)
	})
}

func TestRedisStore_RecordsRunIds(t *testing.T) {
	withRedisStore(t, func(s *RedisStore) {
		require.NoError(t, s.Save(testReport("run-1", "t", "padding")))
		require.NoError(t, s.Save(testReport("run-2", "t", "padding")))

		runs, err := s.Db.SMembers(reportsPrefix + "Runs").Result()
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"run-1", "run-2"}, runs)
	})
}

func TestFileStore_SanitizesNames(t *testing.T) {
	store := NewFileStore(t.TempDir())
	require.NoError(t, store.Save(testReport("run", "host:4433", "a/b")))

	r, err := store.Load("run", "host:4433", "a/b")
	require.NoError(t, err)
	assert.Equal(t, "a/b", r.TaskName)
	assert.Equal(t, "host:4433", r.TargetName)
}

func testStore(t *testing.T, store Store) {
	_, err := store.Load("run", "target-1", "padding")
	var notFound *scanerrors.ErrNotFound
	assert.True(t, errors.As(err, &notFound))

	reports, err := store.List("run")
	require.NoError(t, err)
	assert.Empty(t, reports)

	first := testReport("run", "target-1", "padding")
	second := testReport("run", "target-2", "padding")
	other := testReport("other-run", "target-1", "padding")
	for _, r := range []*SubtaskReport{second, first, other} {
		require.NoError(t, store.Save(r))
	}

	loaded, err := store.Load("run", "target-1", "padding")
	require.NoError(t, err)
	assertReportsEqual(t, first, loaded)

	reports, err = store.List("run")
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assertReportsEqual(t, first, reports[0])
	assertReportsEqual(t, second, reports[1])
}

func assertReportsEqual(t *testing.T, expected *SubtaskReport, actual *SubtaskReport) {
	assert.True(t, expected.Started.Equal(actual.Started))
	assert.True(t, expected.Finished.Equal(actual.Finished))
	e, a := *expected, *actual
	e.Started, e.Finished, a.Started, a.Finished = time.Time{}, time.Time{}, time.Time{}, time.Time{}
	assert.Equal(t, e, a)
}

func testReport(runId string, target string, task string) *SubtaskReport {
	started := time.Date(2022, 10, 1, 12, 0, 0, 0, time.UTC)
	return &SubtaskReport{
		RunId:               runId,
		TaskName:            task,
		TargetName:          target,
		Mode:                "baseline",
		Baseline:            "A",
		InitialIdentifiers:  []string{"A", "B"},
		ExecutedIdentifiers: []string{"A"},
		Findings:            []Finding{{IdentifierA: "A", IdentifierB: "B", Round: 3, SampleCount: 150}},
		MeasurementsDone:    150,
		Rounds: []RoundSummary{
			{Round: 1, Active: []string{"A", "B"}, PlannedSlots: 100, Successes: 99, Failures: 1},
		},
		FailureCounts: map[string]int{"unreachable": 1},
		Tags:          map[string]string{"protocol": "tls"},
		Started:       started,
		Finished:      started.Add(time.Minute),
	}
}

func withRedisStore(t *testing.T, action func(s *RedisStore)) {
	redisServer, err := miniredis.Run()
	require.NoError(t, err)
	defer redisServer.Close()

	client := redis.NewClient(&redis.Options{Addr: redisServer.Addr()})
	defer client.Close()

	action(NewRedisStore(client))
}
