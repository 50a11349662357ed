package task

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackgroundTaskManager_RunsUntilStopped(t *testing.T) {
	var calls int32
	m := NewBackgroundTaskManager()
	m.Register(func() { atomic.AddInt32(&calls, 1) }, 5*time.Millisecond, "test")

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) >= 3 }, 5*time.Second, time.Millisecond)
	assert.False(t, m.StopAll(time.Second))

	stopped := atomic.LoadInt32(&calls)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, atomic.LoadInt32(&calls))
}

func TestBackgroundTaskManager_StopAllTimesOut(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	m := NewBackgroundTaskManager()
	m.Register(func() {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
	}, time.Millisecond, "blocking")

	<-started
	assert.True(t, m.StopAll(10*time.Millisecond))
	close(release)
}

func TestBackgroundTaskManager_StopWithoutTasks(t *testing.T) {
	assert.False(t, NewBackgroundTaskManager().StopAll(time.Second))
}
