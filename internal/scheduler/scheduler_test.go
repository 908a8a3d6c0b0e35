package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestScheduler() *Scheduler {
	return New(zap.NewNop().Sugar())
}

func TestScheduleFiresImmediately(t *testing.T) {
	s := newTestScheduler()
	defer s.Stop()

	fired := make(chan struct{}, 1)
	s.Schedule("report", time.Hour, func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	})

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("task did not fire on schedule")
	}
}

func TestScheduleFiresPeriodically(t *testing.T) {
	s := newTestScheduler()
	defer s.Stop()

	var count atomic.Int64
	s.Schedule("report", 20*time.Millisecond, func() {
		count.Add(1)
	})

	time.Sleep(130 * time.Millisecond)
	// immediate fire plus several ticks; exact count depends on timing
	assert.GreaterOrEqual(t, count.Load(), int64(3))
}

func TestScheduleReplacesExistingJob(t *testing.T) {
	s := newTestScheduler()
	defer s.Stop()

	var first, second atomic.Int64
	s.Schedule("report", 10*time.Millisecond, func() { first.Add(1) })
	time.Sleep(35 * time.Millisecond)

	s.Schedule("report", 10*time.Millisecond, func() { second.Add(1) })
	firstAtReplace := first.Load()
	time.Sleep(50 * time.Millisecond)

	// the old job stopped cold: only the replacement keeps counting
	assert.Equal(t, firstAtReplace, first.Load())
	assert.GreaterOrEqual(t, second.Load(), int64(2))
}

func TestCancel(t *testing.T) {
	s := newTestScheduler()
	defer s.Stop()

	var count atomic.Int64
	s.Schedule("report", 10*time.Millisecond, func() { count.Add(1) })
	time.Sleep(25 * time.Millisecond)

	assert.True(t, s.Cancel("report"))
	frozen := count.Load()
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, frozen, count.Load())

	assert.False(t, s.Cancel("report"), "second cancel finds nothing")
	assert.False(t, s.Cancel("unknown"))
}

func TestStopDrainsAllJobs(t *testing.T) {
	s := newTestScheduler()

	var count atomic.Int64
	s.Schedule("a", 10*time.Millisecond, func() { count.Add(1) })
	s.Schedule("b", 10*time.Millisecond, func() { count.Add(1) })
	time.Sleep(25 * time.Millisecond)

	s.Stop()
	frozen := count.Load()
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, frozen, count.Load())
}
