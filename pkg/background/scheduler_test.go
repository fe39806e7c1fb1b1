package background

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSchedulerRunsJobPeriodically(t *testing.T) {
	var runs int64
	s := NewScheduler()
	s.Register(Job{
		Name:     "counter",
		Interval: time.Millisecond * 10,
		Run: func(ctx context.Context) error {
			atomic.AddInt64(&runs, 1)
			return nil
		},
	})

	s.Start()
	time.Sleep(time.Millisecond * 100)
	s.Stop()

	assert.GreaterOrEqual(t, atomic.LoadInt64(&runs), int64(3))
}

func TestSchedulerSurvivesPanic(t *testing.T) {
	var runs int64
	s := NewScheduler()
	s.Register(Job{
		Name:     "panicking",
		Interval: time.Millisecond * 10,
		Run: func(ctx context.Context) error {
			atomic.AddInt64(&runs, 1)
			panic("boom")
		},
	})

	s.Start()
	time.Sleep(time.Millisecond * 60)
	s.Stop()

	// panic 被捕获,任务在后续周期继续执行
	assert.GreaterOrEqual(t, atomic.LoadInt64(&runs), int64(2))
}

func TestSchedulerStopHaltsJobs(t *testing.T) {
	var runs int64
	s := NewScheduler()
	s.Register(Job{
		Name:     "stoppable",
		Interval: time.Millisecond * 5,
		Run: func(ctx context.Context) error {
			atomic.AddInt64(&runs, 1)
			return nil
		},
	})

	s.Start()
	time.Sleep(time.Millisecond * 30)
	s.Stop()

	snapshot := atomic.LoadInt64(&runs)
	time.Sleep(time.Millisecond * 30)
	assert.Equal(t, snapshot, atomic.LoadInt64(&runs))
}
