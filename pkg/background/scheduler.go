package background

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler 固定间隔执行后台任务,每个任务独立协程,
// 单次执行失败只打日志,下个周期继续
type Scheduler struct {
	jobs   []Job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{ctx: ctx, cancel: cancel}
}

func (s *Scheduler) Register(job Job) {
	s.jobs = append(s.jobs, job)
}

func (s *Scheduler) Start() {
	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.runLoop(job)
	}
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) runLoop(job Job) {
	defer s.wg.Done()

	log.Infof("scheduler: job %s started, interval %s", job.Name, job.Interval)
	defer log.Infof("scheduler: job %s stopped", job.Name)

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(job)
		}
	}
}

func (s *Scheduler) runOnce(job Job) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("scheduler: job %s panicked: %v", job.Name, r)
		}
	}()

	if err := job.Run(s.ctx); err != nil {
		log.Errorf("scheduler: job %s failed: %v", job.Name, err)
	}
}
