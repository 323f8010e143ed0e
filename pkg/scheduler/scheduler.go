package scheduler

import (
	"context"
	"sync"
	"time"

	"SafeYatra/pkg/logger"

	"go.uber.org/zap"
)

type Job interface{ Run(ctx context.Context) }

type FuncJob func(ctx context.Context)

func (f FuncJob) Run(ctx context.Context) { f(ctx) }

// Scheduler runs named interval jobs until Stop. Stop waits for running
// jobs to return so a final flush can follow safely.
type Scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{ctx: ctx, cancel: cancel}
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

// Every runs job each d. A non-positive d disables the job.
func (s *Scheduler) Every(name string, d time.Duration, job Job) {
	if d <= 0 {
		logger.Warn("scheduler job disabled", zap.String("job", name))
		return
	}
	s.wg.Add(1)
	go s.loopEvery(name, d, job)
}

func (s *Scheduler) OnceAfter(name string, d time.Duration, job Job) {
	s.wg.Add(1)
	go s.onceAfter(name, d, job)
}

func (s *Scheduler) loopEvery(name string, d time.Duration, job Job) {
	defer s.wg.Done()
	t := time.NewTicker(d)
	defer t.Stop()
	logger.Debug("scheduler job started", zap.String("job", name), zap.Duration("every", d))
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-t.C:
			s.run(name, job)
		}
	}
}

func (s *Scheduler) onceAfter(name string, d time.Duration, job Job) {
	defer s.wg.Done()
	select {
	case <-s.ctx.Done():
		return
	case <-time.After(d):
		s.run(name, job)
	}
}

func (s *Scheduler) run(name string, job Job) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("scheduler job panic", zap.String("job", name), zap.Any("panic", r))
		}
	}()
	job.Run(s.ctx)
}
