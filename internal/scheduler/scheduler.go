// Package scheduler runs named tasks after a delay. Tasks carry only ids
// and re-load state when they fire, so a task landing on an order that
// already reached a terminal state simply reports a skip.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ilomswe/smmhub-backend/pkg/logger"
	"github.com/ilomswe/smmhub-backend/pkg/metrics"
)

// ErrSkipped is returned by tasks that found nothing left to do.
var ErrSkipped = errors.New("nothing to do")

// TaskFunc is one deferred unit of work.
type TaskFunc func(ctx context.Context) error

// Scheduler fires tasks after their delay, one goroutine per pending task.
type Scheduler struct {
	logg    *logger.Logger
	metrics *metrics.TaskMetrics

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	wg      sync.WaitGroup
	stopped bool
}

// New builds a scheduler. The metrics receiver may be nil.
func New(logg *logger.Logger, taskMetrics *metrics.TaskMetrics) (*Scheduler, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		logg:    logg,
		metrics: taskMetrics,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Schedule queues task to run after delay. Scheduling on a stopped
// scheduler is a silent no-op. The task receives a context that is
// canceled when the scheduler stops.
func (s *Scheduler) Schedule(name string, delay time.Duration, task TaskFunc) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			return
		case <-timer.C:
		}

		s.run(name, task)
	}()
}

func (s *Scheduler) run(name string, task TaskFunc) {
	ctx := s.logg.WithField(s.ctx, "task", name)

	start := time.Now()
	err := task(ctx)
	duration := time.Since(start)
	s.metrics.ObserveDuration(name, duration)

	switch {
	case err == nil:
		s.metrics.IncSuccess(name)
	case errors.Is(err, ErrSkipped):
		s.metrics.IncSkipped(name)
	default:
		s.metrics.IncFailure(name)
		s.logg.Error(ctx, "scheduled task failed", err)
	}
}

// Stop cancels pending timers and waits for in-flight tasks to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}
