// internal/app/system/tasks/runner.go
package tasks

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is a unit of periodic background work.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Runner runs jobs on their own tickers until Stop.
type Runner struct {
	log     *zap.Logger
	timeout time.Duration
	jobs    []Job

	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewRunner creates a Runner. Each run of a job gets its own context bounded
// by timeout (30s when zero).
func NewRunner(logger *zap.Logger, timeout time.Duration, jobs ...Job) *Runner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Runner{
		log:     logger.Named("tasks"),
		timeout: timeout,
		jobs:    jobs,
		stopCh:  make(chan struct{}),
	}
}

// Start begins one loop per job. Jobs with a non-positive interval are skipped.
func (r *Runner) Start() {
	for _, j := range r.jobs {
		if j.Interval <= 0 || j.Run == nil {
			r.log.Warn("skipping job without interval or func", zap.String("job", j.Name))
			continue
		}
		r.wg.Add(1)
		go r.loop(j)
		r.log.Info("background job started",
			zap.String("job", j.Name),
			zap.Duration("interval", j.Interval))
	}
}

// Stop signals every loop to exit and waits for them. Safe to call twice.
func (r *Runner) Stop() {
	r.once.Do(func() {
		close(r.stopCh)
	})
	r.wg.Wait()
}

func (r *Runner) loop(j Job) {
	defer r.wg.Done()

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.runOnce(j)
		}
	}
}

func (r *Runner) runOnce(j Job) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := j.Run(ctx); err != nil {
		r.log.Error("background job failed", zap.String("job", j.Name), zap.Error(err))
	}
}
