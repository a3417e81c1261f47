// Package scheduler runs the engine's recurring jobs on independent
// intervals. Each job records its outcome in the task log and its duration
// in the metrics registry.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kwstx/email-agent/internal/metrics"
	"github.com/kwstx/email-agent/internal/storage/models"
	"github.com/kwstx/email-agent/internal/storage/sqlite"
	"github.com/kwstx/email-agent/pkg/batch"
	"github.com/kwstx/email-agent/pkg/logger"
)

// JobFunc runs one batch cycle. A nil report is allowed for jobs that do not
// produce per-item results.
type JobFunc func(ctx context.Context) (*batch.Report, error)

type job struct {
	name     string
	interval time.Duration
	fn       JobFunc
}

type Scheduler struct {
	store *sqlite.Store
	jobs  []job
	wg    sync.WaitGroup
}

func New(store *sqlite.Store) *Scheduler {
	return &Scheduler{store: store}
}

// Add registers a recurring job. Jobs run once immediately on Start, then on
// every interval tick.
func (s *Scheduler) Add(name string, interval time.Duration, fn JobFunc) {
	s.jobs = append(s.jobs, job{name: name, interval: interval, fn: fn})
}

// Start launches all registered jobs and blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	logger.Info("Scheduler starting", zap.Int("jobs", len(s.jobs)))

	for _, j := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, j)
	}

	<-ctx.Done()
	s.wg.Wait()
	logger.Info("Scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, j job) {
	defer s.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	s.runOnce(ctx, j)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, j)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, j job) {
	start := time.Now()
	report, err := j.fn(ctx)
	metrics.CycleDuration.WithLabelValues(j.name).Observe(time.Since(start).Seconds())

	entry := &models.TaskLog{
		ID:  uuid.NewString(),
		Job: j.name,
	}

	if err != nil {
		entry.Status = "failed"
		entry.Message = err.Error()
		logger.Error("Job cycle failed", zap.String("job", j.name), zap.Error(err))
	} else {
		entry.Status = "completed"
		if report != nil {
			entry.Message = report.Summary()
			metrics.CycleFailures.WithLabelValues(j.name).Add(float64(report.Failed()))
		}
	}

	if logErr := s.store.InsertTaskLog(entry); logErr != nil {
		logger.Warn("Failed to record task log", zap.String("job", j.name), zap.Error(logErr))
	}
}
