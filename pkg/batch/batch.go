// Package batch collects per-item outcomes of a pipeline cycle. Every
// periodic job reports through a Report so that a single bad row never
// aborts the rest of the batch, and so that zero-work runs are still
// distinguishable from runs that crashed.
package batch

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kwstx/email-agent/pkg/logger"
)

// Result records the outcome of processing a single entity.
type Result struct {
	ItemID  string
	Changed bool
	Err     error
}

// Report aggregates the results of one cycle invocation.
type Report struct {
	Job       string
	StartedAt time.Time
	Results   []Result
}

func NewReport(job string) *Report {
	return &Report{Job: job, StartedAt: time.Now().UTC()}
}

func (r *Report) Ok(itemID string, changed bool) {
	r.Results = append(r.Results, Result{ItemID: itemID, Changed: changed})
}

func (r *Report) Fail(itemID string, err error) {
	r.Results = append(r.Results, Result{ItemID: itemID, Err: err})
}

func (r *Report) Processed() int { return len(r.Results) }

func (r *Report) Changed() int {
	n := 0
	for _, res := range r.Results {
		if res.Err == nil && res.Changed {
			n++
		}
	}
	return n
}

func (r *Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Err != nil {
			n++
		}
	}
	return n
}

// Summary renders a one-line outcome string for the task log.
func (r *Report) Summary() string {
	return fmt.Sprintf("processed=%d changed=%d failed=%d",
		r.Processed(), r.Changed(), r.Failed())
}

// Log emits the cycle summary. A batch that found no eligible work logs
// that fact explicitly rather than staying silent.
func (r *Report) Log() {
	if r.Processed() == 0 {
		logger.Info("No eligible items", zap.String("job", r.Job))
		return
	}
	logger.Info("Cycle complete",
		zap.String("job", r.Job),
		zap.Int("processed", r.Processed()),
		zap.Int("changed", r.Changed()),
		zap.Int("failed", r.Failed()),
		zap.Duration("elapsed", time.Since(r.StartedAt)),
	)
	for _, res := range r.Results {
		if res.Err != nil {
			logger.Warn("Item failed",
				zap.String("job", r.Job),
				zap.String("item", res.ItemID),
				zap.Error(res.Err),
			)
		}
	}
}
