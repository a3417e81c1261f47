package feedback

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/kwstx/email-agent/internal/metrics"
	"github.com/kwstx/email-agent/internal/scoring"
	"github.com/kwstx/email-agent/internal/storage/models"
	"github.com/kwstx/email-agent/pkg/logger"
)

const (
	// MinSampleSize is the minimum emails sent before a signal's weight may
	// be adjusted.
	MinSampleSize = 10

	// MaxPointDelta bounds the change to any signal per cycle. Keeps the
	// model from oscillating on noisy outcome data.
	MaxPointDelta = 2

	// BaselineReplyRate (percent) is the reference floor when the observed
	// global reply rate is lower.
	BaselineReplyRate = 5.0

	// maxHighThreshold caps how far repeated raises can push the high tier.
	maxHighThreshold = 25
)

// SkipRecord explains why a signal with outcome data was left unadjusted.
type SkipRecord struct {
	Signal string `json:"signal"`
	Reason string `json:"reason"`
}

// Summary is the result of one refinement cycle.
type Summary struct {
	Timestamp         time.Time              `json:"timestamp"`
	DryRun            bool                   `json:"dry_run"`
	GlobalReplyRate   float64                `json:"global_reply_rate"`
	Changes           []scoring.ChangeRecord `json:"changes"`
	Skipped           []SkipRecord           `json:"skipped"`
	ThresholdAdjusted bool                   `json:"threshold_adjusted"`
}

// Refiner consumes outcome reports and proposes bounded deltas to signal
// point values and tier thresholds, persisting a new model version with
// history on every real (non-dry-run) application.
type Refiner struct {
	aggregator *Aggregator
	modelStore *scoring.ModelStore
	Now        func() time.Time
}

func NewRefiner(aggregator *Aggregator, modelStore *scoring.ModelStore) *Refiner {
	return &Refiner{
		aggregator: aggregator,
		modelStore: modelStore,
		Now:        time.Now,
	}
}

// Refine runs one refinement cycle. With dryRun the same summary is computed
// but nothing is persisted.
func (r *Refiner) Refine(dryRun bool) (*Summary, error) {
	report, err := r.aggregator.Report()
	if err != nil {
		return nil, fmt.Errorf("refinement cycle aborted: %w", err)
	}

	model, err := r.modelStore.Load()
	if err != nil {
		return nil, fmt.Errorf("refinement cycle aborted: %w", err)
	}

	summary := &Summary{
		Timestamp:       r.Now().UTC(),
		DryRun:          dryRun,
		GlobalReplyRate: report.Global.ReplyRatePct,
		Changes:         []scoring.ChangeRecord{},
		Skipped:         []SkipRecord{},
	}

	for key, perf := range report.Signals {
		def, category, ok := model.Signal(key)
		if !ok {
			// Synthetic bonus keys (careers-page indicator) carry outcome
			// data but have no model entry to adjust.
			continue
		}

		delta, reason := adjustment(perf, report.Global.ReplyRatePct)
		if delta == 0 {
			summary.Skipped = append(summary.Skipped, SkipRecord{Signal: key, Reason: reason})
			continue
		}

		newPoints := def.Points + delta
		if newPoints < 1 {
			newPoints = 1
		}
		change := scoring.ChangeRecord{
			Signal:    key,
			Category:  category,
			OldPoints: def.Points,
			NewPoints: newPoints,
			Delta:     newPoints - def.Points,
			Reason:    reason,
		}
		summary.Changes = append(summary.Changes, change)

		if !dryRun {
			def.Points = newPoints
			direction := "up"
			if change.Delta < 0 {
				direction = "down"
			}
			metrics.RefinementDeltas.WithLabelValues(direction).Inc()
		}

		logger.Info("Signal weight adjustment",
			zap.Bool("dry_run", dryRun),
			zap.String("signal", key),
			zap.Int("old_points", change.OldPoints),
			zap.Int("new_points", change.NewPoints),
			zap.String("reason", reason),
		)
	}

	summary.ThresholdAdjusted = adjustThresholds(model, report.Tiers)

	if !dryRun && (len(summary.Changes) > 0 || summary.ThresholdAdjusted) {
		model.AppendHistory(scoring.RefinementEntry{
			Timestamp:         summary.Timestamp.Format(time.RFC3339),
			Changes:           summary.Changes,
			GlobalReplyRate:   summary.GlobalReplyRate,
			ThresholdAdjusted: summary.ThresholdAdjusted,
		})
		if err := r.modelStore.Save(model); err != nil {
			return nil, fmt.Errorf("failed to persist refined model: %w", err)
		}
	}

	if len(summary.Changes) == 0 {
		logger.Info("No scoring adjustments needed", zap.Bool("dry_run", dryRun))
	}

	return summary, nil
}

// adjustment computes one signal's point delta from its outcome stats.
// Opt-out risk dominates every other consideration.
func adjustment(perf Stats, globalReplyRate float64) (int, string) {
	if perf.Sent < MinSampleSize {
		return 0, fmt.Sprintf("insufficient sample (%d/%d emails sent)", perf.Sent, MinSampleSize)
	}

	if perf.OptOutRatePct > 10 {
		return -MaxPointDelta, fmt.Sprintf("high opt-out rate (%.1f%%)", perf.OptOutRatePct)
	}

	referenceRate := math.Max(globalReplyRate, BaselineReplyRate)
	ratio := perf.ReplyRatePct / referenceRate

	switch {
	case ratio >= 1.5 && perf.InterestRatePct > 30:
		delta := int(math.Round(math.Log2(ratio)))
		if delta < 1 {
			delta = 1
		}
		if delta > MaxPointDelta {
			delta = MaxPointDelta
		}
		return delta, fmt.Sprintf("strong performer: %.1f%% reply rate (%.1fx reference), %.1f%% interest",
			perf.ReplyRatePct, ratio, perf.InterestRatePct)
	case ratio >= 1.2:
		return 1, fmt.Sprintf("above average: %.1f%% reply rate (%.1fx reference)", perf.ReplyRatePct, ratio)
	case ratio <= 0.5 && perf.Sent >= MinSampleSize*2:
		return -1, fmt.Sprintf("underperforming: %.1f%% reply rate (%.1fx reference)", perf.ReplyRatePct, ratio)
	default:
		return 0, fmt.Sprintf("within normal range (%.1f%% reply, %.1fx reference)", perf.ReplyRatePct, ratio)
	}
}

// adjustThresholds moves the high tier boundary when tier-level conversion
// says it is mis-placed. Requires a minimum sample in both tiers.
func adjustThresholds(model *scoring.Model, tiers map[string]Stats) bool {
	high := tiers[models.TierHighPriority]
	medium := tiers[models.TierMediumPriority]

	if high.Sent < MinSampleSize || medium.Sent < MinSampleSize {
		return false
	}

	changed := false
	current := model.Thresholds.HighFit

	// Medium tier converting nearly as well as high: lower the bar to
	// capture those leads, but never collapse the tiers.
	if medium.ReplyRatePct >= high.ReplyRatePct*0.8 && medium.ReplyRatePct > 3 {
		newHigh := current - 1
		if floor := model.Thresholds.MediumFit + 2; newHigh < floor {
			newHigh = floor
		}
		if newHigh != current {
			model.Thresholds.HighFit = newHigh
			changed = true
			logger.Info("Lowered high tier threshold",
				zap.Int("old", current),
				zap.Int("new", newHigh),
				zap.Float64("medium_reply_rate_pct", medium.ReplyRatePct),
				zap.Float64("high_reply_rate_pct", high.ReplyRatePct),
			)
		}
	}

	// High tier converting near zero with a large sample: the bar is too low.
	if high.ReplyRatePct < 1 && high.Sent >= MinSampleSize*3 {
		current = model.Thresholds.HighFit
		newHigh := current + 1
		if newHigh > maxHighThreshold {
			newHigh = maxHighThreshold
		}
		if newHigh != current {
			model.Thresholds.HighFit = newHigh
			changed = true
			logger.Info("Raised high tier threshold",
				zap.Int("old", current),
				zap.Int("new", newHigh),
				zap.Float64("high_reply_rate_pct", high.ReplyRatePct),
			)
		}
	}

	return changed
}
