// Package feedback closes the loop between outreach outcomes and the scoring
// model: the Aggregator measures what worked, the Refiner turns that into
// bounded weight adjustments.
package feedback

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/kwstx/email-agent/internal/storage/models"
	"github.com/kwstx/email-agent/internal/storage/sqlite"
	"github.com/kwstx/email-agent/pkg/logger"
)

// Stats holds outcome counters plus derived rates for one slice of the
// pipeline (global, one signal, or one tier). All rates are percentages in
// [0,100] and are zero whenever their denominator is zero.
type Stats struct {
	Companies       int     `json:"companies,omitempty"`
	Contacts        int     `json:"contacts,omitempty"`
	Sent            int     `json:"sent"`
	Replied         int     `json:"replied"`
	Interested      int     `json:"interested"`
	OptedOut        int     `json:"opted_out"`
	Deferred        int     `json:"deferred,omitempty"`
	ReplyRatePct    float64 `json:"reply_rate_pct"`
	InterestRatePct float64 `json:"interest_rate_pct"`
	OptOutRatePct   float64 `json:"opt_out_rate_pct"`
}

// Report correlates outreach outcomes with signals and tiers.
type Report struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Global      Stats            `json:"global_stats"`
	Signals     map[string]Stats `json:"signal_performance"`
	Tiers       map[string]Stats `json:"tier_performance"`
}

// Aggregator computes outcome reports on demand from stored outreach and
// reply history.
type Aggregator struct {
	store *sqlite.Store
	Now   func() time.Time
}

func NewAggregator(store *sqlite.Store) *Aggregator {
	return &Aggregator{store: store, Now: time.Now}
}

// Report builds the full outcome report. Signals with no linked companies
// are omitted; all three tiers are always present so consumers can rely on
// the keys existing.
func (a *Aggregator) Report() (*Report, error) {
	global, err := a.store.GlobalOutcomeCounts()
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate global outcomes: %w", err)
	}

	report := &Report{
		GeneratedAt: a.Now().UTC(),
		Global:      toStats(global),
		Signals:     map[string]Stats{},
		Tiers:       map[string]Stats{},
	}

	keys, err := a.store.SignalKeys()
	if err != nil {
		return nil, fmt.Errorf("failed to list signals: %w", err)
	}
	for _, key := range keys {
		counts, err := a.store.SignalOutcomeCounts(key)
		if err != nil {
			return nil, fmt.Errorf("failed to aggregate signal %s: %w", key, err)
		}
		report.Signals[key] = toStats(counts)
	}

	for _, tier := range []string{models.TierHighPriority, models.TierMediumPriority, models.TierDisqualified} {
		counts, err := a.store.TierOutcomeCounts(tier)
		if err != nil {
			return nil, fmt.Errorf("failed to aggregate tier %s: %w", tier, err)
		}
		report.Tiers[tier] = toStats(counts)
	}

	return report, nil
}

// LogReport generates a report and logs a readable summary.
func (a *Aggregator) LogReport() (*Report, error) {
	report, err := a.Report()
	if err != nil {
		return nil, err
	}

	logger.Info("Outreach outcome report",
		zap.Int("sent", report.Global.Sent),
		zap.Int("replied", report.Global.Replied),
		zap.Float64("reply_rate_pct", report.Global.ReplyRatePct),
		zap.Float64("interest_rate_pct", report.Global.InterestRatePct),
		zap.Float64("opt_out_rate_pct", report.Global.OptOutRatePct),
	)
	for tier, stats := range report.Tiers {
		logger.Info("Tier performance",
			zap.String("tier", tier),
			zap.Int("companies", stats.Companies),
			zap.Int("sent", stats.Sent),
			zap.Float64("reply_rate_pct", stats.ReplyRatePct),
		)
	}
	for key, stats := range report.Signals {
		if stats.Sent == 0 {
			continue
		}
		logger.Info("Signal performance",
			zap.String("signal", key),
			zap.Int("sent", stats.Sent),
			zap.Float64("reply_rate_pct", stats.ReplyRatePct),
			zap.Float64("interest_rate_pct", stats.InterestRatePct),
		)
	}

	return report, nil
}

func toStats(c sqlite.OutcomeCounts) Stats {
	return Stats{
		Companies:       c.Companies,
		Contacts:        c.Contacts,
		Sent:            c.Sent,
		Replied:         c.Replied,
		Interested:      c.Interested,
		OptedOut:        c.OptedOut,
		Deferred:        c.Deferred,
		ReplyRatePct:    rate(c.Replied, c.Sent),
		InterestRatePct: rate(c.Interested, c.Replied),
		OptOutRatePct:   rate(c.OptedOut, c.Sent),
	}
}

// rate is a safe percentage: zero denominator means zero, never NaN.
func rate(numerator, denominator int) float64 {
	if denominator == 0 {
		return 0
	}
	v := float64(numerator) / float64(denominator) * 100
	return math.Round(v*100) / 100
}
