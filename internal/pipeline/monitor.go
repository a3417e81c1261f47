// Package pipeline reports on the throughput and health of the prospecting
// engine as a whole: stage counts, conversion rates, bottleneck alerts.
package pipeline

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/kwstx/email-agent/internal/metrics"
	"github.com/kwstx/email-agent/internal/storage/models"
	"github.com/kwstx/email-agent/internal/storage/sqlite"
	"github.com/kwstx/email-agent/pkg/logger"
)

// Alert levels, from informational to requiring intervention.
const (
	LevelInfo     = "info"
	LevelWarning  = "warning"
	LevelCritical = "critical"
)

type Alert struct {
	Level   string `json:"level"`
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// Conversions are the stage-to-stage rates, in percent.
type Conversions struct {
	ScrapeToScorePct     float64 `json:"scrape_to_score_pct"`
	ScoreToHighFitPct    float64 `json:"score_to_high_fit_pct"`
	ScoreToActionablePct float64 `json:"score_to_actionable_pct"`
	SentToReplyPct       float64 `json:"sent_to_reply_pct"`
	ReplyToActiveLeadPct float64 `json:"reply_to_active_lead_pct"`
}

type HealthReport struct {
	GeneratedAt time.Time             `json:"generated_at"`
	Counts      sqlite.PipelineCounts `json:"pipeline_counts"`
	Conversions Conversions           `json:"conversion_rates"`
	Alerts      []Alert               `json:"alerts"`
}

type Monitor struct {
	store *sqlite.Store
	Now   func() time.Time
}

func NewMonitor(store *sqlite.Store) *Monitor {
	return &Monitor{store: store, Now: time.Now}
}

func (m *Monitor) HealthReport() (*HealthReport, error) {
	counts, err := m.store.GetPipelineCounts()
	if err != nil {
		return nil, fmt.Errorf("failed to build health report: %w", err)
	}

	metrics.TierCompanies.WithLabelValues(models.TierHighPriority).Set(float64(counts.HighPriority))
	metrics.TierCompanies.WithLabelValues(models.TierMediumPriority).Set(float64(counts.MediumPriority))
	metrics.TierCompanies.WithLabelValues(models.TierDisqualified).Set(float64(counts.Disqualified))

	return &HealthReport{
		GeneratedAt: m.Now().UTC(),
		Counts:      counts,
		Conversions: conversions(counts),
		Alerts:      detectBottlenecks(counts),
	}, nil
}

// LogHealthReport generates the report and writes a condensed view to the log.
func (m *Monitor) LogHealthReport() (*HealthReport, error) {
	report, err := m.HealthReport()
	if err != nil {
		return nil, err
	}

	c := report.Counts
	logger.Info("Pipeline health",
		zap.Int("companies", c.Companies),
		zap.Int("scraped", c.Scraped),
		zap.Int("scored", c.Scored),
		zap.Int("high_priority", c.HighPriority),
		zap.Int("medium_priority", c.MediumPriority),
		zap.Int("contacts", c.Contacts),
		zap.Int("sent", c.EmailsSent),
		zap.Int("replied", c.Replied),
		zap.Int("active_leads", c.ActiveLeads),
		zap.Int("opted_out", c.OptedOut),
	)
	logger.Info("Pipeline conversions",
		zap.Float64("scrape_to_score_pct", report.Conversions.ScrapeToScorePct),
		zap.Float64("score_to_high_fit_pct", report.Conversions.ScoreToHighFitPct),
		zap.Float64("sent_to_reply_pct", report.Conversions.SentToReplyPct),
		zap.Float64("reply_to_active_lead_pct", report.Conversions.ReplyToActiveLeadPct),
	)

	for _, alert := range report.Alerts {
		fields := []zap.Field{zap.String("stage", alert.Stage)}
		switch alert.Level {
		case LevelCritical:
			logger.Error(alert.Message, fields...)
		case LevelWarning:
			logger.Warn(alert.Message, fields...)
		default:
			logger.Info(alert.Message, fields...)
		}
	}

	return report, nil
}

func conversions(c sqlite.PipelineCounts) Conversions {
	return Conversions{
		ScrapeToScorePct:     pct(c.Scored, c.Scraped),
		ScoreToHighFitPct:    pct(c.HighPriority, c.Scored),
		ScoreToActionablePct: pct(c.HighPriority+c.MediumPriority, c.Scored),
		SentToReplyPct:       pct(c.Replied, c.EmailsSent),
		ReplyToActiveLeadPct: pct(c.ActiveLeads, c.Replied),
	}
}

func detectBottlenecks(c sqlite.PipelineCounts) []Alert {
	alerts := []Alert{}

	unscraped := c.Companies - c.Scraped
	unscored := c.Scraped - c.Scored

	if unscraped > 50 {
		alerts = append(alerts, Alert{
			Level:   LevelWarning,
			Stage:   "scraping",
			Message: fmt.Sprintf("%d companies awaiting scraping, consider increasing scraping frequency", unscraped),
		})
	}
	if unscored > 20 {
		alerts = append(alerts, Alert{
			Level:   LevelWarning,
			Stage:   "scoring",
			Message: fmt.Sprintf("%d companies scraped but not scored, scoring may be lagging", unscored),
		})
	}
	if c.HighPriority > 5 && c.Contacts == 0 {
		alerts = append(alerts, Alert{
			Level:   LevelCritical,
			Stage:   "enrichment",
			Message: fmt.Sprintf("%d high-priority companies but 0 contacts discovered", c.HighPriority),
		})
	}
	if c.Contacts > 10 && float64(c.PendingOutreach) > float64(c.Contacts)*0.8 {
		alerts = append(alerts, Alert{
			Level:   LevelWarning,
			Stage:   "outreach",
			Message: fmt.Sprintf("%d contacts pending outreach, email generation may be stalled", c.PendingOutreach),
		})
	}
	if c.EmailsSent > 20 && float64(c.OptedOut) > float64(c.EmailsSent)*0.05 {
		alerts = append(alerts, Alert{
			Level:   LevelCritical,
			Stage:   "compliance",
			Message: fmt.Sprintf("High opt-out rate: %d opt-outs across %d sent, review targeting and messaging", c.OptedOut, c.EmailsSent),
		})
	}
	if c.Drafts > 50 {
		alerts = append(alerts, Alert{
			Level:   LevelWarning,
			Stage:   "sending",
			Message: fmt.Sprintf("%d email drafts queued, sending may be delayed", c.Drafts),
		})
	}
	if unscraped == 0 && c.Companies < 50 {
		alerts = append(alerts, Alert{
			Level:   LevelInfo,
			Stage:   "discovery",
			Message: "All companies scraped, consider expanding discovery queries",
		})
	}

	return alerts
}

func pct(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return math.Round(float64(num)/float64(den)*1000) / 10
}
