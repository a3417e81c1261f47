package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CompaniesScored = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "email_agent_companies_scored_total",
			Help: "Total companies scored, by resulting tier",
		},
		[]string{"tier"},
	)

	TierCompanies = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "email_agent_tier_companies",
			Help: "Current number of companies per qualification tier",
		},
		[]string{"tier"},
	)

	ScoreDistribution = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "email_agent_company_score",
			Help:    "Distribution of company qualification scores",
			Buckets: []float64{0, 4, 8, 12, 16, 20, 30, 50},
		},
	)

	DraftsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "email_agent_drafts_created_total",
			Help: "Total outreach drafts created, by sequence stage",
		},
		[]string{"stage"},
	)

	RepliesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "email_agent_replies_processed_total",
			Help: "Total inbound replies processed, by classification",
		},
		[]string{"classification"},
	)

	SuppressionBlocks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "email_agent_suppression_blocks_total",
			Help: "Total sequence steps blocked by the suppression list",
		},
	)

	RefinementDeltas = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "email_agent_refinement_deltas_total",
			Help: "Total signal weight adjustments applied, by direction",
		},
		[]string{"direction"},
	)

	CycleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "email_agent_cycle_duration_seconds",
			Help:    "Batch cycle duration in seconds, by job",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		},
		[]string{"job"},
	)

	CycleFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "email_agent_cycle_item_failures_total",
			Help: "Total per-item failures inside batch cycles, by job",
		},
		[]string{"job"},
	)

	LLMClassifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "email_agent_llm_classifications_total",
			Help: "Total LLM reply classifications, by outcome",
		},
		[]string{"status"},
	)
)

func Init() {
	prometheus.MustRegister(CompaniesScored)
	prometheus.MustRegister(TierCompanies)
	prometheus.MustRegister(ScoreDistribution)
	prometheus.MustRegister(DraftsCreated)
	prometheus.MustRegister(RepliesProcessed)
	prometheus.MustRegister(SuppressionBlocks)
	prometheus.MustRegister(RefinementDeltas)
	prometheus.MustRegister(CycleDuration)
	prometheus.MustRegister(CycleFailures)
	prometheus.MustRegister(LLMClassifications)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
