package scoring

import (
	"fmt"
	"time"

	"github.com/kwstx/email-agent/internal/metrics"
	"github.com/kwstx/email-agent/internal/storage/models"
	"github.com/kwstx/email-agent/internal/storage/sqlite"
	"github.com/kwstx/email-agent/pkg/batch"
	"github.com/kwstx/email-agent/pkg/utils"
)

// DefaultStaleness is how long a score stays fresh with no model change.
const DefaultStaleness = 7 * 24 * time.Hour

// Rescorer decides which companies need (re-)evaluation and runs scoring
// batches over them.
type Rescorer struct {
	store      *sqlite.Store
	modelStore *ModelStore
	Staleness  time.Duration
	Now        func() time.Time
}

func NewRescorer(store *sqlite.Store, modelStore *ModelStore) *Rescorer {
	return &Rescorer{
		store:      store,
		modelStore: modelStore,
		Staleness:  DefaultStaleness,
		Now:        time.Now,
	}
}

// ShouldRescore reports whether a company's stored score is stale against
// the model version identified by modelHash. True when the company was never
// scored, when the model changed since its last scoring, when its content
// was refreshed, or when the score has aged past the staleness threshold.
func (r *Rescorer) ShouldRescore(c *models.Company, modelHash string) bool {
	if !c.IsScored || c.LastScoredAt == nil {
		return true
	}
	if c.ScoredModelHash != modelHash {
		return true
	}
	if c.Content != "" && c.ContentHash != utils.HashString(c.Content) {
		return true
	}
	return r.Now().UTC().Sub(*c.LastScoredAt) > r.Staleness
}

// RunUnscored scores every scraped company that has never been scored.
func (r *Rescorer) RunUnscored() (*batch.Report, error) {
	report := batch.NewReport("scoring")

	model, err := r.modelStore.Load()
	if err != nil {
		return nil, fmt.Errorf("scoring cycle aborted: %w", err)
	}

	companies, err := r.store.ListUnscoredCompanies()
	if err != nil {
		return nil, fmt.Errorf("scoring cycle aborted: %w", err)
	}

	scorer := NewScorer(model)
	scorer.Now = r.Now
	for _, c := range companies {
		r.scoreOne(scorer, c, report)
	}

	report.Log()
	return report, nil
}

// RunRescore re-scores every eligible company. A failure on one company is
// recorded and the batch continues.
func (r *Rescorer) RunRescore() (*batch.Report, error) {
	report := batch.NewReport("rescoring")

	model, err := r.modelStore.Load()
	if err != nil {
		return nil, fmt.Errorf("rescoring cycle aborted: %w", err)
	}
	modelHash := model.Hash()

	companies, err := r.store.ListScrapedCompanies()
	if err != nil {
		return nil, fmt.Errorf("rescoring cycle aborted: %w", err)
	}

	scorer := NewScorer(model)
	scorer.Now = r.Now
	for _, c := range companies {
		if !r.ShouldRescore(c, modelHash) {
			continue
		}
		r.scoreOne(scorer, c, report)
	}

	report.Log()
	return report, nil
}

func (r *Rescorer) scoreOne(scorer *Scorer, c *models.Company, report *batch.Report) {
	oldScore, oldTier := c.Score, c.Tier

	scorer.ScoreCompany(c)

	if err := r.store.SaveScoringResult(c); err != nil {
		report.Fail(c.Domain, err)
		return
	}

	metrics.CompaniesScored.WithLabelValues(c.Tier).Inc()
	metrics.ScoreDistribution.Observe(float64(c.Score))
	report.Ok(c.Domain, c.Score != oldScore || c.Tier != oldTier)
}
