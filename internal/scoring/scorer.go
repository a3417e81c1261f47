package scoring

import (
	"math"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kwstx/email-agent/internal/storage/models"
	"github.com/kwstx/email-agent/pkg/logger"
	"github.com/kwstx/email-agent/pkg/utils"
)

// Signal keys with dedicated semantics. AGENT_PROD drives the production
// maturity label; the SMB indicator is synthesized by the careers-section
// heuristic rather than defined in the model.
const (
	SignalAgentProd    = "AGENT_PROD"
	SignalAgentCore    = "AGENT_CORE"
	SignalLLMAPI       = "LLM_API"
	SignalAIExp        = "AI_EXP"
	SignalHiringAI     = "HIRING_AI"
	SignalSMBIndicator = "SMB_INDICATOR"

	smbCategory = "SMB_FILTRATION"
)

// Careers-section heuristic: a bounded fixed bonus when early-team hiring
// phrases appear inside the demarcated careers section of the corpus.
const (
	careersMarker    = "--- CAREERS ---"
	sectionPrefix    = "--- "
	careersBonusPkts = 5
)

var sizeIndicatorPhrases = []string{
	"first engineering hire",
	"founding engineer",
	"founding designer",
	"first sales hire",
	"founding team",
	"employee #1",
}

// Analysis is the result of scoring one text corpus against the model.
type Analysis struct {
	Signals    map[string]models.SignalMatch
	TotalScore int
	Tier       string
	Maturity   string
}

// Scorer converts a raw text corpus into a score, tier and maturity label.
// It is deterministic: the same text and model always produce the same
// analysis.
type Scorer struct {
	model    *Model
	patterns map[string][]*regexp.Regexp // signal key → keyword patterns
	Now      func() time.Time
}

func NewScorer(model *Model) *Scorer {
	patterns := make(map[string][]*regexp.Regexp)
	for _, signals := range model.Signals {
		for key, def := range signals {
			for _, kw := range def.Keywords {
				p := regexp.MustCompile(`\b` + regexp.QuoteMeta(strings.ToLower(kw)) + `\b`)
				patterns[key] = append(patterns[key], p)
			}
		}
	}
	return &Scorer{
		model:    model,
		patterns: patterns,
		Now:      time.Now,
	}
}

// Analyze scores a text corpus. Keyword matching is case-insensitive and
// whole-word. The total score sums each matched signal's base points once;
// repetition feeds only the reported intensity.
func (s *Scorer) Analyze(text string) Analysis {
	if text == "" {
		return Analysis{
			Signals:  map[string]models.SignalMatch{},
			Tier:     models.TierDisqualified,
			Maturity: models.MaturityUnknown,
		}
	}

	lowered := strings.ToLower(text)
	results := make(map[string]models.SignalMatch)
	total := 0

	for category, signals := range s.model.Signals {
		for key, def := range signals {
			count := 0
			var matched []string
			for i, p := range s.patterns[key] {
				found := p.FindAllStringIndex(lowered, -1)
				if len(found) > 0 {
					matched = append(matched, def.Keywords[i])
					count += len(found)
				}
			}
			if count == 0 {
				continue
			}
			results[key] = models.SignalMatch{
				Category:  category,
				Count:     count,
				Intensity: intensity(def.Points, count),
				Matches:   matched,
			}
			total += def.Points
		}
	}

	if match, ok := careersBonus(lowered); ok {
		results[SignalSMBIndicator] = match
		total += careersBonusPkts
	}

	return Analysis{
		Signals:    results,
		TotalScore: total,
		Tier:       s.model.TierForScore(total),
		Maturity:   maturityFor(results),
	}
}

// intensity applies logarithmic damping so repeated mentions of the same
// signal add confidence with diminishing returns. It is a reporting value:
// tier placement uses base points only.
func intensity(basePoints, count int) float64 {
	v := float64(basePoints) * (1 + 0.5*math.Log(float64(count)))
	return math.Round(v*100) / 100
}

// careersBonus scans the demarcated careers section for early-team phrases.
// The bonus is fixed regardless of how many phrases appear: it is bounded
// evidence of a small company, not a scaling signal.
func careersBonus(lowered string) (models.SignalMatch, bool) {
	start := strings.Index(lowered, strings.ToLower(careersMarker))
	if start < 0 {
		return models.SignalMatch{}, false
	}
	section := lowered[start+len(careersMarker):]
	if end := strings.Index(section, sectionPrefix); end >= 0 {
		section = section[:end]
	}

	count := 0
	var matched []string
	for _, phrase := range sizeIndicatorPhrases {
		if n := strings.Count(section, phrase); n > 0 {
			matched = append(matched, phrase)
			count += n
		}
	}
	if count == 0 {
		return models.SignalMatch{}, false
	}
	return models.SignalMatch{
		Category:  smbCategory,
		Count:     count,
		Intensity: intensity(careersBonusPkts, count),
		Matches:   matched,
	}, true
}

// maturityFor derives the deployment maturity label from which signals
// fired: production evidence wins, then active development, then
// hiring/experimentation only.
func maturityFor(signals map[string]models.SignalMatch) string {
	if _, ok := signals[SignalAgentProd]; ok {
		return models.MaturityProduction
	}
	if _, core := signals[SignalAgentCore]; core {
		return models.MaturityActiveDevelopment
	}
	if _, api := signals[SignalLLMAPI]; api {
		return models.MaturityActiveDevelopment
	}
	_, exp := signals[SignalAIExp]
	_, hiring := signals[SignalHiringAI]
	if exp || hiring {
		return models.MaturityExperimenting
	}
	return models.MaturityUnknown
}

// ScoreCompany applies an analysis to a stored company. The scorer owns only
// the Scoring namespace of the company metadata; other enrichers' namespaces
// are left untouched.
func (s *Scorer) ScoreCompany(c *models.Company) {
	analysis := s.Analyze(c.Content)

	now := s.Now().UTC()
	c.IsScored = true
	c.Score = analysis.TotalScore
	c.Tier = analysis.Tier
	c.Maturity = analysis.Maturity
	c.LastScoredAt = &now
	c.ScoredModelHash = s.model.Hash()
	c.ContentHash = utils.HashString(c.Content)
	c.Metadata.Scoring = analysis.Signals

	logger.Info("Company scored",
		zap.String("domain", c.Domain),
		zap.Int("score", c.Score),
		zap.String("tier", c.Tier),
		zap.String("maturity", c.Maturity),
		zap.Int("signals", len(analysis.Signals)),
	)
}
