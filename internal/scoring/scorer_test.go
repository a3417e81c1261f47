package scoring

import (
	"math"
	"testing"

	"github.com/kwstx/email-agent/internal/storage/models"
)

func testModel() *Model {
	return &Model{
		Signals: map[string]map[string]*SignalDef{
			"AI_AGENT_MATURITY": {
				SignalAgentProd: {Keywords: []string{"production agents"}, Points: 10},
				SignalAgentCore: {Keywords: []string{"agent framework"}, Points: 8},
				SignalLLMAPI:    {Keywords: []string{"openai api", "langchain"}, Points: 5},
				SignalAIExp:     {Keywords: []string{"exploring ai"}, Points: 3},
			},
			"MARKET_POSITION": {
				SignalHiringAI: {Keywords: []string{"ai engineer"}, Points: 4},
			},
		},
		Thresholds: Thresholds{HighFit: 15, MediumFit: 8},
	}
}

func TestAnalyzeEmptyTextDisqualifies(t *testing.T) {
	s := NewScorer(testModel())

	a := s.Analyze("")
	if a.TotalScore != 0 {
		t.Fatalf("expected score 0, got %d", a.TotalScore)
	}
	if a.Tier != models.TierDisqualified {
		t.Fatalf("expected disqualified tier, got %s", a.Tier)
	}
	if a.Maturity != models.MaturityUnknown {
		t.Fatalf("expected unknown maturity, got %s", a.Maturity)
	}
	if len(a.Signals) != 0 {
		t.Fatalf("expected no signals, got %d", len(a.Signals))
	}
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	s := NewScorer(testModel())
	text := "We run production agents on the OpenAI API. Production agents are our core."

	first := s.Analyze(text)
	for i := 0; i < 5; i++ {
		next := s.Analyze(text)
		if next.TotalScore != first.TotalScore || next.Tier != first.Tier || next.Maturity != first.Maturity {
			t.Fatalf("run %d diverged: %+v vs %+v", i, next, first)
		}
	}
}

func TestAnalyzeSumsBasePointsOnce(t *testing.T) {
	s := NewScorer(testModel())

	// Two AGENT_PROD mentions plus one LLM_API mention: base points count
	// once per signal, so 10 + 5 = 15.
	text := "Production agents at scale. Our production agents use the OpenAI API."
	a := s.Analyze(text)

	if a.TotalScore != 15 {
		t.Fatalf("expected score 15, got %d", a.TotalScore)
	}
	if a.Tier != models.TierHighPriority {
		t.Fatalf("expected high_priority tier, got %s", a.Tier)
	}
	if a.Maturity != models.MaturityProduction {
		t.Fatalf("expected production maturity, got %s", a.Maturity)
	}

	prod, ok := a.Signals[SignalAgentProd]
	if !ok {
		t.Fatal("expected AGENT_PROD signal")
	}
	if prod.Count != 2 {
		t.Fatalf("expected 2 occurrences, got %d", prod.Count)
	}
}

func TestIntensityDampsRepetition(t *testing.T) {
	// intensity(base, 1) == base; further mentions add with diminishing
	// returns.
	if got := intensity(10, 1); got != 10 {
		t.Fatalf("expected intensity 10 at count 1, got %v", got)
	}

	want := math.Round(10*(1+0.5*math.Log(2))*100) / 100
	if got := intensity(10, 2); got != want {
		t.Fatalf("expected intensity %v at count 2, got %v", want, got)
	}

	prev := 0.0
	deltas := []float64{}
	for count := 1; count <= 4; count++ {
		v := intensity(10, count)
		if count > 1 {
			deltas = append(deltas, v-prev)
		}
		prev = v
	}
	for i := 1; i < len(deltas); i++ {
		if deltas[i] >= deltas[i-1] {
			t.Fatalf("expected diminishing returns, deltas %v", deltas)
		}
	}
}

func TestAnalyzeMatchesWholeWordsOnly(t *testing.T) {
	s := NewScorer(testModel())

	// "langchained" must not match the "langchain" keyword.
	a := s.Analyze("We are langchained to legacy systems.")
	if _, ok := a.Signals[SignalLLMAPI]; ok {
		t.Fatal("expected no LLM_API match on substring")
	}
}

func TestCareersBonusAppliesOnce(t *testing.T) {
	s := NewScorer(testModel())

	text := `We use an agent framework.
--- CAREERS ---
Join as our founding engineer. Also hiring a founding designer.
--- BLOG ---
founding engineer stories from friends.`

	a := s.Analyze(text)

	smb, ok := a.Signals[SignalSMBIndicator]
	if !ok {
		t.Fatal("expected SMB_INDICATOR signal")
	}
	if smb.Category != smbCategory {
		t.Fatalf("expected category %s, got %s", smbCategory, smb.Category)
	}
	// Only the careers section counts: founding engineer + founding designer.
	if smb.Count != 2 {
		t.Fatalf("expected 2 size-indicator matches, got %d", smb.Count)
	}

	// AGENT_CORE 8 + fixed bonus 5.
	if a.TotalScore != 13 {
		t.Fatalf("expected score 13, got %d", a.TotalScore)
	}
}

func TestCareersBonusRequiresMarker(t *testing.T) {
	s := NewScorer(testModel())

	a := s.Analyze("We want a founding engineer for our agent framework team.")
	if _, ok := a.Signals[SignalSMBIndicator]; ok {
		t.Fatal("expected no SMB bonus without a careers section")
	}
	if a.TotalScore != 8 {
		t.Fatalf("expected score 8, got %d", a.TotalScore)
	}
}

func TestMaturityLadder(t *testing.T) {
	s := NewScorer(testModel())

	cases := []struct {
		text string
		want string
	}{
		{"production agents everywhere", models.MaturityProduction},
		{"we built an agent framework", models.MaturityActiveDevelopment},
		{"we call the openai api", models.MaturityActiveDevelopment},
		{"exploring ai and hiring an ai engineer", models.MaturityExperimenting},
		{"we sell furniture", models.MaturityUnknown},
	}
	for _, tc := range cases {
		if got := s.Analyze(tc.text).Maturity; got != tc.want {
			t.Errorf("Analyze(%q).Maturity = %s, want %s", tc.text, got, tc.want)
		}
	}
}

func TestScoreCompanyWritesOnlyScoringNamespace(t *testing.T) {
	s := NewScorer(testModel())

	risk := &models.RiskFlags{HasAuditLogging: true}
	c := &models.Company{
		ID:      "c1",
		Domain:  "acme.dev",
		Content: "production agents",
		Metadata: models.Metadata{
			Risk: risk,
		},
	}

	s.ScoreCompany(c)

	if !c.IsScored {
		t.Fatal("expected company to be marked scored")
	}
	if c.Score != 10 || c.Tier != models.TierMediumPriority {
		t.Fatalf("unexpected score/tier: %d/%s", c.Score, c.Tier)
	}
	if c.LastScoredAt == nil || c.ScoredModelHash == "" || c.ContentHash == "" {
		t.Fatal("expected scoring bookkeeping fields to be set")
	}
	if c.Metadata.Risk != risk {
		t.Fatal("scorer must not touch the risk namespace")
	}
	if len(c.Metadata.Scoring) != 1 {
		t.Fatalf("expected 1 scoring signal, got %d", len(c.Metadata.Scoring))
	}
}
