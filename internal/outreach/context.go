package outreach

import (
	"strings"

	"github.com/kwstx/email-agent/internal/storage/models"
	"github.com/kwstx/email-agent/internal/storage/sqlite"
	"github.com/kwstx/email-agent/pkg/batch"
)

// ContextBuilder turns a company's scoring breakdown and risk flags into the
// narrative context that personalizes outreach drafts. It owns only the
// Context namespace of company metadata.
type ContextBuilder struct {
	store *sqlite.Store
}

func NewContextBuilder(store *sqlite.Store) *ContextBuilder {
	return &ContextBuilder{store: store}
}

// Build derives a narrative context from the company's current metadata.
// Pure with respect to the company record.
func (b *ContextBuilder) Build(c *models.Company) *models.NarrativeContext {
	ctx := &models.NarrativeContext{
		Integrations:       integrationsFrom(c.Metadata.Scoring),
		ComplianceExposure: complianceFrom(c.Metadata.Scoring, c.Metadata.Risk),
		GovernanceGaps:     gapsFrom(c.Metadata.Scoring, c.Metadata.Risk),
		Maturity:           c.Maturity,
	}
	ctx.Narrative = narrative(c.Name, ctx)
	return ctx
}

// Run refreshes the narrative context of every scored company.
func (b *ContextBuilder) Run() (*batch.Report, error) {
	report := batch.NewReport("context_building")

	companies, err := b.store.ListScrapedCompanies()
	if err != nil {
		return nil, err
	}

	for _, c := range companies {
		if !c.IsScored {
			continue
		}
		c.Metadata.Context = b.Build(c)
		if err := b.store.SaveCompanyMetadata(c); err != nil {
			report.Fail(c.Domain, err)
			continue
		}
		report.Ok(c.Domain, true)
	}

	report.Log()
	return report, nil
}

// integrationsFrom normalizes tool mentions out of the matched keywords.
func integrationsFrom(signals map[string]models.SignalMatch) []string {
	seen := map[string]bool{}
	var out []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}

	for _, key := range []string{"LLM_API", "AGENT_CORE", "AGENT_PROD"} {
		match, ok := signals[key]
		if !ok {
			continue
		}
		for _, m := range match.Matches {
			lowered := strings.ToLower(m)
			switch {
			case strings.Contains(lowered, "langchain"):
				add("LangChain")
			case strings.Contains(lowered, "crewai"):
				add("CrewAI")
			case strings.Contains(lowered, "openai"):
				add("OpenAI")
			case strings.Contains(lowered, "anthropic"):
				add("Anthropic")
			}
		}
	}
	return out
}

func complianceFrom(signals map[string]models.SignalMatch, risk *models.RiskFlags) []string {
	seen := map[string]bool{}
	var out []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}

	if risk != nil {
		for _, industry := range risk.DetectedIndustries {
			switch {
			case strings.Contains(industry, "health"):
				add("HIPAA")
			case strings.Contains(industry, "fintech"), strings.Contains(industry, "banking"):
				add("PCI-DSS")
				add("SOC2")
			case strings.Contains(industry, "gov"):
				add("FedRAMP")
			}
		}
	}

	if match, ok := signals["COMP_L"]; ok {
		for _, m := range match.Matches {
			add(strings.ToUpper(m))
		}
	}
	return out
}

func gapsFrom(signals map[string]models.SignalMatch, risk *models.RiskFlags) []string {
	var gaps []string

	_, prod := signals["AGENT_PROD"]
	_, core := signals["AGENT_CORE"]
	hasAgents := prod || core

	if hasAgents {
		if risk == nil || !risk.HasAuditLogging {
			gaps = append(gaps, "Missing Agent Audit Trails")
		}
		if risk == nil || !risk.HasRBAC {
			gaps = append(gaps, "Lack of Granular Agent Access Control")
		}
	}

	if _, api := signals["LLM_API"]; api && !hasAgents {
		gaps = append(gaps, "Unmonitored LLM API Usage")
	}
	return gaps
}

// narrative writes the one-paragraph company summary used for operator
// review of drafts.
func narrative(companyName string, ctx *models.NarrativeContext) string {
	if companyName == "" {
		companyName = "This company"
	}

	var b strings.Builder
	b.WriteString(companyName + " appears to be ")
	switch ctx.Maturity {
	case models.MaturityProduction:
		b.WriteString("scaling production-grade agent workflows.")
	case models.MaturityActiveDevelopment:
		b.WriteString("actively building agentic capabilities.")
	default:
		b.WriteString("exploring AI integration.")
	}

	if len(ctx.Integrations) > 0 {
		stack := ctx.Integrations
		if len(stack) > 2 {
			stack = stack[:2]
		}
		b.WriteString(" Utilizing " + strings.Join(stack, ", ") + ".")
	}

	if len(ctx.GovernanceGaps) > 0 {
		b.WriteString(" Operational risks around " + strings.ToLower(ctx.GovernanceGaps[0]) + " may expose the organization")
		if len(ctx.ComplianceExposure) > 0 {
			b.WriteString(" to " + ctx.ComplianceExposure[0] + " compliance issues.")
		} else {
			b.WriteString(" to reliability challenges.")
		}
	} else {
		b.WriteString(" Ensuring runtime safety is critical as these systems scale.")
	}

	return b.String()
}
