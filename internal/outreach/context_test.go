package outreach

import (
	"strings"
	"testing"

	"github.com/kwstx/email-agent/internal/enrichment"
	"github.com/kwstx/email-agent/internal/storage/models"
)

func scoredCompany(name string) *models.Company {
	return &models.Company{
		Name:     name,
		Domain:   strings.ToLower(name) + ".dev",
		IsScored: true,
		Maturity: models.MaturityProduction,
		Metadata: models.Metadata{
			Scoring: map[string]models.SignalMatch{
				"AGENT_PROD": {Category: "production", Count: 2, Intensity: 10, Matches: []string{"langchain agents"}},
			},
		},
	}
}

func TestBuildFlagsGapsWithoutRiskFlags(t *testing.T) {
	b := NewContextBuilder(nil)
	c := scoredCompany("Acme")

	ctx := b.Build(c)

	gaps := strings.Join(ctx.GovernanceGaps, "; ")
	if !strings.Contains(gaps, "Missing Agent Audit Trails") {
		t.Fatalf("unenriched company should flag audit trails, got %q", gaps)
	}
	if !strings.Contains(gaps, "Lack of Granular Agent Access Control") {
		t.Fatalf("unenriched company should flag access control, got %q", gaps)
	}
}

func TestBuildRespectsEnrichedRiskFlags(t *testing.T) {
	b := NewContextBuilder(nil)
	c := scoredCompany("Acme")
	c.Content = "Enterprise agents with full audit logging, role-based access, and SSO."
	c.Metadata.Risk = enrichment.Analyze(c.Content)

	ctx := b.Build(c)

	if len(ctx.GovernanceGaps) != 0 {
		t.Fatalf("a site advertising audit logging and rbac has no governance gaps, got %v", ctx.GovernanceGaps)
	}
	if !strings.Contains(ctx.Narrative, "Ensuring runtime safety") {
		t.Fatalf("narrative should fall back to the runtime-safety angle, got %q", ctx.Narrative)
	}
}

func TestBuildMapsIndustriesToComplianceRegimes(t *testing.T) {
	b := NewContextBuilder(nil)
	c := scoredCompany("Medly")
	c.Metadata.Risk = &models.RiskFlags{
		DetectedIndustries: []string{"healthcare", "fintech"},
		HasAuditLogging:    true,
		HasRBAC:            true,
	}

	ctx := b.Build(c)

	want := []string{"HIPAA", "PCI-DSS", "SOC2"}
	if len(ctx.ComplianceExposure) != len(want) {
		t.Fatalf("expected %v, got %v", want, ctx.ComplianceExposure)
	}
	for i, regime := range want {
		if ctx.ComplianceExposure[i] != regime {
			t.Fatalf("expected %v, got %v", want, ctx.ComplianceExposure)
		}
	}
}
