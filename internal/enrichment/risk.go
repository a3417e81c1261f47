package enrichment

import (
	"regexp"
	"strings"

	"github.com/kwstx/email-agent/internal/storage/models"
	"github.com/kwstx/email-agent/internal/storage/sqlite"
	"github.com/kwstx/email-agent/pkg/batch"
)

// industryPatterns map regulated-industry vocabulary onto the label stored in
// DetectedIndustries. Ordered so repeated runs produce identical output.
var industryPatterns = []struct {
	label string
	re    *regexp.Regexp
}{
	{"fintech", regexp.MustCompile(`\b(fintech|banking|financial services|payments|lending|wealth management|brokerage)\b`)},
	{"healthcare", regexp.MustCompile(`\b(healthcare|medical|biotech|pharma|healthtech|hipaa compliance|patient data)\b`)},
	{"legal", regexp.MustCompile(`\b(legaltech|law firm|egrc|compliance management|regulatory excellence)\b`)},
	{"government", regexp.MustCompile(`\b(government|public sector|fedramp|defense|military|aerospace)\b`)},
}

// Security-posture vocabulary. A site that advertises one of these already
// has the corresponding control, so outreach must not claim it is missing.
var (
	reAuditLogging   = regexp.MustCompile(`\b(audit logging|audit trails|activity logs|event logging)\b`)
	reRBAC           = regexp.MustCompile(`\b(rbac|role-based access|access controls|identity management|sso|saml)\b`)
	reDataProtection = regexp.MustCompile(`\b(data protection|encryption at rest|encryption in transit|kms|hsm)\b`)
	reComplianceCert = regexp.MustCompile(`\b(soc2|soc 2|iso 27001|hipaa|gdpr|pci dss|fedramp)\b`)
	reEnterprise     = regexp.MustCompile(`\b(enterprise readiness|enterprise grade|uptime sla|dedicated support)\b`)
)

// Analyze derives risk flags from a company's raw text corpus. Pure.
func Analyze(text string) *models.RiskFlags {
	lowered := strings.ToLower(text)

	flags := &models.RiskFlags{
		HasAuditLogging:   reAuditLogging.MatchString(lowered),
		HasRBAC:           reRBAC.MatchString(lowered),
		HasDataProtection: reDataProtection.MatchString(lowered),
		HasComplianceCert: reComplianceCert.MatchString(lowered),
		IsEnterpriseReady: reEnterprise.MatchString(lowered),
	}
	for _, p := range industryPatterns {
		if p.re.MatchString(lowered) {
			flags.DetectedIndustries = append(flags.DetectedIndustries, p.label)
		}
	}
	return flags
}

// Enricher derives risk and compliance flags for scraped companies. It owns
// only the Risk namespace of company metadata; the industry column is
// backfilled when discovery left it empty.
type Enricher struct {
	store *sqlite.Store

	// Force re-analyzes companies that already carry risk flags.
	Force bool
}

func NewEnricher(store *sqlite.Store) *Enricher {
	return &Enricher{store: store}
}

// Run analyzes every scraped company that has not been enriched yet.
func (e *Enricher) Run() (*batch.Report, error) {
	report := batch.NewReport("risk_enrichment")

	companies, err := e.store.ListScrapedCompanies()
	if err != nil {
		return nil, err
	}

	for _, c := range companies {
		if c.Metadata.Risk != nil && !e.Force {
			continue
		}
		if strings.TrimSpace(c.Content) == "" {
			continue
		}

		c.Metadata.Risk = Analyze(c.Content)
		if c.Industry == "" && len(c.Metadata.Risk.DetectedIndustries) > 0 {
			c.Industry = strings.Join(c.Metadata.Risk.DetectedIndustries, ", ")
		}

		if err := e.store.SaveEnrichment(c); err != nil {
			report.Fail(c.Domain, err)
			continue
		}
		report.Ok(c.Domain, true)
	}

	report.Log()
	return report, nil
}
