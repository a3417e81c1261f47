package outreach

import (
	"strings"

	"github.com/kwstx/email-agent/internal/storage/models"
)

// Draft is rendered outreach content. Rendering is a pure function of
// {stage, narrative context, contact}; the sequencer decides when it is
// allowed to happen.
type Draft struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Template is one stage of the outreach sequence. Trigger picks between
// variants within a stage; a stage with no template ends the sequence.
type Template struct {
	ID      string
	Stage   int
	Subject string
	Body    string
	Trigger func(ctx *models.NarrativeContext) bool
}

var templates = []Template{
	{
		ID:      "founder_discovery_compliance",
		Stage:   1,
		Subject: "Quick question / {company_name} agents",
		Body: `Hi {first_name},

I've been following {company_name} and really like to see that you're {observation}.

I'm currently working on a small startup, {product_name}, focused on runtime governance for autonomous agents - basically, helping teams understand and manage {risk_phrase}.

This isn't a pitch - I'm just trying to learn from teams running real agent systems. I'd love to hear how your team thinks about these tricky situations and share a few insights I've seen work for other small AI teams.

Would you be open to a very quick 10-minute chat? Totally informal, just a conversation.

Thanks so much,
{sender_name}`,
		Trigger: func(ctx *models.NarrativeContext) bool {
			return ctx != nil && len(ctx.ComplianceExposure) > 0
		},
	},
	{
		ID:      "founder_discovery_general",
		Stage:   1,
		Subject: "Connecting / {company_name} agents",
		Body: `Hi {first_name},

I've been following {company_name} and really like that you're {observation}.

I'm currently working on a small startup, {product_name}, focused on runtime governance for autonomous agents - basically, helping teams understand and manage {risk_phrase}.

This isn't a pitch - I'm just trying to learn from teams running real agent systems. I'd love to hear how your team thinks about these tricky situations.

Would you be open to a very quick 10-minute chat? Totally informal, just a conversation.

Thanks so much,
{sender_name}`,
		Trigger: func(ctx *models.NarrativeContext) bool { return true },
	},
	{
		ID:      "follow_up_insight",
		Stage:   2,
		Subject: "Re: {company_name} agents",
		Body: `Hi {first_name},

Following up on my last note - one thing I keep hearing from teams {observation} is how hard it is to know what an agent actually did after the fact.

If {risk_phrase} is on your radar at all, I'd genuinely value 10 minutes of your perspective. Happy to share what I've seen work elsewhere.

Best,
{sender_name}`,
		Trigger: func(ctx *models.NarrativeContext) bool { return true },
	},
	{
		ID:      "break_up",
		Stage:   3,
		Subject: "Closing the loop / {company_name}",
		Body: `Hi {first_name},

I'll stop here - I know inboxes are busy. If agent governance ever becomes a priority at {company_name}, I'd still love to compare notes.

Either way, good luck with everything you're building.

{sender_name}`,
		Trigger: func(ctx *models.NarrativeContext) bool { return true },
	},
}

// ForStage returns the first template whose trigger matches the context, or
// nil when the sequence has no further stage.
func ForStage(stage int, ctx *models.NarrativeContext) *Template {
	for i := range templates {
		t := &templates[i]
		if t.Stage != stage {
			continue
		}
		if t.Trigger == nil || t.Trigger(ctx) {
			return t
		}
	}
	return nil
}

// RenderInput carries everything a template render needs.
type RenderInput struct {
	Contact     *models.Contact
	CompanyName string
	Context     *models.NarrativeContext
	SenderName  string
	ProductName string
}

// Render fills the template. Deterministic for a given input.
func (t *Template) Render(in RenderInput) Draft {
	firstName := ""
	if in.Contact != nil && in.Contact.Name != "" {
		firstName = strings.Fields(in.Contact.Name)[0]
	}
	companyName := in.CompanyName
	if companyName == "" {
		companyName = "your company"
	}

	replacer := strings.NewReplacer(
		"{first_name}", firstName,
		"{company_name}", companyName,
		"{observation}", observation(in.Context),
		"{risk_phrase}", riskPhrase(in.Context),
		"{sender_name}", in.SenderName,
		"{product_name}", in.ProductName,
	)

	return Draft{
		Subject: replacer.Replace(t.Subject),
		Body:    replacer.Replace(t.Body),
	}
}

func observation(ctx *models.NarrativeContext) string {
	if ctx != nil && len(ctx.Integrations) > 0 {
		return "building agent workflows on " + ctx.Integrations[0]
	}
	return "deploying autonomous agents"
}

func riskPhrase(ctx *models.NarrativeContext) string {
	if ctx == nil {
		return "moments when agents might act unexpectedly"
	}
	if len(ctx.ComplianceExposure) > 0 {
		return "data privacy risks like " + ctx.ComplianceExposure[0]
	}
	if len(ctx.GovernanceGaps) > 0 {
		gap := strings.ToLower(ctx.GovernanceGaps[0])
		if strings.Contains(gap, "audit") || strings.Contains(gap, "logging") {
			return "auditability for unmonitored executions"
		}
	}
	return "moments when agents might act unexpectedly"
}
