package outreach

import (
	"strings"
	"testing"

	"github.com/kwstx/email-agent/internal/storage/models"
)

func TestForStagePicksComplianceVariant(t *testing.T) {
	ctx := &models.NarrativeContext{ComplianceExposure: []string{"HIPAA"}}
	tpl := ForStage(1, ctx)
	if tpl == nil || tpl.ID != "founder_discovery_compliance" {
		t.Fatalf("expected compliance variant, got %+v", tpl)
	}

	tpl = ForStage(1, &models.NarrativeContext{})
	if tpl == nil || tpl.ID != "founder_discovery_general" {
		t.Fatalf("expected general variant, got %+v", tpl)
	}

	tpl = ForStage(1, nil)
	if tpl == nil || tpl.ID != "founder_discovery_general" {
		t.Fatalf("nil context should fall back to general, got %+v", tpl)
	}
}

func TestForStageEndsSequence(t *testing.T) {
	if tpl := ForStage(4, nil); tpl != nil {
		t.Fatalf("stage 4 should end the sequence, got %s", tpl.ID)
	}
}

func TestRenderSubstitutesPlaceholders(t *testing.T) {
	tpl := ForStage(1, nil)
	draft := tpl.Render(RenderInput{
		Contact:     &models.Contact{Name: "Jane Doe"},
		CompanyName: "Agents Dev",
		Context: &models.NarrativeContext{
			Integrations:       []string{"LangChain"},
			ComplianceExposure: []string{"HIPAA"},
		},
		SenderName:  "Kwstas",
		ProductName: "Engram",
	})

	if !strings.Contains(draft.Subject, "Agents Dev") {
		t.Fatalf("subject missing company name: %s", draft.Subject)
	}
	if !strings.HasPrefix(draft.Body, "Hi Jane,") {
		t.Fatalf("greeting must use the first name only: %q", firstLine(draft.Body))
	}
	if !strings.Contains(draft.Body, "building agent workflows on LangChain") {
		t.Fatal("observation not rendered from integrations")
	}
	if !strings.Contains(draft.Body, "data privacy risks like HIPAA") {
		t.Fatal("risk phrase not rendered from compliance exposure")
	}
	if !strings.Contains(draft.Body, "Engram") || !strings.Contains(draft.Body, "Kwstas") {
		t.Fatal("sender or product name missing")
	}
	if strings.Contains(draft.Body, "{") {
		t.Fatalf("unreplaced placeholder in body: %s", draft.Body)
	}
}

func TestRenderDefaultsForSparseInput(t *testing.T) {
	tpl := ForStage(2, nil)
	draft := tpl.Render(RenderInput{
		Contact:    &models.Contact{Name: "Sam"},
		SenderName: "Kwstas",
	})

	if !strings.Contains(draft.Subject, "your company") {
		t.Fatalf("empty company should render as 'your company': %s", draft.Subject)
	}
	if !strings.Contains(draft.Body, "deploying autonomous agents") {
		t.Fatal("expected default observation")
	}
	if !strings.Contains(draft.Body, "moments when agents might act unexpectedly") {
		t.Fatal("expected default risk phrase")
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	tpl := ForStage(3, nil)
	in := RenderInput{
		Contact:     &models.Contact{Name: "Jane Doe"},
		CompanyName: "Agents Dev",
		SenderName:  "Kwstas",
	}
	a := tpl.Render(in)
	b := tpl.Render(in)
	if a != b {
		t.Fatal("rendering must be deterministic for the same input")
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
