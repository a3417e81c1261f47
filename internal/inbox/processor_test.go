package inbox

import (
	"context"
	"testing"
	"time"

	"github.com/kwstx/email-agent/internal/compliance"
	"github.com/kwstx/email-agent/internal/storage/models"
	"github.com/kwstx/email-agent/internal/storage/sqlite"
)

func newTestProcessor(t *testing.T) (*Processor, *sqlite.Store, *compliance.Gate) {
	t.Helper()
	store, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.InitSchema(); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	gate := compliance.NewGate(store)
	return NewProcessor(store, gate, keywordClassifier()), store, gate
}

func seedThread(t *testing.T, store *sqlite.Store) *models.Contact {
	t.Helper()
	company := &models.Company{ID: "co-1", Domain: "agents.dev", Name: "Agents Dev",
		Tier: models.TierHighPriority, Maturity: models.MaturityProduction}
	if err := store.UpsertCompany(company); err != nil {
		t.Fatalf("seed company: %v", err)
	}

	contact := &models.Contact{
		ID:             "ct-1",
		CompanyID:      company.ID,
		Name:           "Jane Doe",
		Email:          "jane@agents.dev",
		OutreachStage:  1,
		OutreachStatus: models.ContactActive,
	}
	if err := store.InsertContact(contact); err != nil {
		t.Fatalf("seed contact: %v", err)
	}

	sentAt := time.Date(2026, 8, 9, 10, 0, 0, 0, time.UTC)
	outreach := &models.Outreach{
		ID:        "or-1",
		ContactID: contact.ID,
		Stage:     1,
		Status:    models.OutreachSent,
		Subject:   "Quick question",
		Body:      "hello",
		SentAt:    &sentAt,
		CreatedAt: sentAt,
	}
	if err := store.CreateDraft(contact, outreach); err != nil {
		t.Fatalf("seed outreach: %v", err)
	}
	return contact
}

func TestProcessInterestReply(t *testing.T) {
	p, store, _ := newTestProcessor(t)
	contact := seedThread(t, store)

	report, err := p.Process(context.Background(), []InboundMessage{{
		From:       contact.Email,
		Subject:    "Re: Quick question",
		Body:       "Happy to chat, send over a demo link.",
		ReceivedAt: time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC),
	}})
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if report.Processed() != 1 || report.Failed() != 0 {
		t.Fatalf("processed/failed = %d/%d, want 1/0", report.Processed(), report.Failed())
	}

	reloaded, err := store.GetContact(contact.ID)
	if err != nil {
		t.Fatalf("reload contact: %v", err)
	}
	if reloaded.OutreachStatus != models.ContactActiveLead {
		t.Fatalf("status = %s, want active_lead", reloaded.OutreachStatus)
	}

	outreach, err := store.GetOutreach("or-1")
	if err != nil {
		t.Fatalf("reload outreach: %v", err)
	}
	if outreach.Status != models.OutreachReplied {
		t.Fatalf("outreach status = %s, want replied", outreach.Status)
	}
	if outreach.ReplyReceivedAt == nil {
		t.Fatal("reply timestamp not recorded on outreach")
	}
}

func TestProcessOptOutSuppressesImmediately(t *testing.T) {
	p, store, gate := newTestProcessor(t)
	contact := seedThread(t, store)

	_, err := p.Process(context.Background(), []InboundMessage{{
		From:    contact.Email,
		Subject: "Re: Quick question",
		Body:    "Please remove me from your list.",
	}})
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}

	reloaded, _ := store.GetContact(contact.ID)
	if reloaded.OutreachStatus != models.ContactOptOut {
		t.Fatalf("status = %s, want opt_out", reloaded.OutreachStatus)
	}

	suppressed, err := gate.IsSuppressed(contact.Email)
	if err != nil {
		t.Fatalf("IsSuppressed: %v", err)
	}
	if !suppressed {
		t.Fatal("opt-out must land on the suppression list in the same pass")
	}
}

func TestProcessDeferralReply(t *testing.T) {
	p, store, _ := newTestProcessor(t)
	contact := seedThread(t, store)

	_, err := p.Process(context.Background(), []InboundMessage{{
		From:    contact.Email,
		Subject: "Automatic reply: Out of Office",
		Body:    "Back on September 1st.",
	}})
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}

	reloaded, _ := store.GetContact(contact.ID)
	if reloaded.OutreachStatus != models.ContactDeferred {
		t.Fatalf("status = %s, want deferred", reloaded.OutreachStatus)
	}
}

func TestProcessSkipsUnknownSenders(t *testing.T) {
	p, store, _ := newTestProcessor(t)
	seedThread(t, store)

	report, err := p.Process(context.Background(), []InboundMessage{{
		From:    "stranger@elsewhere.com",
		Subject: "hi",
		Body:    "who is this?",
	}})
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if report.Processed() != 0 {
		t.Fatalf("unknown sender must be skipped, processed %d", report.Processed())
	}
}

func TestProcessBackfillsReceivedAt(t *testing.T) {
	p, store, _ := newTestProcessor(t)
	contact := seedThread(t, store)

	now := time.Date(2026, 8, 11, 8, 0, 0, 0, time.UTC)
	p.Now = func() time.Time { return now }

	_, err := p.Process(context.Background(), []InboundMessage{{
		From:    contact.Email,
		Subject: "Re: Quick question",
		Body:    "No thanks.",
	}})
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}

	outreach, err := store.GetOutreach("or-1")
	if err != nil {
		t.Fatalf("reload outreach: %v", err)
	}
	if outreach.ReplyReceivedAt == nil || !outreach.ReplyReceivedAt.Equal(now) {
		t.Fatalf("reply_received_at = %v, want %v", outreach.ReplyReceivedAt, now)
	}

	reloaded, _ := store.GetContact(contact.ID)
	if reloaded.OutreachStatus != models.ContactNotInterested {
		t.Fatalf("status = %s, want not_interested", reloaded.OutreachStatus)
	}
}

// Mail clients reply with arbitrary casing in the From header; the stored
// contact must still be found.
func TestProcessMatchesSenderCaseInsensitively(t *testing.T) {
	p, store, _ := newTestProcessor(t)
	seedThread(t, store)

	report, err := p.Process(context.Background(), []InboundMessage{{
		From:       "  Jane@Agents.dev ",
		Subject:    "Re: Quick question",
		Body:       "Happy to chat, send over a demo link.",
		ReceivedAt: time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC),
	}})
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if report.Processed() != 1 || report.Failed() != 0 {
		t.Fatalf("processed/failed = %d/%d, want 1/0", report.Processed(), report.Failed())
	}

	contact, err := store.GetContact("ct-1")
	if err != nil {
		t.Fatalf("reload contact: %v", err)
	}
	if contact.OutreachStatus != models.ContactActiveLead {
		t.Fatalf("status = %s, want active_lead", contact.OutreachStatus)
	}
}
