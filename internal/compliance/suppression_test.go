package compliance

import (
	"testing"

	"github.com/kwstx/email-agent/internal/storage/models"
	"github.com/kwstx/email-agent/internal/storage/sqlite"
)

func newTestGate(t *testing.T) (*Gate, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.InitSchema(); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewGate(store), store
}

func TestSuppressIsIdempotent(t *testing.T) {
	gate, _ := newTestGate(t)

	added, err := gate.Suppress("Joe@Acme.com", models.SuppressionEmail, "opt_out")
	if err != nil {
		t.Fatalf("suppress failed: %v", err)
	}
	if !added {
		t.Fatal("first suppression should report added")
	}

	// Same address, different casing and whitespace.
	added, err = gate.Suppress("  joe@acme.com ", models.SuppressionEmail, "opt_out")
	if err != nil {
		t.Fatalf("repeat suppress failed: %v", err)
	}
	if added {
		t.Fatal("repeat suppression must be a no-op")
	}

	stats, err := gate.GetStats()
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Total != 1 {
		t.Fatalf("expected 1 entry, got %d", stats.Total)
	}
}

func TestSuppressRejectsUnknownType(t *testing.T) {
	gate, _ := newTestGate(t)
	if _, err := gate.Suppress("acme.com", "subdomain", "manual"); err == nil {
		t.Fatal("expected error for unknown suppression type")
	}
}

func TestIsSuppressedMatchesEmailAndDomain(t *testing.T) {
	gate, _ := newTestGate(t)

	if _, err := gate.Suppress("jane@beta.io", models.SuppressionEmail, "opt_out"); err != nil {
		t.Fatalf("suppress email: %v", err)
	}
	if _, err := gate.Suppress("acme.com", models.SuppressionDomain, "bounced"); err != nil {
		t.Fatalf("suppress domain: %v", err)
	}

	cases := []struct {
		email string
		want  bool
	}{
		{"jane@beta.io", true},
		{"JANE@BETA.IO", true},
		{"joe@acme.com", true}, // domain entry covers every address at acme.com
		{"sales@acme.com", true},
		{"jane@gamma.io", false},
	}
	for _, tc := range cases {
		got, err := gate.IsSuppressed(tc.email)
		if err != nil {
			t.Fatalf("IsSuppressed(%s): %v", tc.email, err)
		}
		if got != tc.want {
			t.Fatalf("IsSuppressed(%s) = %v, want %v", tc.email, got, tc.want)
		}
	}
}

func TestUnsuppressRemovesEntry(t *testing.T) {
	gate, _ := newTestGate(t)

	if _, err := gate.Suppress("joe@acme.com", models.SuppressionEmail, "manual"); err != nil {
		t.Fatalf("suppress: %v", err)
	}

	removed, err := gate.Unsuppress("joe@acme.com", models.SuppressionEmail)
	if err != nil {
		t.Fatalf("unsuppress: %v", err)
	}
	if !removed {
		t.Fatal("expected removal")
	}

	removed, err = gate.Unsuppress("joe@acme.com", models.SuppressionEmail)
	if err != nil {
		t.Fatalf("second unsuppress: %v", err)
	}
	if removed {
		t.Fatal("second removal must report nothing removed")
	}

	suppressed, err := gate.IsSuppressed("joe@acme.com")
	if err != nil {
		t.Fatalf("IsSuppressed: %v", err)
	}
	if suppressed {
		t.Fatal("address should be contactable again")
	}
}

func TestReconcileBackfillsAndIsRerunnable(t *testing.T) {
	gate, store := newTestGate(t)

	company := &models.Company{ID: "co-1", Domain: "acme.com", Name: "Acme",
		Tier: models.TierHighPriority, Maturity: models.MaturityUnknown}
	if err := store.UpsertCompany(company); err != nil {
		t.Fatalf("seed company: %v", err)
	}

	contacts := []*models.Contact{
		{ID: "ct-1", CompanyID: "co-1", Name: "Opted Out", Email: "out@acme.com",
			OutreachStage: 1, OutreachStatus: models.ContactOptOut},
		{ID: "ct-2", CompanyID: "co-1", Name: "Bounced", Email: "gone@acme.com",
			OutreachStage: 1, OutreachStatus: models.ContactBounced},
		{ID: "ct-3", CompanyID: "co-1", Name: "No Email",
			OutreachStage: 1, OutreachStatus: models.ContactOptOut},
		{ID: "ct-4", CompanyID: "co-1", Name: "Fine", Email: "ok@acme.com",
			OutreachStage: 1, OutreachStatus: models.ContactActive},
	}
	for _, c := range contacts {
		if err := store.InsertContact(c); err != nil {
			t.Fatalf("seed contact %s: %v", c.ID, err)
		}
	}

	report, err := gate.Reconcile()
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if report.Processed() != 2 || report.Changed() != 2 {
		t.Fatalf("processed/changed = %d/%d, want 2/2", report.Processed(), report.Changed())
	}

	for _, email := range []string{"out@acme.com", "gone@acme.com"} {
		suppressed, err := gate.IsSuppressed(email)
		if err != nil {
			t.Fatalf("IsSuppressed(%s): %v", email, err)
		}
		if !suppressed {
			t.Fatalf("%s should be suppressed after reconcile", email)
		}
	}
	if suppressed, _ := gate.IsSuppressed("ok@acme.com"); suppressed {
		t.Fatal("active contact must not be suppressed")
	}

	// Re-run: entries already exist, nothing changes and nothing duplicates.
	report, err = gate.Reconcile()
	if err != nil {
		t.Fatalf("second reconcile failed: %v", err)
	}
	if report.Changed() != 0 {
		t.Fatalf("second run changed %d entries, want 0", report.Changed())
	}

	stats, err := gate.GetStats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 2 {
		t.Fatalf("expected 2 suppression entries, got %d", stats.Total)
	}
	if stats.ByReason[models.ContactOptOut] != 1 || stats.ByReason[models.ContactBounced] != 1 {
		t.Fatalf("unexpected reason breakdown: %+v", stats.ByReason)
	}
}
