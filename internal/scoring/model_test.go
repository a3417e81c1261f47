package scoring

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestModelStore(t *testing.T) *ModelStore {
	t.Helper()
	dir := t.TempDir()
	return NewModelStore(filepath.Join(dir, "scoring_model.json"), filepath.Join(dir, "history"))
}

func TestModelHashTracksContentOnly(t *testing.T) {
	m := testModel()
	base := m.Hash()

	m.AppendHistory(RefinementEntry{Timestamp: "2026-01-01T00:00:00Z"})
	if m.Hash() != base {
		t.Fatal("history must not affect the model hash")
	}

	m.extra = map[string]json.RawMessage{"notes": json.RawMessage(`"unrelated"`)}
	if m.Hash() != base {
		t.Fatal("unrelated file keys must not affect the model hash")
	}

	m.Signals["AI_AGENT_MATURITY"][SignalAgentProd].Points = 11
	if m.Hash() == base {
		t.Fatal("changing a signal weight must change the model hash")
	}

	m.Signals["AI_AGENT_MATURITY"][SignalAgentProd].Points = 10
	m.Thresholds.HighFit = 16
	if m.Hash() == base {
		t.Fatal("changing a threshold must change the model hash")
	}
}

func TestModelStorePreservesUnknownKeys(t *testing.T) {
	ms := newTestModelStore(t)

	raw := `{
		"signals": {"CAT": {"SIG": {"keywords": ["foo"], "points": 5}}},
		"thresholds": {"high_fit": 15, "medium_fit": 8},
		"operator_notes": {"owner": "kostas"}
	}`
	if err := os.WriteFile(ms.Path, []byte(raw), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := ms.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := ms.Save(m); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(ms.Path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "operator_notes") {
		t.Fatal("unknown top-level keys must survive a save round trip")
	}
}

func TestModelStoreRejectsInvalidModel(t *testing.T) {
	ms := newTestModelStore(t)

	cases := []string{
		`{"signals": {}, "thresholds": {"high_fit": 15, "medium_fit": 8}}`,
		`{"signals": {"C": {"S": {"keywords": ["x"], "points": 1}}}, "thresholds": {"medium_fit": 8}}`,
		`{"signals": {"C": {"S": {"keywords": ["x"], "points": 1}}}, "thresholds": {"high_fit": 5, "medium_fit": 8}}`,
		`{not json`,
	}
	for i, raw := range cases {
		if err := os.WriteFile(ms.Path, []byte(raw), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := ms.Load(); err == nil {
			t.Errorf("case %d: expected load error", i)
		}
	}
}

func TestModelStoreSaveIsAtomicAndBacksUp(t *testing.T) {
	ms := newTestModelStore(t)

	if err := ms.Save(DefaultModel()); err != nil {
		t.Fatalf("initial save: %v", err)
	}

	m, err := ms.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	m.Thresholds.HighFit = 16
	if err := ms.Save(m); err != nil {
		t.Fatalf("second save: %v", err)
	}

	if _, err := os.Stat(ms.Path + ".tmp"); !os.IsNotExist(err) {
		t.Fatal("temporary file must not survive a save")
	}

	backups, err := os.ReadDir(ms.BackupDir)
	if err != nil {
		t.Fatalf("backup dir: %v", err)
	}
	if len(backups) == 0 {
		t.Fatal("expected a backup of the previous model")
	}

	reloaded, err := ms.Load()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Thresholds.HighFit != 16 {
		t.Fatalf("expected high_fit 16 after save, got %d", reloaded.Thresholds.HighFit)
	}
}

func TestAppendHistoryIsCapped(t *testing.T) {
	m := testModel()
	for i := 0; i < HistoryCap+5; i++ {
		m.AppendHistory(RefinementEntry{Timestamp: fmt.Sprintf("entry-%d", i)})
	}
	if len(m.History) != HistoryCap {
		t.Fatalf("expected %d history entries, got %d", HistoryCap, len(m.History))
	}
	if m.History[len(m.History)-1].Timestamp != fmt.Sprintf("entry-%d", HistoryCap+4) {
		t.Fatal("expected the newest entries to be kept")
	}
}

func TestTierForScoreBoundaries(t *testing.T) {
	m := testModel()

	cases := []struct {
		score int
		want  string
	}{
		{15, "high_priority"},
		{14, "medium_priority"},
		{8, "medium_priority"},
		{7, "disqualified"},
		{0, "disqualified"},
	}
	for _, tc := range cases {
		if got := m.TierForScore(tc.score); got != tc.want {
			t.Errorf("TierForScore(%d) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestModelSignalLookup(t *testing.T) {
	m := testModel()

	def, category, ok := m.Signal(SignalHiringAI)
	if !ok {
		t.Fatal("expected lookup to find the signal")
	}
	if category != "MARKET_POSITION" {
		t.Fatalf("category = %s, want MARKET_POSITION", category)
	}
	if def.Points != 4 {
		t.Fatalf("points = %d, want 4", def.Points)
	}

	// The returned definition aliases the model, so weight adjustments
	// through it are visible to scoring.
	def.Points = 6
	if m.Signals["MARKET_POSITION"][SignalHiringAI].Points != 6 {
		t.Fatal("lookup must return the live definition, not a copy")
	}

	if _, _, ok := m.Signal("SMB_INDICATOR"); ok {
		t.Fatal("synthetic bonus keys have no model entry")
	}
}
