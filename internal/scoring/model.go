package scoring

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/kwstx/email-agent/internal/storage/models"
	"github.com/kwstx/email-agent/pkg/logger"
)

// HistoryCap bounds the refinement history kept in the model file.
const HistoryCap = 20

// SignalDef defines one keyword-backed scoring signal.
type SignalDef struct {
	Keywords    []string `json:"keywords"`
	Points      int      `json:"points"`
	Description string   `json:"description,omitempty"`
}

// Thresholds are the minimum scores for each qualification tier. Scores
// below MediumFit disqualify.
type Thresholds struct {
	HighFit   int `json:"high_fit"`
	MediumFit int `json:"medium_fit"`
}

// ChangeRecord documents one signal weight change within a refinement cycle.
type ChangeRecord struct {
	Signal    string `json:"signal"`
	Category  string `json:"category"`
	OldPoints int    `json:"old_points"`
	NewPoints int    `json:"new_points"`
	Delta     int    `json:"delta"`
	Reason    string `json:"reason"`
}

// RefinementEntry is one immutable history record appended per mutation.
type RefinementEntry struct {
	Timestamp         string         `json:"timestamp"`
	Changes           []ChangeRecord `json:"changes"`
	GlobalReplyRate   float64        `json:"global_reply_rate"`
	ThresholdAdjusted bool           `json:"threshold_adjusted"`
}

// Model is the versioned scoring configuration: category → signal key →
// definition, plus tier thresholds and the capped refinement history.
// Unknown top-level keys in the backing file are preserved across writes.
type Model struct {
	Signals    map[string]map[string]*SignalDef
	Thresholds Thresholds
	History    []RefinementEntry
	extra      map[string]json.RawMessage
}

func (m *Model) UnmarshalJSON(data []byte) error {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if v, ok := raw["signals"]; ok {
		if err := json.Unmarshal(v, &m.Signals); err != nil {
			return fmt.Errorf("invalid signals section: %w", err)
		}
		delete(raw, "signals")
	}
	if v, ok := raw["thresholds"]; ok {
		if err := json.Unmarshal(v, &m.Thresholds); err != nil {
			return fmt.Errorf("invalid thresholds section: %w", err)
		}
		delete(raw, "thresholds")
	}
	if v, ok := raw["refinement_history"]; ok {
		if err := json.Unmarshal(v, &m.History); err != nil {
			return fmt.Errorf("invalid refinement history: %w", err)
		}
		delete(raw, "refinement_history")
	}

	m.extra = raw
	return nil
}

func (m *Model) MarshalJSON() ([]byte, error) {
	out := map[string]any{}
	for k, v := range m.extra {
		out[k] = v
	}
	out["signals"] = m.Signals
	out["thresholds"] = m.Thresholds
	if len(m.History) > 0 {
		out["refinement_history"] = m.History
	}
	return json.Marshal(out)
}

// Hash is the model's content version: a digest over signals and thresholds
// only. Changes to history or unrelated file keys do not change it.
func (m *Model) Hash() string {
	canonical, _ := json.Marshal(struct {
		Signals    map[string]map[string]*SignalDef `json:"signals"`
		Thresholds Thresholds                       `json:"thresholds"`
	}{m.Signals, m.Thresholds})
	sum := sha256.Sum256(canonical)
	return fmt.Sprintf("%x", sum)
}

// Signal looks up a signal definition and its category by key.
func (m *Model) Signal(key string) (*SignalDef, string, bool) {
	for category, signals := range m.Signals {
		if def, ok := signals[key]; ok {
			return def, category, true
		}
	}
	return nil, "", false
}

// TierForScore maps a total score onto a tier. Thresholds are >= comparisons
// checked from highest to lowest.
func (m *Model) TierForScore(score int) string {
	switch {
	case score >= m.Thresholds.HighFit:
		return models.TierHighPriority
	case score >= m.Thresholds.MediumFit:
		return models.TierMediumPriority
	default:
		return models.TierDisqualified
	}
}

// AppendHistory records a refinement, keeping only the most recent entries.
func (m *Model) AppendHistory(entry RefinementEntry) {
	m.History = append(m.History, entry)
	if len(m.History) > HistoryCap {
		m.History = m.History[len(m.History)-HistoryCap:]
	}
}

func (m *Model) validate() error {
	if len(m.Signals) == 0 {
		return fmt.Errorf("model has no signals")
	}
	if m.Thresholds.HighFit == 0 || m.Thresholds.MediumFit == 0 {
		return fmt.Errorf("model is missing tier thresholds")
	}
	if m.Thresholds.HighFit <= m.Thresholds.MediumFit {
		return fmt.Errorf("high_fit threshold (%d) must exceed medium_fit (%d)",
			m.Thresholds.HighFit, m.Thresholds.MediumFit)
	}
	return nil
}

// ModelStore loads and persists the scoring model file. Saves are atomic
// (write-new-then-rename) and preceded by a timestamped full backup, so
// readers never observe a partially written model.
type ModelStore struct {
	Path      string
	BackupDir string
}

func NewModelStore(path, backupDir string) *ModelStore {
	return &ModelStore{Path: path, BackupDir: backupDir}
}

// Load reads and validates the model. A malformed or incomplete model is a
// configuration error: the calling cycle must abort without touching state.
func (ms *ModelStore) Load() (*Model, error) {
	data, err := os.ReadFile(ms.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}

	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("malformed model file %s: %w", ms.Path, err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("invalid model file %s: %w", ms.Path, err)
	}
	return &m, nil
}

// Save backs up the prior file, then writes the new model atomically.
func (ms *ModelStore) Save(m *Model) error {
	if err := m.validate(); err != nil {
		return fmt.Errorf("refusing to save invalid model: %w", err)
	}

	if err := ms.backup(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal model: %w", err)
	}

	tmp := ms.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write model file: %w", err)
	}
	if err := os.Rename(tmp, ms.Path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace model file: %w", err)
	}

	logger.Info("Scoring model saved", zap.String("path", ms.Path), zap.String("hash", m.Hash()))
	return nil
}

func (ms *ModelStore) backup() error {
	data, err := os.ReadFile(ms.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read model for backup: %w", err)
	}

	if err := os.MkdirAll(ms.BackupDir, 0755); err != nil {
		return fmt.Errorf("failed to create backup dir: %w", err)
	}

	stamp := time.Now().UTC().Format("20060102_150405")
	backupPath := filepath.Join(ms.BackupDir, fmt.Sprintf("scoring_model_%s.json", stamp))
	if err := os.WriteFile(backupPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write model backup: %w", err)
	}

	logger.Info("Scoring model backed up", zap.String("path", backupPath))
	return nil
}
