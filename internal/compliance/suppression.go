// Package compliance is the authoritative gate on who may receive outreach.
// Every sequencing decision passes through it before any draft is generated.
package compliance

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kwstx/email-agent/internal/storage/models"
	"github.com/kwstx/email-agent/internal/storage/sqlite"
	"github.com/kwstx/email-agent/pkg/batch"
	"github.com/kwstx/email-agent/pkg/logger"
)

type Gate struct {
	store *sqlite.Store
	Now   func() time.Time
}

func NewGate(store *sqlite.Store) *Gate {
	return &Gate{store: store, Now: time.Now}
}

// IsSuppressed reports whether an email must not be contacted: either the
// exact address or its domain is on the suppression list.
func (g *Gate) IsSuppressed(email string) (bool, error) {
	normalized := normalize(email)

	entry, err := g.store.FindSuppression(models.SuppressionEmail, normalized)
	if err != nil {
		return false, err
	}
	if entry != nil {
		logger.Debug("Suppressed by email match",
			zap.String("email", normalized),
			zap.String("reason", entry.Reason),
		)
		return true, nil
	}

	if at := strings.LastIndex(normalized, "@"); at >= 0 {
		domain := normalized[at+1:]
		entry, err = g.store.FindSuppression(models.SuppressionDomain, domain)
		if err != nil {
			return false, err
		}
		if entry != nil {
			logger.Debug("Suppressed by domain match",
				zap.String("email", normalized),
				zap.String("domain", domain),
				zap.String("reason", entry.Reason),
			)
			return true, nil
		}
	}

	return false, nil
}

// Suppress adds a value to the suppression list. Returns true only when the
// entry is newly added; suppressing an existing value is a no-op.
func (g *Gate) Suppress(value, entryType, reason string) (bool, error) {
	if entryType != models.SuppressionEmail && entryType != models.SuppressionDomain {
		return false, fmt.Errorf("unknown suppression type %q", entryType)
	}
	normalized := normalize(value)

	existing, err := g.store.FindSuppression(entryType, normalized)
	if err != nil {
		return false, err
	}
	if existing != nil {
		logger.Debug("Already suppressed", zap.String("value", normalized))
		return false, nil
	}

	entry := &models.SuppressionEntry{
		ID:        uuid.NewString(),
		Type:      entryType,
		Value:     normalized,
		Reason:    reason,
		CreatedAt: g.Now().UTC(),
	}
	if err := g.store.InsertSuppression(entry); err != nil {
		return false, err
	}

	logger.Info("Suppressed",
		zap.String("type", entryType),
		zap.String("value", normalized),
		zap.String("reason", reason),
	)
	return true, nil
}

// Unsuppress removes a value from the suppression list. Returns true if an
// entry was actually removed.
func (g *Gate) Unsuppress(value, entryType string) (bool, error) {
	removed, err := g.store.DeleteSuppression(entryType, normalize(value))
	if err != nil {
		return false, err
	}
	if removed {
		logger.Info("Unsuppressed", zap.String("type", entryType), zap.String("value", normalize(value)))
	}
	return removed, nil
}

// Reconcile scans contacts whose status is opt_out or bounced and ensures a
// matching suppression entry exists. Status updates and suppression entries
// can fall out of sync across subsystems; this is safely re-runnable and
// never duplicates entries.
func (g *Gate) Reconcile() (*batch.Report, error) {
	report := batch.NewReport("compliance_sync")

	for _, status := range []string{models.ContactOptOut, models.ContactBounced} {
		contacts, err := g.store.ListContactsByStatus(status)
		if err != nil {
			return nil, fmt.Errorf("compliance sync aborted: %w", err)
		}
		for _, c := range contacts {
			if c.Email == "" {
				continue
			}
			added, err := g.Suppress(c.Email, models.SuppressionEmail, status)
			if err != nil {
				report.Fail(c.Email, err)
				continue
			}
			report.Ok(c.Email, added)
		}
	}

	report.Log()
	return report, nil
}

// Stats summarizes the suppression list by type and reason.
type Stats struct {
	Total    int            `json:"total"`
	ByType   map[string]int `json:"by_type"`
	ByReason map[string]int `json:"by_reason"`
}

func (g *Gate) GetStats() (*Stats, error) {
	entries, err := g.store.ListSuppressions()
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		Total:    len(entries),
		ByType:   map[string]int{models.SuppressionEmail: 0, models.SuppressionDomain: 0},
		ByReason: map[string]int{},
	}
	for _, e := range entries {
		stats.ByType[e.Type]++
		reason := e.Reason
		if reason == "" {
			reason = "unknown"
		}
		stats.ByReason[reason]++
	}
	return stats, nil
}

// List returns every suppression entry.
func (g *Gate) List() ([]*models.SuppressionEntry, error) {
	return g.store.ListSuppressions()
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
