// Package outreach advances contacts through the timed multi-stage email
// sequence. The sequencer is a per-contact state machine; every decision is
// gated on suppression before anything else.
package outreach

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kwstx/email-agent/internal/compliance"
	"github.com/kwstx/email-agent/internal/metrics"
	"github.com/kwstx/email-agent/internal/storage/models"
	"github.com/kwstx/email-agent/internal/storage/sqlite"
	"github.com/kwstx/email-agent/pkg/batch"
	"github.com/kwstx/email-agent/pkg/logger"
)

// DefaultSequenceGap is the wait between consecutive stages of a sequence.
const DefaultSequenceGap = 3 * 24 * time.Hour

type Sequencer struct {
	store       *sqlite.Store
	gate        *compliance.Gate
	contexts    *ContextBuilder
	Gap         time.Duration
	SenderName  string
	ProductName string
	Now         func() time.Time
}

func NewSequencer(store *sqlite.Store, gate *compliance.Gate) *Sequencer {
	return &Sequencer{
		store:       store,
		gate:        gate,
		contexts:    NewContextBuilder(store),
		Gap:         DefaultSequenceGap,
		SenderName:  "Kwstas",
		ProductName: "Engram",
		Now:         time.Now,
	}
}

// Run processes every sequencing candidate. Per-contact failures are
// recorded and the batch continues.
func (s *Sequencer) Run() (*batch.Report, error) {
	report := batch.NewReport("outreach")

	contacts, err := s.store.ListSequencingCandidates()
	if err != nil {
		return nil, fmt.Errorf("outreach cycle aborted: %w", err)
	}

	for _, contact := range contacts {
		company, err := s.store.GetCompany(contact.CompanyID)
		if err != nil {
			report.Fail(contact.ID, err)
			continue
		}
		changed, err := s.ProcessContact(contact, company)
		if err != nil {
			report.Fail(contact.ID, err)
			continue
		}
		report.Ok(contact.ID, changed)
	}

	report.Log()
	return report, nil
}

// ProcessContact decides the next action for one contact. The rules run in
// strict priority order; earlier rules preempt later ones.
func (s *Sequencer) ProcessContact(contact *models.Contact, company *models.Company) (bool, error) {
	// 1. Suppression gate: checked before anything else, every cycle. The
	// opt_out status is more specific than suppressed and is preserved.
	if contact.Email != "" {
		suppressed, err := s.gate.IsSuppressed(contact.Email)
		if err != nil {
			return false, err
		}
		if suppressed {
			if contact.OutreachStatus == models.ContactOptOut ||
				contact.OutreachStatus == models.ContactSuppressed {
				return false, nil
			}
			contact.OutreachStatus = models.ContactSuppressed
			if err := s.store.UpdateContact(contact); err != nil {
				return false, err
			}
			metrics.SuppressionBlocks.Inc()
			logger.Info("Contact suppressed, sequence stopped", zap.String("contact", contact.ID))
			return true, nil
		}
	}

	last, err := s.currentOutreach(contact)
	if err != nil {
		return false, err
	}

	// 2. Reply detected: a generic "replied" never overwrites a more
	// specific classification.
	if last != nil && last.Status == models.OutreachReplied {
		if models.ClassifiedContactStatuses[contact.OutreachStatus] {
			return false, nil
		}
		contact.OutreachStatus = models.ContactReplied
		if err := s.store.UpdateContact(contact); err != nil {
			return false, err
		}
		logger.Info("Contact replied, sequence stopped", zap.String("contact", contact.ID))
		return true, nil
	}

	switch contact.OutreachStatus {
	case models.ContactPending:
		// 3. A contact without an email cannot start.
		if contact.Email == "" {
			return false, nil
		}
		contact.OutreachStatus = models.ContactActive
		return true, s.generateDraft(contact, company, 1)

	case models.ContactActive:
		// 4. Active with no outreach on record: recover by restarting
		// at stage 1.
		if last == nil {
			return true, s.generateDraft(contact, company, 1)
		}

		// 5. A non-terminal attempt is outstanding: wait for the transport.
		if models.OutreachNonTerminal(last.Status) {
			return false, nil
		}

		// 6. Transport failure ends the sequence.
		if last.Status == models.OutreachFailed || last.Status == models.OutreachBounced {
			contact.OutreachStatus = models.ContactBounced
			if err := s.store.UpdateContact(contact); err != nil {
				return false, err
			}
			logger.Warn("Outreach failed, sequence stopped", zap.String("contact", contact.ID))
			return true, nil
		}

		// 7. Sent: advance once the inter-stage gap has elapsed.
		if last.Status == models.OutreachSent {
			if last.SentAt == nil {
				now := s.Now().UTC()
				last.SentAt = &now
				if err := s.store.UpdateOutreach(last); err != nil {
					return false, err
				}
				return false, nil
			}
			if s.Now().UTC().Sub(*last.SentAt) < s.Gap {
				return false, nil
			}
			nextStage := last.Stage + 1
			logger.Info("Advancing sequence",
				zap.String("contact", contact.ID),
				zap.Int("stage", nextStage),
			)
			return true, s.generateDraft(contact, company, nextStage)
		}
	}

	return false, nil
}

func (s *Sequencer) currentOutreach(contact *models.Contact) (*models.Outreach, error) {
	if contact.CurrentOutreachID == "" {
		return nil, nil
	}
	return s.store.GetOutreach(contact.CurrentOutreachID)
}

// generateDraft creates the draft for a stage and advances the contact in
// one transaction. Callers guarantee no non-terminal attempt exists and the
// contact is not suppressed.
func (s *Sequencer) generateDraft(contact *models.Contact, company *models.Company, stage int) error {
	ctx := company.Metadata.Context
	if ctx == nil {
		ctx = s.contexts.Build(company)
	}

	template := ForStage(stage, ctx)
	if template == nil {
		contact.OutreachStatus = models.ContactCompleted
		if err := s.store.UpdateContact(contact); err != nil {
			return err
		}
		logger.Info("Sequence completed", zap.String("contact", contact.ID), zap.Int("stage", stage))
		return nil
	}

	draft := template.Render(RenderInput{
		Contact:     contact,
		CompanyName: company.Name,
		Context:     ctx,
		SenderName:  s.SenderName,
		ProductName: s.ProductName,
	})

	o := &models.Outreach{
		ID:         uuid.NewString(),
		ContactID:  contact.ID,
		TemplateID: template.ID,
		Stage:      stage,
		Status:     models.OutreachDraft,
		Subject:    draft.Subject,
		Body:       draft.Body,
		CreatedAt:  s.Now().UTC(),
	}

	contact.OutreachStage = stage
	contact.OutreachStatus = models.ContactActive
	if err := s.store.CreateDraft(contact, o); err != nil {
		return err
	}

	metrics.DraftsCreated.WithLabelValues(strconv.Itoa(stage)).Inc()
	logger.Info("Draft generated",
		zap.String("contact", contact.ID),
		zap.Int("stage", stage),
		zap.String("template", template.ID),
	)
	return nil
}
