package inbox

import (
	"context"
	"strings"
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

// InboundMessage is one reply pulled from the mailbox, already reduced to the
// fields the processor cares about.
type InboundMessage struct {
	From       string    `json:"from"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
}

// Processor matches inbound replies to contacts and routes each contact into
// the status its classification demands.
type Processor struct {
	store      *sqlite.Store
	gate       *compliance.Gate
	classifier *Classifier
	Now        func() time.Time
}

func NewProcessor(store *sqlite.Store, gate *compliance.Gate, classifier *Classifier) *Processor {
	return &Processor{
		store:      store,
		gate:       gate,
		classifier: classifier,
		Now:        time.Now,
	}
}

// Process handles a batch of inbound messages. Messages from senders with no
// contact on record are skipped, not failed.
func (p *Processor) Process(ctx context.Context, messages []InboundMessage) (*batch.Report, error) {
	report := batch.NewReport("inbox")

	for _, msg := range messages {
		// Mailboxes preserve whatever casing the sender's client used;
		// contacts are stored lowercased.
		from := strings.ToLower(strings.TrimSpace(msg.From))

		contact, err := p.store.GetContactByEmail(from)
		if err != nil {
			report.Fail(from, err)
			continue
		}
		if contact == nil {
			logger.Warn("Ignored reply from unknown sender", zap.String("from", from))
			continue
		}

		if err := p.processReply(ctx, contact, msg); err != nil {
			report.Fail(contact.ID, err)
			continue
		}
		report.Ok(contact.ID, true)
	}

	report.Log()
	return report, nil
}

func (p *Processor) processReply(ctx context.Context, contact *models.Contact, msg InboundMessage) error {
	classification := p.classifier.Classify(ctx, msg.Subject, msg.Body)
	metrics.RepliesProcessed.WithLabelValues(classification).Inc()
	logger.Info("Reply classified",
		zap.String("contact", contact.ID),
		zap.String("classification", classification),
	)

	receivedAt := msg.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = p.Now().UTC()
	}

	reply := &models.Reply{
		ID:             uuid.NewString(),
		ContactID:      contact.ID,
		Classification: classification,
		Subject:        msg.Subject,
		Content:        msg.Body,
		ReceivedAt:     receivedAt,
	}

	switch classification {
	case models.ReplyInterest:
		contact.OutreachStatus = models.ContactActiveLead
	case models.ReplyDeferral:
		contact.OutreachStatus = models.ContactDeferred
	case models.ReplyReferral:
		contact.OutreachStatus = models.ContactReferralNeeded
	case models.ReplyOptOut:
		contact.OutreachStatus = models.ContactOptOut
	case models.ReplyIrrelevance:
		if contact.OutreachStatus != models.ContactBounced {
			contact.OutreachStatus = models.ContactNotInterested
		}
	}

	if err := p.store.MarkReplied(contact, reply); err != nil {
		return err
	}

	if classification == models.ReplyOptOut && contact.Email != "" {
		if _, err := p.gate.Suppress(contact.Email, models.SuppressionEmail, "opt_out"); err != nil {
			return err
		}
		logger.Info("Contact opted out, added to suppression list",
			zap.String("contact", contact.ID),
		)
	}

	return nil
}
