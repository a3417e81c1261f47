package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/kwstx/email-agent/internal/storage/models"
)

const outreachColumns = `id, contact_id, template_id, stage, status,
	subject, body, sent_at, reply_received_at, created_at`

func scanOutreach(row interface{ Scan(...any) error }) (*models.Outreach, error) {
	var o models.Outreach
	var subject, body sql.NullString
	var sentAt, replyAt sql.NullInt64
	var createdAt int64

	err := row.Scan(
		&o.ID, &o.ContactID, &o.TemplateID, &o.Stage, &o.Status,
		&subject, &body, &sentAt, &replyAt, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	o.Subject = subject.String
	o.Body = body.String
	o.CreatedAt = time.Unix(createdAt, 0).UTC()
	if sentAt.Valid {
		t := time.Unix(sentAt.Int64, 0).UTC()
		o.SentAt = &t
	}
	if replyAt.Valid {
		t := time.Unix(replyAt.Int64, 0).UTC()
		o.ReplyReceivedAt = &t
	}
	return &o, nil
}

func (s *Store) GetOutreach(id string) (*models.Outreach, error) {
	row := s.db.QueryRow(`SELECT `+outreachColumns+` FROM outreach WHERE id = ?`, id)
	o, err := scanOutreach(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get outreach %s: %w", id, err)
	}
	return o, nil
}

// CreateDraft inserts a new outreach draft and repoints the contact at it in
// one transaction, so the contact/outreach pair can never diverge.
func (s *Store) CreateDraft(contact *models.Contact, o *models.Outreach) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO outreach (id, contact_id, template_id, stage, status,
			subject, body, sent_at, reply_received_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.ContactID, o.TemplateID, o.Stage, o.Status,
		o.Subject, o.Body, timePtrToUnix(o.SentAt), timePtrToUnix(o.ReplyReceivedAt),
		o.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert outreach draft: %w", err)
	}

	_, err = tx.Exec(`
		UPDATE contacts SET
			outreach_stage = ?,
			outreach_status = ?,
			current_outreach_id = ?
		WHERE id = ?`,
		contact.OutreachStage, contact.OutreachStatus, o.ID, contact.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to repoint contact at draft: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit draft: %w", err)
	}

	contact.CurrentOutreachID = o.ID
	return nil
}

func (s *Store) UpdateOutreach(o *models.Outreach) error {
	_, err := s.db.Exec(`
		UPDATE outreach SET
			status = ?,
			sent_at = ?,
			reply_received_at = ?
		WHERE id = ?`,
		o.Status, timePtrToUnix(o.SentAt), timePtrToUnix(o.ReplyReceivedAt), o.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update outreach: %w", err)
	}
	return nil
}

// MarkReplied flips the contact's current outreach to replied and records the
// Reply row in one transaction.
func (s *Store) MarkReplied(contact *models.Contact, reply *models.Reply) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO replies (id, contact_id, classification, subject, content, received_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		reply.ID, reply.ContactID, reply.Classification, reply.Subject, reply.Content,
		reply.ReceivedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert reply: %w", err)
	}

	if contact.CurrentOutreachID != "" {
		_, err = tx.Exec(`
			UPDATE outreach SET status = ?, reply_received_at = ? WHERE id = ?`,
			models.OutreachReplied, reply.ReceivedAt.Unix(), contact.CurrentOutreachID,
		)
		if err != nil {
			return fmt.Errorf("failed to mark outreach replied: %w", err)
		}
	}

	_, err = tx.Exec(`UPDATE contacts SET outreach_status = ? WHERE id = ?`,
		contact.OutreachStatus, contact.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update contact status: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reply: %w", err)
	}
	return nil
}
