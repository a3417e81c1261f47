package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/kwstx/email-agent/internal/storage/models"
)

const contactColumns = `id, company_id, name, title, email, is_verified,
	outreach_stage, outreach_status, current_outreach_id, last_sent_at`

func scanContact(row interface{ Scan(...any) error }) (*models.Contact, error) {
	var c models.Contact
	var title, email, currentOutreach sql.NullString
	var isVerified int
	var lastSent sql.NullInt64

	err := row.Scan(
		&c.ID, &c.CompanyID, &c.Name, &title, &email, &isVerified,
		&c.OutreachStage, &c.OutreachStatus, &currentOutreach, &lastSent,
	)
	if err != nil {
		return nil, err
	}

	c.Title = title.String
	c.Email = email.String
	c.CurrentOutreachID = currentOutreach.String
	c.IsVerified = isVerified == 1
	if lastSent.Valid {
		t := time.Unix(lastSent.Int64, 0).UTC()
		c.LastSentAt = &t
	}
	return &c, nil
}

func (s *Store) InsertContact(c *models.Contact) error {
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	_, err := s.db.Exec(`
		INSERT INTO contacts (id, company_id, name, title, email, is_verified,
			outreach_stage, outreach_status, current_outreach_id, last_sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.CompanyID, c.Name, c.Title, nullIfEmpty(c.Email), boolToInt(c.IsVerified),
		c.OutreachStage, c.OutreachStatus, nullIfEmpty(c.CurrentOutreachID), timePtrToUnix(c.LastSentAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert contact: %w", err)
	}
	return nil
}

func (s *Store) GetContact(id string) (*models.Contact, error) {
	row := s.db.QueryRow(`SELECT `+contactColumns+` FROM contacts WHERE id = ?`, id)
	c, err := scanContact(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get contact %s: %w", id, err)
	}
	return c, nil
}

func (s *Store) GetContactByEmail(email string) (*models.Contact, error) {
	row := s.db.QueryRow(`SELECT `+contactColumns+` FROM contacts WHERE email = ?`, email)
	c, err := scanContact(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact by email: %w", err)
	}
	return c, nil
}

// ListContactsByStatus returns all contacts with the given outreach status.
func (s *Store) ListContactsByStatus(status string) ([]*models.Contact, error) {
	return s.listContacts(`SELECT `+contactColumns+` FROM contacts WHERE outreach_status = ?`, status)
}

// ListSequencingCandidates returns contacts of scored companies whose status
// is not terminal. Terminal contacts are excluded from sequencing forever.
func (s *Store) ListSequencingCandidates() ([]*models.Contact, error) {
	return s.listContacts(`
		SELECT ` + contactColumns + ` FROM contacts
		WHERE company_id IN (SELECT id FROM companies WHERE is_scored = 1)
		AND outreach_status IN ('pending', 'active')`)
}

func (s *Store) listContacts(query string, args ...any) ([]*models.Contact, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer rows.Close()

	var contacts []*models.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact row: %w", err)
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func (s *Store) UpdateContact(c *models.Contact) error {
	_, err := s.db.Exec(`
		UPDATE contacts SET
			email = ?,
			is_verified = ?,
			outreach_stage = ?,
			outreach_status = ?,
			current_outreach_id = ?,
			last_sent_at = ?
		WHERE id = ?`,
		nullIfEmpty(c.Email), boolToInt(c.IsVerified),
		c.OutreachStage, c.OutreachStatus, nullIfEmpty(c.CurrentOutreachID),
		timePtrToUnix(c.LastSentAt), c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update contact: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
