package sqlite

import (
	"fmt"
	"time"

	"github.com/kwstx/email-agent/internal/storage/models"
)

// OutcomeCounts are the raw counters behind the outcome report. Rates are
// computed by the feedback package, never here.
type OutcomeCounts struct {
	Companies  int
	Contacts   int
	Sent       int
	Replied    int
	Interested int
	OptedOut   int
	Deferred   int
}

func (s *Store) count(query string, args ...any) (int, error) {
	var n int
	if err := s.db.QueryRow(query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count query failed: %w", err)
	}
	return n, nil
}

// GlobalOutcomeCounts aggregates outreach and reply counters across the
// whole pipeline.
func (s *Store) GlobalOutcomeCounts() (OutcomeCounts, error) {
	var c OutcomeCounts
	var err error

	if c.Sent, err = s.count(`SELECT COUNT(*) FROM outreach WHERE status = 'sent'`); err != nil {
		return c, err
	}
	if c.Replied, err = s.count(`SELECT COUNT(*) FROM outreach WHERE status = 'replied'`); err != nil {
		return c, err
	}
	if c.Interested, err = s.count(`SELECT COUNT(*) FROM replies WHERE classification = 'interest'`); err != nil {
		return c, err
	}
	if c.OptedOut, err = s.count(`SELECT COUNT(*) FROM replies WHERE classification = 'opt_out'`); err != nil {
		return c, err
	}
	if c.Deferred, err = s.count(`SELECT COUNT(*) FROM replies WHERE classification = 'deferral'`); err != nil {
		return c, err
	}
	return c, nil
}

// SignalKeys lists every signal that is linked to at least one company.
// Signals with no linked companies are omitted from outcome reports.
func (s *Store) SignalKeys() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT signal_key FROM company_signals ORDER BY signal_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list signal keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan signal key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// SignalOutcomeCounts joins a signal to its companies, their contacts, and
// the outreach/reply records of those contacts.
func (s *Store) SignalOutcomeCounts(signalKey string) (OutcomeCounts, error) {
	var c OutcomeCounts
	var err error

	const companySub = `SELECT company_id FROM company_signals WHERE signal_key = ?`
	const contactSub = `SELECT id FROM contacts WHERE company_id IN (` + companySub + `)`

	if c.Companies, err = s.count(`SELECT COUNT(DISTINCT company_id) FROM company_signals WHERE signal_key = ?`, signalKey); err != nil {
		return c, err
	}
	if c.Contacts, err = s.count(`SELECT COUNT(*) FROM contacts WHERE company_id IN (`+companySub+`)`, signalKey); err != nil {
		return c, err
	}
	if c.Sent, err = s.count(`SELECT COUNT(*) FROM outreach WHERE status = 'sent' AND contact_id IN (`+contactSub+`)`, signalKey); err != nil {
		return c, err
	}
	if c.Replied, err = s.count(`SELECT COUNT(*) FROM replies WHERE contact_id IN (`+contactSub+`)`, signalKey); err != nil {
		return c, err
	}
	if c.Interested, err = s.count(`SELECT COUNT(*) FROM replies WHERE classification = 'interest' AND contact_id IN (`+contactSub+`)`, signalKey); err != nil {
		return c, err
	}
	if c.OptedOut, err = s.count(`SELECT COUNT(*) FROM replies WHERE classification = 'opt_out' AND contact_id IN (`+contactSub+`)`, signalKey); err != nil {
		return c, err
	}
	return c, nil
}

// TierOutcomeCounts aggregates outreach outcomes for one qualification tier.
func (s *Store) TierOutcomeCounts(tier string) (OutcomeCounts, error) {
	var c OutcomeCounts
	var err error

	const companySub = `SELECT id FROM companies WHERE tier = ?`
	const contactSub = `SELECT id FROM contacts WHERE company_id IN (` + companySub + `)`

	if c.Companies, err = s.count(`SELECT COUNT(*) FROM companies WHERE tier = ?`, tier); err != nil {
		return c, err
	}
	if c.Contacts, err = s.count(`SELECT COUNT(*) FROM contacts WHERE company_id IN (`+companySub+`)`, tier); err != nil {
		return c, err
	}
	if c.Sent, err = s.count(`SELECT COUNT(*) FROM outreach WHERE status = 'sent' AND contact_id IN (`+contactSub+`)`, tier); err != nil {
		return c, err
	}
	if c.Replied, err = s.count(`SELECT COUNT(*) FROM replies WHERE contact_id IN (`+contactSub+`)`, tier); err != nil {
		return c, err
	}
	if c.Interested, err = s.count(`SELECT COUNT(*) FROM replies WHERE classification = 'interest' AND contact_id IN (`+contactSub+`)`, tier); err != nil {
		return c, err
	}
	return c, nil
}

// PipelineCounts is the raw material for the pipeline health snapshot.
type PipelineCounts struct {
	Companies        int `json:"companies"`
	Scraped          int `json:"scraped"`
	Scored           int `json:"scored"`
	HighPriority     int `json:"high_priority"`
	MediumPriority   int `json:"medium_priority"`
	Disqualified     int `json:"disqualified"`
	Contacts         int `json:"contacts"`
	VerifiedContacts int `json:"verified_contacts"`
	PendingOutreach  int `json:"pending_outreach"`
	ActiveOutreach   int `json:"active_outreach"`
	Replied          int `json:"replied"`
	ActiveLeads      int `json:"active_leads"`
	OptedOut         int `json:"opted_out"`
	EmailsSent       int `json:"emails_sent"`
	Drafts           int `json:"drafts"`
	Suppressions     int `json:"suppressions"`
}

func (s *Store) GetPipelineCounts() (PipelineCounts, error) {
	var p PipelineCounts
	var err error

	if p.Companies, err = s.count(`SELECT COUNT(*) FROM companies`); err != nil {
		return p, err
	}
	if p.Scraped, err = s.count(`SELECT COUNT(*) FROM companies WHERE is_scraped = 1`); err != nil {
		return p, err
	}
	if p.Scored, err = s.count(`SELECT COUNT(*) FROM companies WHERE is_scored = 1`); err != nil {
		return p, err
	}
	if p.HighPriority, err = s.count(`SELECT COUNT(*) FROM companies WHERE tier = ?`, models.TierHighPriority); err != nil {
		return p, err
	}
	if p.MediumPriority, err = s.count(`SELECT COUNT(*) FROM companies WHERE tier = ?`, models.TierMediumPriority); err != nil {
		return p, err
	}
	if p.Disqualified, err = s.count(`SELECT COUNT(*) FROM companies WHERE tier = ?`, models.TierDisqualified); err != nil {
		return p, err
	}
	if p.Contacts, err = s.count(`SELECT COUNT(*) FROM contacts`); err != nil {
		return p, err
	}
	if p.VerifiedContacts, err = s.count(`SELECT COUNT(*) FROM contacts WHERE is_verified = 1`); err != nil {
		return p, err
	}
	if p.PendingOutreach, err = s.count(`SELECT COUNT(*) FROM contacts WHERE outreach_status = 'pending'`); err != nil {
		return p, err
	}
	if p.ActiveOutreach, err = s.count(`SELECT COUNT(*) FROM contacts WHERE outreach_status = 'active'`); err != nil {
		return p, err
	}
	if p.Replied, err = s.count(`SELECT COUNT(*) FROM contacts WHERE outreach_status IN ('replied', 'active_lead', 'deferred', 'referral_needed')`); err != nil {
		return p, err
	}
	if p.ActiveLeads, err = s.count(`SELECT COUNT(*) FROM contacts WHERE outreach_status = 'active_lead'`); err != nil {
		return p, err
	}
	if p.OptedOut, err = s.count(`SELECT COUNT(*) FROM contacts WHERE outreach_status = 'opt_out'`); err != nil {
		return p, err
	}
	if p.EmailsSent, err = s.count(`SELECT COUNT(*) FROM outreach WHERE status = 'sent'`); err != nil {
		return p, err
	}
	if p.Drafts, err = s.count(`SELECT COUNT(*) FROM outreach WHERE status = 'draft'`); err != nil {
		return p, err
	}
	if p.Suppressions, err = s.count(`SELECT COUNT(*) FROM suppression_list`); err != nil {
		return p, err
	}
	return p, nil
}

// InsertTaskLog records the outcome of one batch invocation.
func (s *Store) InsertTaskLog(t *models.TaskLog) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO task_log (id, job, status, message, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.Job, t.Status, t.Message, t.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert task log: %w", err)
	}
	return nil
}
