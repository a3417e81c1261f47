// Package sqlite is the persistence layer for the prospecting pipeline.
// All entity writes are transactional per processed entity so that a crash
// mid-batch never leaves a half-written Outreach/Contact pair.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/kwstx/email-agent/pkg/logger"
)

type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err = db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err = db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite store opened", zap.String("path", dbPath))

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS companies (
		id TEXT PRIMARY KEY,
		domain TEXT UNIQUE NOT NULL,
		name TEXT,
		industry TEXT,
		content TEXT,
		content_hash TEXT,
		is_scraped INTEGER NOT NULL DEFAULT 0,
		is_scored INTEGER NOT NULL DEFAULT 0,
		score INTEGER NOT NULL DEFAULT 0,
		tier TEXT NOT NULL DEFAULT 'unscored',
		maturity TEXT NOT NULL DEFAULT 'unknown',
		last_scored_at INTEGER,
		scored_model_hash TEXT,
		metadata TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_companies_tier ON companies(tier);
	CREATE INDEX IF NOT EXISTS idx_companies_scored ON companies(is_scored);

	CREATE TABLE IF NOT EXISTS company_signals (
		company_id TEXT NOT NULL,
		signal_key TEXT NOT NULL,
		category TEXT NOT NULL,
		intensity REAL NOT NULL DEFAULT 0,
		occurrences INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (company_id, signal_key),
		FOREIGN KEY (company_id) REFERENCES companies(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_company_signals_key ON company_signals(signal_key);

	CREATE TABLE IF NOT EXISTS contacts (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		name TEXT NOT NULL,
		title TEXT,
		email TEXT,
		is_verified INTEGER NOT NULL DEFAULT 0,
		outreach_stage INTEGER NOT NULL DEFAULT 0,
		outreach_status TEXT NOT NULL DEFAULT 'pending',
		current_outreach_id TEXT,
		last_sent_at INTEGER,
		FOREIGN KEY (company_id) REFERENCES companies(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_contacts_company ON contacts(company_id);
	CREATE INDEX IF NOT EXISTS idx_contacts_email ON contacts(email);
	CREATE INDEX IF NOT EXISTS idx_contacts_status ON contacts(outreach_status);

	CREATE TABLE IF NOT EXISTS outreach (
		id TEXT PRIMARY KEY,
		contact_id TEXT NOT NULL,
		template_id TEXT NOT NULL,
		stage INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'draft',
		subject TEXT,
		body TEXT,
		sent_at INTEGER,
		reply_received_at INTEGER,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (contact_id) REFERENCES contacts(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_outreach_contact ON outreach(contact_id);
	CREATE INDEX IF NOT EXISTS idx_outreach_status ON outreach(status);

	CREATE TABLE IF NOT EXISTS replies (
		id TEXT PRIMARY KEY,
		contact_id TEXT NOT NULL,
		classification TEXT NOT NULL,
		subject TEXT,
		content TEXT,
		received_at INTEGER NOT NULL,
		FOREIGN KEY (contact_id) REFERENCES contacts(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_replies_contact ON replies(contact_id);
	CREATE INDEX IF NOT EXISTS idx_replies_classification ON replies(classification);

	CREATE TABLE IF NOT EXISTS suppression_list (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		value TEXT NOT NULL,
		reason TEXT,
		created_at INTEGER NOT NULL,
		UNIQUE (type, value)
	);

	CREATE TABLE IF NOT EXISTS task_log (
		id TEXT PRIMARY KEY,
		job TEXT NOT NULL,
		status TEXT NOT NULL,
		message TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_task_log_job ON task_log(job);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}
