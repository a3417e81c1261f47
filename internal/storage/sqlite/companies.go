package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kwstx/email-agent/internal/storage/models"
	"github.com/kwstx/email-agent/pkg/logger"
)

const companyColumns = `id, domain, name, industry, content, content_hash,
	is_scraped, is_scored, score, tier, maturity,
	last_scored_at, scored_model_hash, metadata`

func scanCompany(row interface{ Scan(...any) error }) (*models.Company, error) {
	var c models.Company
	var name, industry, content, contentHash, modelHash, metadata sql.NullString
	var isScraped, isScored int
	var lastScored sql.NullInt64

	err := row.Scan(
		&c.ID, &c.Domain, &name, &industry, &content, &contentHash,
		&isScraped, &isScored, &c.Score, &c.Tier, &c.Maturity,
		&lastScored, &modelHash, &metadata,
	)
	if err != nil {
		return nil, err
	}

	c.Name = name.String
	c.Industry = industry.String
	c.Content = content.String
	c.ContentHash = contentHash.String
	c.ScoredModelHash = modelHash.String
	c.IsScraped = isScraped == 1
	c.IsScored = isScored == 1
	if lastScored.Valid {
		t := time.Unix(lastScored.Int64, 0).UTC()
		c.LastScoredAt = &t
	}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &c.Metadata); err != nil {
			return nil, fmt.Errorf("malformed company metadata for %s: %w", c.Domain, err)
		}
	}
	return &c, nil
}

func (s *Store) UpsertCompany(c *models.Company) error {
	metadata, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO companies (id, domain, name, industry, content, content_hash,
			is_scraped, is_scored, score, tier, maturity, last_scored_at, scored_model_hash, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(domain) DO UPDATE SET
			name = excluded.name,
			industry = excluded.industry,
			content = excluded.content,
			content_hash = excluded.content_hash,
			is_scraped = excluded.is_scraped
	`

	_, err = s.db.Exec(query,
		c.ID, c.Domain, c.Name, c.Industry, c.Content, c.ContentHash,
		boolToInt(c.IsScraped), boolToInt(c.IsScored), c.Score, c.Tier, c.Maturity,
		timePtrToUnix(c.LastScoredAt), c.ScoredModelHash, string(metadata),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert company: %w", err)
	}

	logger.Debug("Company upserted", zap.String("domain", c.Domain))
	return nil
}

func (s *Store) GetCompany(id string) (*models.Company, error) {
	row := s.db.QueryRow(`SELECT `+companyColumns+` FROM companies WHERE id = ?`, id)
	c, err := scanCompany(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get company %s: %w", id, err)
	}
	return c, nil
}

func (s *Store) GetCompanyByDomain(domain string) (*models.Company, error) {
	row := s.db.QueryRow(`SELECT `+companyColumns+` FROM companies WHERE domain = ?`, domain)
	c, err := scanCompany(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get company %s: %w", domain, err)
	}
	return c, nil
}

// ListUnscrapedCompanies returns companies that have never been crawled.
func (s *Store) ListUnscrapedCompanies() ([]*models.Company, error) {
	return s.listCompanies(`SELECT ` + companyColumns + ` FROM companies WHERE is_scraped = 0`)
}

// ListUnscoredCompanies returns scraped companies that have never been scored.
func (s *Store) ListUnscoredCompanies() ([]*models.Company, error) {
	return s.listCompanies(`SELECT ` + companyColumns + ` FROM companies WHERE is_scraped = 1 AND is_scored = 0`)
}

// ListScrapedCompanies returns every company with content, scored or not.
// The rescorer filters these by staleness and model version.
func (s *Store) ListScrapedCompanies() ([]*models.Company, error) {
	return s.listCompanies(`SELECT ` + companyColumns + ` FROM companies WHERE is_scraped = 1`)
}

func (s *Store) listCompanies(query string, args ...any) ([]*models.Company, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	defer rows.Close()

	var companies []*models.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan company row: %w", err)
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

// SaveScoringResult persists a company's new score, tier, maturity, metadata
// and signal links in a single transaction.
func (s *Store) SaveScoringResult(c *models.Company) error {
	metadata, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		UPDATE companies SET
			is_scored = 1,
			score = ?,
			tier = ?,
			maturity = ?,
			content_hash = ?,
			last_scored_at = ?,
			scored_model_hash = ?,
			metadata = ?
		WHERE id = ?`,
		c.Score, c.Tier, c.Maturity, c.ContentHash,
		timePtrToUnix(c.LastScoredAt), c.ScoredModelHash, string(metadata), c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update company scoring: %w", err)
	}

	if _, err = tx.Exec(`DELETE FROM company_signals WHERE company_id = ?`, c.ID); err != nil {
		return fmt.Errorf("failed to clear signal links: %w", err)
	}

	for key, match := range c.Metadata.Scoring {
		_, err = tx.Exec(`
			INSERT INTO company_signals (company_id, signal_key, category, intensity, occurrences)
			VALUES (?, ?, ?, ?, ?)`,
			c.ID, key, match.Category, match.Intensity, match.Count,
		)
		if err != nil {
			return fmt.Errorf("failed to insert signal link %s: %w", key, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit scoring result: %w", err)
	}

	return nil
}

// SaveContent persists a freshly built content profile. The content hash is
// owned by the scorer and is deliberately left alone so a refreshed corpus
// triggers a rescore.
func (s *Store) SaveContent(c *models.Company) error {
	_, err := s.db.Exec(`UPDATE companies SET content = ?, is_scraped = ? WHERE id = ?`,
		c.Content, boolToInt(c.IsScraped), c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to save company content: %w", err)
	}
	return nil
}

// SaveCompanyMetadata persists only the metadata record. Used by enrichers
// (risk, narrative context) that own their namespace within it.
func (s *Store) SaveCompanyMetadata(c *models.Company) error {
	metadata, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = s.db.Exec(`UPDATE companies SET metadata = ? WHERE id = ?`, string(metadata), c.ID)
	if err != nil {
		return fmt.Errorf("failed to save company metadata: %w", err)
	}
	return nil
}

// SaveEnrichment persists the risk enricher's output: the metadata record
// plus the industry backfill derived from it.
func (s *Store) SaveEnrichment(c *models.Company) error {
	metadata, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = s.db.Exec(`UPDATE companies SET industry = ?, metadata = ? WHERE id = ?`,
		c.Industry, string(metadata), c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to save company enrichment: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func timePtrToUnix(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}
