package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/kwstx/email-agent/internal/storage/models"
)

func (s *Store) FindSuppression(entryType, value string) (*models.SuppressionEntry, error) {
	row := s.db.QueryRow(`
		SELECT id, type, value, reason, created_at FROM suppression_list
		WHERE type = ? AND value = ?`, entryType, value)

	var e models.SuppressionEntry
	var reason sql.NullString
	var createdAt int64

	err := row.Scan(&e.ID, &e.Type, &e.Value, &reason, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up suppression: %w", err)
	}

	e.Reason = reason.String
	e.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &e, nil
}

func (s *Store) InsertSuppression(e *models.SuppressionEntry) error {
	_, err := s.db.Exec(`
		INSERT INTO suppression_list (id, type, value, reason, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Type, e.Value, e.Reason, e.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert suppression entry: %w", err)
	}
	return nil
}

func (s *Store) DeleteSuppression(entryType, value string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM suppression_list WHERE type = ? AND value = ?`, entryType, value)
	if err != nil {
		return false, fmt.Errorf("failed to delete suppression entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *Store) ListSuppressions() ([]*models.SuppressionEntry, error) {
	rows, err := s.db.Query(`SELECT id, type, value, reason, created_at FROM suppression_list ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list suppressions: %w", err)
	}
	defer rows.Close()

	var entries []*models.SuppressionEntry
	for rows.Next() {
		var e models.SuppressionEntry
		var reason sql.NullString
		var createdAt int64

		if err := rows.Scan(&e.ID, &e.Type, &e.Value, &reason, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan suppression row: %w", err)
		}
		e.Reason = reason.String
		e.CreatedAt = time.Unix(createdAt, 0).UTC()
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
