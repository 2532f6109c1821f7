package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/ojtools/ojsync/internal/models"
	"github.com/ojtools/ojsync/internal/shared"
)

// UploadRepository persists proof-of-delivery records.
//
// The schema's unique (judge, problem_id, submission_id, destination)
// constraint is the at-most-once guarantee; a violation surfaces as
// [shared.ErrDuplicateUpload], which callers treat as a no-op.
type UploadRepository struct {
	db *sql.DB
}

// NewUploadRepository creates a new UploadRepository with the given database connection
func NewUploadRepository(db *sql.DB) *UploadRepository {
	return &UploadRepository{db: db}
}

// Record inserts an upload record for the (key, destination) pair.
func (r *UploadRepository) Record(key models.SubmissionKey, destination, externalCardID string) error {
	if err := key.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO uploads (id, judge, problem_id, submission_id, destination, external_card_id, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		shared.GenerateID(),
		key.Judge,
		key.ProblemID,
		key.SubmissionID,
		destination,
		externalCardID,
		time.Now().UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s to %s", shared.ErrDuplicateUpload, key, destination)
		}
		return fmt.Errorf("%w: record upload %s: %v", shared.ErrStorage, key, err)
	}

	return nil
}

// ListForDestination retrieves all upload records for one destination,
// ascending by upload time.
func (r *UploadRepository) ListForDestination(destination string) ([]models.UploadRecord, error) {
	query := `
		SELECT judge, problem_id, submission_id, destination, external_card_id, uploaded_at
		FROM uploads
		WHERE destination = ?
		ORDER BY uploaded_at ASC
	`

	rows, err := r.db.Query(query, destination)
	if err != nil {
		return nil, fmt.Errorf("%w: query uploads: %v", shared.ErrStorage, err)
	}
	defer rows.Close()

	var records []models.UploadRecord
	for rows.Next() {
		var rec models.UploadRecord
		err := rows.Scan(
			&rec.Key.Judge,
			&rec.Key.ProblemID,
			&rec.Key.SubmissionID,
			&rec.Destination,
			&rec.ExternalCardID,
			&rec.UploadedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: scan upload: %v", shared.ErrStorage, err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: row iteration: %v", shared.ErrStorage, err)
	}

	return records, nil
}

// isUniqueViolation reports whether err is a SQLite unique-constraint
// failure (as opposed to any other storage error).
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
