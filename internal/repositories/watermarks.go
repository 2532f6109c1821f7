package repositories

import (
	"database/sql"
	"fmt"

	"github.com/ojtools/ojsync/internal/models"
	"github.com/ojtools/ojsync/internal/shared"
)

// WatermarkRepository persists the per-judge fetch boundary.
//
// Advancement is conditional inside the upsert itself, so the watermark
// never regresses even when two runs race on the same database.
type WatermarkRepository struct {
	db *sql.DB
}

// NewWatermarkRepository creates a new WatermarkRepository with the given database connection
func NewWatermarkRepository(db *sql.DB) *WatermarkRepository {
	return &WatermarkRepository{db: db}
}

// Get retrieves the watermark for a judge, nil if the judge has never been synced.
func (r *WatermarkRepository) Get(judge string) (*models.Watermark, error) {
	query := `SELECT submit_time, submission_id FROM watermarks WHERE judge = ?`

	var w models.Watermark
	err := r.db.QueryRow(query, judge).Scan(&w.SubmitTime, &w.SubmissionID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: query watermark for %s: %v", shared.ErrStorage, judge, err)
	}

	return &w, nil
}

// Advance moves the judge's watermark forward to w if w is newer than the
// stored value; an older w leaves the row untouched.
func (r *WatermarkRepository) Advance(judge string, w models.Watermark) error {
	query := `
		INSERT INTO watermarks (judge, submit_time, submission_id)
		VALUES (?, ?, ?)
		ON CONFLICT (judge) DO UPDATE SET
			submit_time = excluded.submit_time,
			submission_id = excluded.submission_id
		WHERE excluded.submit_time > watermarks.submit_time
		   OR (excluded.submit_time = watermarks.submit_time
		       AND excluded.submission_id > watermarks.submission_id)
	`

	if _, err := r.db.Exec(query, judge, w.SubmitTime.UTC(), w.SubmissionID); err != nil {
		return fmt.Errorf("%w: advance watermark for %s: %v", shared.ErrStorage, judge, err)
	}

	return nil
}
