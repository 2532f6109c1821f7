package repositories

import (
	"database/sql"
	"fmt"

	"github.com/ojtools/ojsync/internal/models"
	"github.com/ojtools/ojsync/internal/shared"
)

// Store is the record store the sync engine works against: the single
// source of truth for what was fetched and what was delivered where.
type Store struct {
	db          *sql.DB
	submissions *SubmissionRepository
	uploads     *UploadRepository
	watermarks  *WatermarkRepository
	logins      *LoginRepository
}

// NewStore creates a Store over an open database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:          db,
		submissions: NewSubmissionRepository(db),
		uploads:     NewUploadRepository(db),
		watermarks:  NewWatermarkRepository(db),
		logins:      NewLoginRepository(db),
	}
}

// Watermark returns the fetch boundary for a judge, nil when the judge
// has never been synced.
func (s *Store) Watermark(judge string) (*models.Watermark, error) {
	return s.watermarks.Get(judge)
}

// StoreSubmissions persists fetched submissions with insert-or-ignore
// semantics and advances the judge's watermark to the newest of them.
// The returned count is the number of rows that were actually new.
func (s *Store) StoreSubmissions(judge string, subs []models.Submission) (int, error) {
	inserted, err := s.submissions.InsertIgnore(subs)
	if err != nil {
		return inserted, err
	}

	if len(subs) == 0 {
		return inserted, nil
	}

	// The watermark advances over everything fetched, inserted or not:
	// a duplicate still proves the fetch window reached that point.
	var w models.Watermark
	for _, sub := range subs {
		w = w.Advance(sub)
	}

	if err := s.watermarks.Advance(judge, w); err != nil {
		return inserted, err
	}

	return inserted, nil
}

// PendingForDestination lists accepted submissions not yet uploaded to the
// destination, in (submit_time, submission_id) order.
func (s *Store) PendingForDestination(destination string) ([]models.Submission, error) {
	return s.submissions.PendingForDestination(destination)
}

// RecordUpload writes the proof-of-delivery row for (key, destination).
// Returns [shared.ErrDuplicateUpload] when the pair already has one.
func (s *Store) RecordUpload(key models.SubmissionKey, destination, externalCardID string) error {
	return s.uploads.Record(key, destination, externalCardID)
}

// Submissions lists stored submissions for inspection and export.
func (s *Store) Submissions(criteria map[string]any) ([]models.Submission, error) {
	return s.submissions.List(criteria)
}

// Uploads lists delivery records for one destination.
func (s *Store) Uploads(destination string) ([]models.UploadRecord, error) {
	return s.uploads.ListForDestination(destination)
}

// SaveToken caches a destination token.
func (s *Store) SaveToken(service, token string) error {
	return s.logins.Save(service, token)
}

// Token returns a cached destination token, empty when absent.
func (s *Store) Token(service string) (string, error) {
	return s.logins.Token(service)
}

// Reset clears all submissions, upload records, watermarks, and cached
// logins in one transaction, forcing a full re-sync on the next run.
func (s *Store) Reset() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin reset: %v", shared.ErrStorage, err)
	}
	defer tx.Rollback()

	for _, table := range []string{"uploads", "watermarks", "logins", "submissions"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("%w: reset %s: %v", shared.ErrStorage, table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit reset: %v", shared.ErrStorage, err)
	}

	return nil
}
