package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/ojtools/ojsync/internal/models"
	"github.com/ojtools/ojsync/internal/shared"
)

// SubmissionRepository persists fetched submissions.
//
// Inserts use OR IGNORE keyed on the identity triple: duplicates from
// overlapping fetch windows are a normal outcome, never an error.
type SubmissionRepository struct {
	db *sql.DB
}

// NewSubmissionRepository creates a new SubmissionRepository with the given database connection
func NewSubmissionRepository(db *sql.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

const submissionColumns = "judge, problem_id, submission_id, title, status, language, code, submit_time, tags, stats"

// InsertIgnore inserts the given submissions in one transaction and
// returns how many rows were actually new. Rows are written in ascending
// (submit_time, submission_id) order so an interrupted transaction never
// leaves a gap below the stored maximum.
func (r *SubmissionRepository) InsertIgnore(subs []models.Submission) (int, error) {
	if len(subs) == 0 {
		return 0, nil
	}

	sorted := make([]models.Submission, len(subs))
	copy(sorted, subs)
	sort.Slice(sorted, func(i, j int) bool { return models.Less(sorted[i], sorted[j]) })

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("%w: begin insert: %v", shared.ErrStorage, err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(fmt.Sprintf(`
		INSERT OR IGNORE INTO submissions (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, submissionColumns))
	if err != nil {
		return 0, fmt.Errorf("%w: prepare insert: %v", shared.ErrStorage, err)
	}
	defer stmt.Close()

	inserted := 0
	for _, sub := range sorted {
		if err := sub.Validate(); err != nil {
			return inserted, fmt.Errorf("validation failed: %w", err)
		}

		tags, err := json.Marshal(sub.Tags)
		if err != nil {
			return inserted, fmt.Errorf("%w: encode tags: %v", shared.ErrStorage, err)
		}

		res, err := stmt.Exec(
			sub.Judge,
			sub.ProblemID,
			sub.SubmissionID,
			sub.Title,
			string(sub.Status),
			sub.Language,
			sub.Code,
			sub.SubmitTime.UTC(),
			string(tags),
			sub.Stats,
		)
		if err != nil {
			return inserted, fmt.Errorf("%w: insert submission %s: %v", shared.ErrStorage, sub.Key(), err)
		}

		rows, err := res.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("%w: affected rows: %v", shared.ErrStorage, err)
		}
		inserted += int(rows)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit insert: %v", shared.ErrStorage, err)
	}

	return inserted, nil
}

// PendingForDestination returns accepted submissions with no upload record
// for the destination, ascending by (submit_time, submission_id).
//
// The ordering is load-bearing: it makes an interrupted upload pass
// resumable as a contiguous prefix plus a pending suffix.
func (r *SubmissionRepository) PendingForDestination(destination string) ([]models.Submission, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM submissions s
		WHERE s.status = ?
		  AND NOT EXISTS (
			SELECT 1 FROM uploads u
			WHERE u.judge = s.judge
			  AND u.problem_id = s.problem_id
			  AND u.submission_id = s.submission_id
			  AND u.destination = ?
		  )
		ORDER BY s.submit_time ASC, s.submission_id ASC
	`, submissionColumns)

	return r.query(query, string(models.StatusAccepted), destination)
}

// List retrieves stored submissions matching the given criteria, ascending
// by (submit_time, submission_id). Recognized criteria: "judge", "status".
func (r *SubmissionRepository) List(criteria map[string]any) ([]models.Submission, error) {
	query := fmt.Sprintf("SELECT %s FROM submissions s WHERE 1=1", submissionColumns)
	args := []any{}

	if judge, ok := criteria["judge"].(string); ok && judge != "" {
		query += " AND s.judge = ?"
		args = append(args, judge)
	}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND s.status = ?"
		args = append(args, status)
	}

	query += " ORDER BY s.submit_time ASC, s.submission_id ASC"

	return r.query(query, args...)
}

func (r *SubmissionRepository) query(query string, args ...any) ([]models.Submission, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query submissions: %v", shared.ErrStorage, err)
	}
	defer rows.Close()

	var subs []models.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: row iteration: %v", shared.ErrStorage, err)
	}

	return subs, nil
}

func scanSubmission(rows *sql.Rows) (models.Submission, error) {
	var (
		sub        models.Submission
		status     string
		submitTime time.Time
		tags       string
	)

	err := rows.Scan(
		&sub.Judge,
		&sub.ProblemID,
		&sub.SubmissionID,
		&sub.Title,
		&status,
		&sub.Language,
		&sub.Code,
		&submitTime,
		&tags,
		&sub.Stats,
	)
	if err != nil {
		return models.Submission{}, fmt.Errorf("%w: scan submission: %v", shared.ErrStorage, err)
	}

	sub.Status = models.Status(status)
	sub.SubmitTime = submitTime

	if err := json.Unmarshal([]byte(tags), &sub.Tags); err != nil {
		return models.Submission{}, fmt.Errorf("%w: decode tags: %v", shared.ErrStorage, err)
	}

	return sub, nil
}
