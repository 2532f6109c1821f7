// package models defines the data model for the submission sync service
package models

import (
	"fmt"
	"strings"
	"time"
)

// Status is the judge verdict attached to a submission. Only accepted
// submissions survive source adapters; the constant for other verdicts
// exists so adapters can filter explicitly.
type Status string

const (
	StatusAccepted Status = "accepted"
	StatusOther    Status = "other"
)

// SubmissionKey identifies a submission globally: the triple is unique
// across all judges, and two fetches of the same triple collapse to one
// stored row.
type SubmissionKey struct {
	Judge        string
	ProblemID    string
	SubmissionID string
}

func (k SubmissionKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Judge, k.ProblemID, k.SubmissionID)
}

// Validate checks that no component of the key is empty.
func (k SubmissionKey) Validate() error {
	if k.Judge == "" || k.ProblemID == "" || k.SubmissionID == "" {
		return fmt.Errorf("incomplete submission key: %q", k.String())
	}
	return nil
}

// Submission is one solved-problem record fetched from a judge.
// Submissions are immutable after creation; only their upload status
// (derived from UploadRecord presence) changes.
type Submission struct {
	Judge        string
	ProblemID    string
	SubmissionID string
	Title        string
	Status       Status
	Language     string
	Code         string
	SubmitTime   time.Time // judge-local precision may be coarse
	Tags         []string
	Stats        string
}

// Key returns the identity triple for this submission.
func (s Submission) Key() SubmissionKey {
	return SubmissionKey{Judge: s.Judge, ProblemID: s.ProblemID, SubmissionID: s.SubmissionID}
}

// Validate checks that the submission carries its identity key and a verdict.
func (s Submission) Validate() error {
	if err := s.Key().Validate(); err != nil {
		return err
	}
	if s.Status == "" {
		return fmt.Errorf("submission %s has no status", s.Key())
	}
	return nil
}

// Accepted reports whether the judge accepted this submission.
func (s Submission) Accepted() bool {
	return s.Status == StatusAccepted
}

// Less orders submissions ascending by (SubmitTime, SubmissionID).
//
// This comparator is the processing-order contract for uploads: pending
// submissions are delivered in this order so an interrupted run leaves a
// well-defined uploaded prefix and a resumable suffix.
func Less(a, b Submission) bool {
	if !a.SubmitTime.Equal(b.SubmitTime) {
		return a.SubmitTime.Before(b.SubmitTime)
	}
	return strings.Compare(a.SubmissionID, b.SubmissionID) < 0
}

// UploadRecord proves a submission was delivered to one destination.
// At most one record exists per (submission key, destination) pair.
type UploadRecord struct {
	Key            SubmissionKey
	Destination    string
	ExternalCardID string
	UploadedAt     time.Time
}

// Watermark marks the most recent submission already stored for a judge,
// bounding the next incremental fetch. Ordered the same way submissions
// are: by (SubmitTime, SubmissionID).
type Watermark struct {
	SubmitTime   time.Time
	SubmissionID string
}

// Covers reports whether sub is at or before the watermark, i.e. the
// fetch window for this judge already includes it. Source adapters stop
// paging once they reach a covered submission.
func (w Watermark) Covers(sub Submission) bool {
	if sub.SubmitTime.Before(w.SubmitTime) {
		return true
	}
	if !sub.SubmitTime.Equal(w.SubmitTime) {
		return false
	}
	return strings.Compare(sub.SubmissionID, w.SubmissionID) <= 0
}

// Advance returns the watermark moved forward to cover sub. The result
// never regresses: if sub is already covered the watermark is unchanged.
func (w Watermark) Advance(sub Submission) Watermark {
	if w.Covers(sub) {
		return w
	}
	return Watermark{SubmitTime: sub.SubmitTime, SubmissionID: sub.SubmissionID}
}
