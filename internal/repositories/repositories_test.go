package repositories

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/ojtools/ojsync/internal/models"
	"github.com/ojtools/ojsync/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func sub(problemID, submissionID string, submitTime int64) models.Submission {
	return models.Submission{
		Judge:        "leetcode",
		ProblemID:    problemID,
		SubmissionID: submissionID,
		Title:        "Problem " + problemID,
		Status:       models.StatusAccepted,
		Language:     "go",
		Code:         "package main",
		SubmitTime:   time.Unix(submitTime, 0).UTC(),
		Tags:         []string{"array", "hash-table"},
	}
}

func TestSubmissionRepository(t *testing.T) {
	t.Run("InsertIgnore", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewSubmissionRepository(db)

		inserted, err := repo.InsertIgnore([]models.Submission{
			sub("1", "100", 1000),
			sub("2", "200", 2000),
		})
		if err != nil {
			t.Fatalf("failed to insert: %v", err)
		}
		if inserted != 2 {
			t.Errorf("expected 2 inserted, got %d", inserted)
		}
	})

	t.Run("InsertIgnoreDeduplicates", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewSubmissionRepository(db)

		if _, err := repo.InsertIgnore([]models.Submission{sub("1", "100", 1000)}); err != nil {
			t.Fatalf("failed to insert: %v", err)
		}

		// Same key, different payload: the stored row must win.
		dup := sub("1", "100", 1000)
		dup.Title = "Changed Title"

		inserted, err := repo.InsertIgnore([]models.Submission{dup, sub("2", "200", 2000)})
		if err != nil {
			t.Fatalf("failed to insert: %v", err)
		}
		if inserted != 1 {
			t.Errorf("expected 1 inserted, got %d", inserted)
		}

		subs, err := repo.List(map[string]any{"judge": "leetcode"})
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		for _, s := range subs {
			if s.SubmissionID == "100" && s.Title == "Changed Title" {
				t.Error("duplicate insert overwrote the stored row")
			}
		}
	})

	t.Run("InsertIgnoreRejectsIncompleteKey", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewSubmissionRepository(db)

		bad := sub("1", "100", 1000)
		bad.SubmissionID = ""

		if _, err := repo.InsertIgnore([]models.Submission{bad}); err == nil {
			t.Error("expected error for incomplete key")
		}
	})

	t.Run("PendingForDestinationOrdering", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewSubmissionRepository(db)

		// Inserted newest-first, as a source adapter would hand them over.
		if _, err := repo.InsertIgnore([]models.Submission{
			sub("3", "300", 3000),
			sub("2", "201", 2000),
			sub("2", "200", 2000),
			sub("1", "100", 1000),
		}); err != nil {
			t.Fatalf("failed to insert: %v", err)
		}

		pending, err := repo.PendingForDestination("trello")
		if err != nil {
			t.Fatalf("failed to list pending: %v", err)
		}

		want := []string{"100", "200", "201", "300"}
		if len(pending) != len(want) {
			t.Fatalf("expected %d pending, got %d", len(want), len(pending))
		}
		for i, id := range want {
			if pending[i].SubmissionID != id {
				t.Errorf("position %d: expected %s, got %s", i, id, pending[i].SubmissionID)
			}
		}
	})

	t.Run("PendingExcludesUploaded", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewSubmissionRepository(db)
		uploads := NewUploadRepository(db)

		if _, err := repo.InsertIgnore([]models.Submission{
			sub("1", "100", 1000),
			sub("2", "200", 2000),
		}); err != nil {
			t.Fatalf("failed to insert: %v", err)
		}

		if err := uploads.Record(sub("1", "100", 1000).Key(), "trello", "card1"); err != nil {
			t.Fatalf("failed to record upload: %v", err)
		}

		pending, err := repo.PendingForDestination("trello")
		if err != nil {
			t.Fatalf("failed to list pending: %v", err)
		}
		if len(pending) != 1 || pending[0].SubmissionID != "200" {
			t.Errorf("expected only submission 200 pending, got %+v", pending)
		}

		// A different destination still sees both.
		pending, err = repo.PendingForDestination("github")
		if err != nil {
			t.Fatalf("failed to list pending: %v", err)
		}
		if len(pending) != 2 {
			t.Errorf("expected 2 pending for other destination, got %d", len(pending))
		}
	})

	t.Run("PendingExcludesNonAccepted", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewSubmissionRepository(db)

		rejected := sub("1", "100", 1000)
		rejected.Status = models.StatusOther

		if _, err := repo.InsertIgnore([]models.Submission{rejected}); err != nil {
			t.Fatalf("failed to insert: %v", err)
		}

		pending, err := repo.PendingForDestination("trello")
		if err != nil {
			t.Fatalf("failed to list pending: %v", err)
		}
		if len(pending) != 0 {
			t.Errorf("expected no pending, got %d", len(pending))
		}
	})

	t.Run("RoundTripsTags", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewSubmissionRepository(db)

		if _, err := repo.InsertIgnore([]models.Submission{sub("1", "100", 1000)}); err != nil {
			t.Fatalf("failed to insert: %v", err)
		}

		subs, err := repo.List(nil)
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(subs) != 1 {
			t.Fatalf("expected 1 submission, got %d", len(subs))
		}
		if len(subs[0].Tags) != 2 || subs[0].Tags[0] != "array" {
			t.Errorf("tags did not round-trip: %v", subs[0].Tags)
		}
	})
}

func TestUploadRepository(t *testing.T) {
	t.Run("Record", func(t *testing.T) {
		db := setupTestDB(t)
		subs := NewSubmissionRepository(db)
		repo := NewUploadRepository(db)

		s := sub("1", "100", 1000)
		if _, err := subs.InsertIgnore([]models.Submission{s}); err != nil {
			t.Fatalf("failed to insert: %v", err)
		}

		if err := repo.Record(s.Key(), "trello", "card1"); err != nil {
			t.Fatalf("failed to record upload: %v", err)
		}

		records, err := repo.ListForDestination("trello")
		if err != nil {
			t.Fatalf("failed to list uploads: %v", err)
		}
		if len(records) != 1 || records[0].ExternalCardID != "card1" {
			t.Errorf("unexpected records: %+v", records)
		}
	})

	t.Run("DuplicateReturnsSentinel", func(t *testing.T) {
		db := setupTestDB(t)
		subs := NewSubmissionRepository(db)
		repo := NewUploadRepository(db)

		s := sub("1", "100", 1000)
		if _, err := subs.InsertIgnore([]models.Submission{s}); err != nil {
			t.Fatalf("failed to insert: %v", err)
		}

		if err := repo.Record(s.Key(), "trello", "card1"); err != nil {
			t.Fatalf("first record failed: %v", err)
		}

		err := repo.Record(s.Key(), "trello", "card2")
		if !errors.Is(err, shared.ErrDuplicateUpload) {
			t.Errorf("expected ErrDuplicateUpload, got %v", err)
		}

		// Same submission to a different destination is fine.
		if err := repo.Record(s.Key(), "github", "issue1"); err != nil {
			t.Errorf("different destination rejected: %v", err)
		}
	})
}

func TestWatermarkRepository(t *testing.T) {
	t.Run("GetMissingReturnsNil", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewWatermarkRepository(db)

		w, err := repo.Get("leetcode")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if w != nil {
			t.Errorf("expected nil watermark, got %+v", w)
		}
	})

	t.Run("AdvanceAndGet", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewWatermarkRepository(db)

		want := models.Watermark{SubmitTime: time.Unix(2000, 0).UTC(), SubmissionID: "200"}
		if err := repo.Advance("leetcode", want); err != nil {
			t.Fatalf("failed to advance: %v", err)
		}

		got, err := repo.Get("leetcode")
		if err != nil {
			t.Fatalf("failed to get: %v", err)
		}
		if got == nil || !got.SubmitTime.Equal(want.SubmitTime) || got.SubmissionID != "200" {
			t.Errorf("unexpected watermark: %+v", got)
		}
	})

	t.Run("NeverRegresses", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewWatermarkRepository(db)

		if err := repo.Advance("leetcode", models.Watermark{SubmitTime: time.Unix(2000, 0).UTC(), SubmissionID: "200"}); err != nil {
			t.Fatalf("failed to advance: %v", err)
		}

		// An older candidate must not move the mark backward.
		if err := repo.Advance("leetcode", models.Watermark{SubmitTime: time.Unix(1000, 0).UTC(), SubmissionID: "100"}); err != nil {
			t.Fatalf("failed to advance: %v", err)
		}

		got, err := repo.Get("leetcode")
		if err != nil {
			t.Fatalf("failed to get: %v", err)
		}
		if got.SubmissionID != "200" {
			t.Errorf("watermark regressed to %s", got.SubmissionID)
		}

		// A newer one still advances it.
		if err := repo.Advance("leetcode", models.Watermark{SubmitTime: time.Unix(3000, 0).UTC(), SubmissionID: "300"}); err != nil {
			t.Fatalf("failed to advance: %v", err)
		}

		got, _ = repo.Get("leetcode")
		if got.SubmissionID != "300" {
			t.Errorf("watermark failed to advance, at %s", got.SubmissionID)
		}
	})
}

func TestLoginRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLoginRepository(db)

	t.Run("MissingReturnsEmpty", func(t *testing.T) {
		token, err := repo.Token("trello")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if token != "" {
			t.Errorf("expected empty token, got %s", token)
		}
	})

	t.Run("SaveAndGet", func(t *testing.T) {
		if err := repo.Save("trello", "token1"); err != nil {
			t.Fatalf("failed to save: %v", err)
		}

		token, err := repo.Token("trello")
		if err != nil {
			t.Fatalf("failed to get: %v", err)
		}
		if token != "token1" {
			t.Errorf("expected token1, got %s", token)
		}
	})

	t.Run("SaveReplaces", func(t *testing.T) {
		if err := repo.Save("trello", "token2"); err != nil {
			t.Fatalf("failed to save: %v", err)
		}

		token, _ := repo.Token("trello")
		if token != "token2" {
			t.Errorf("expected token2, got %s", token)
		}
	})
}

func TestStore(t *testing.T) {
	t.Run("StoreSubmissionsAdvancesWatermark", func(t *testing.T) {
		db := setupTestDB(t)
		store := NewStore(db)

		inserted, err := store.StoreSubmissions("leetcode", []models.Submission{
			sub("2", "200", 2000),
			sub("1", "100", 1000),
		})
		if err != nil {
			t.Fatalf("failed to store: %v", err)
		}
		if inserted != 2 {
			t.Errorf("expected 2 inserted, got %d", inserted)
		}

		w, err := store.Watermark("leetcode")
		if err != nil {
			t.Fatalf("failed to get watermark: %v", err)
		}
		if w == nil || w.SubmissionID != "200" {
			t.Errorf("watermark should point at the newest submission, got %+v", w)
		}
	})

	t.Run("DuplicatesStillAdvanceWatermark", func(t *testing.T) {
		db := setupTestDB(t)
		store := NewStore(db)

		if _, err := store.StoreSubmissions("leetcode", []models.Submission{sub("1", "100", 1000)}); err != nil {
			t.Fatalf("failed to store: %v", err)
		}

		// Refetching the same item plus a newer one inserts once but the
		// watermark still reaches the newer item.
		inserted, err := store.StoreSubmissions("leetcode", []models.Submission{
			sub("2", "200", 2000),
			sub("1", "100", 1000),
		})
		if err != nil {
			t.Fatalf("failed to store: %v", err)
		}
		if inserted != 1 {
			t.Errorf("expected 1 inserted, got %d", inserted)
		}

		w, _ := store.Watermark("leetcode")
		if w.SubmissionID != "200" {
			t.Errorf("expected watermark at 200, got %s", w.SubmissionID)
		}
	})

	t.Run("EmptyFetchLeavesWatermark", func(t *testing.T) {
		db := setupTestDB(t)
		store := NewStore(db)

		if _, err := store.StoreSubmissions("leetcode", []models.Submission{sub("1", "100", 1000)}); err != nil {
			t.Fatalf("failed to store: %v", err)
		}
		if _, err := store.StoreSubmissions("leetcode", nil); err != nil {
			t.Fatalf("failed to store empty batch: %v", err)
		}

		w, _ := store.Watermark("leetcode")
		if w == nil || w.SubmissionID != "100" {
			t.Errorf("watermark should be unchanged, got %+v", w)
		}
	})

	t.Run("Reset", func(t *testing.T) {
		db := setupTestDB(t)
		store := NewStore(db)

		s := sub("1", "100", 1000)
		if _, err := store.StoreSubmissions("leetcode", []models.Submission{s}); err != nil {
			t.Fatalf("failed to store: %v", err)
		}
		if err := store.RecordUpload(s.Key(), "trello", "card1"); err != nil {
			t.Fatalf("failed to record upload: %v", err)
		}
		if err := store.SaveToken("trello", "token1"); err != nil {
			t.Fatalf("failed to save token: %v", err)
		}

		if err := store.Reset(); err != nil {
			t.Fatalf("failed to reset: %v", err)
		}

		subs, _ := store.Submissions(nil)
		if len(subs) != 0 {
			t.Errorf("expected no submissions after reset, got %d", len(subs))
		}
		w, _ := store.Watermark("leetcode")
		if w != nil {
			t.Errorf("expected no watermark after reset, got %+v", w)
		}
		token, _ := store.Token("trello")
		if token != "" {
			t.Errorf("expected no token after reset, got %s", token)
		}

		// The same submission stores again afterward.
		inserted, err := store.StoreSubmissions("leetcode", []models.Submission{s})
		if err != nil {
			t.Fatalf("failed to store after reset: %v", err)
		}
		if inserted != 1 {
			t.Errorf("expected 1 inserted after reset, got %d", inserted)
		}
	})
}
