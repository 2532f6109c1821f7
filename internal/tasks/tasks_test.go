package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/ojtools/ojsync/internal/models"
	"github.com/ojtools/ojsync/internal/repositories"
	"github.com/ojtools/ojsync/internal/services"
	"github.com/ojtools/ojsync/internal/shared"
	mocks "github.com/ojtools/ojsync/internal/testing"
)

func setupStore(t *testing.T) *repositories.Store {
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

	return repositories.NewStore(db)
}

// watermarkSource serves a fixed history the way a judge adapter would:
// everything after the watermark, newest first.
func watermarkSource(name string, history ...models.Submission) *mocks.MockSource {
	return &mocks.MockSource{
		NameValue: name,
		FetchFunc: func(ctx context.Context, since *models.Watermark) ([]models.Submission, error) {
			var out []models.Submission
			for i := len(history) - 1; i >= 0; i-- {
				if since != nil && since.Covers(history[i]) {
					break
				}
				out = append(out, history[i])
			}
			return out, nil
		},
	}
}

func newTestEngine(store RecordStore, sources []services.Source, bindings []DestinationBinding) *Engine {
	// High limit keeps the limiter out of timing-sensitive tests.
	return NewEngine(sources, bindings, store, 10000, shared.NewLogger(io.Discard))
}

func TestEngineRun(t *testing.T) {
	t.Run("FetchStoreUpload", func(t *testing.T) {
		store := setupStore(t)
		src := watermarkSource("leetcode",
			mocks.Sub("leetcode", "1", "100", 1000),
			mocks.Sub("leetcode", "2", "200", 2000),
		)

		var uploaded []string
		dest := &mocks.MockDestination{
			NameValue: "trello",
			UploadFunc: func(ctx context.Context, sub models.Submission, ref *services.ContainerRef) (string, error) {
				uploaded = append(uploaded, sub.SubmissionID)
				return "card-" + sub.SubmissionID, nil
			},
		}

		engine := newTestEngine(store, []services.Source{src}, []DestinationBinding{{Destination: dest, Container: "Solved"}})

		result, err := engine.Run(context.Background(), nil)
		if err != nil {
			t.Fatalf("run failed: %v", err)
		}

		if result.TotalStored() != 2 {
			t.Errorf("expected 2 stored, got %d", result.TotalStored())
		}
		if result.TotalUploaded() != 2 {
			t.Errorf("expected 2 uploaded, got %d", result.TotalUploaded())
		}
		// Oldest first.
		if len(uploaded) != 2 || uploaded[0] != "100" || uploaded[1] != "200" {
			t.Errorf("unexpected upload order: %v", uploaded)
		}
	})

	t.Run("SecondRunIsIdempotent", func(t *testing.T) {
		store := setupStore(t)
		src := watermarkSource("leetcode",
			mocks.Sub("leetcode", "1", "100", 1000),
			mocks.Sub("leetcode", "2", "200", 2000),
		)
		dest := &mocks.MockDestination{NameValue: "trello"}

		engine := newTestEngine(store, []services.Source{src}, []DestinationBinding{{Destination: dest, Container: "Solved"}})

		if _, err := engine.Run(context.Background(), nil); err != nil {
			t.Fatalf("first run failed: %v", err)
		}

		result, err := engine.Run(context.Background(), nil)
		if err != nil {
			t.Fatalf("second run failed: %v", err)
		}
		if result.TotalStored() != 0 || result.TotalUploaded() != 0 {
			t.Errorf("second run should be a no-op, stored %d uploaded %d", result.TotalStored(), result.TotalUploaded())
		}
	})

	t.Run("FailedUploadStaysPendingAndResumes", func(t *testing.T) {
		store := setupStore(t)
		src := watermarkSource("leetcode",
			mocks.Sub("leetcode", "1", "100", 1000),
			mocks.Sub("leetcode", "2", "200", 2000),
			mocks.Sub("leetcode", "3", "300", 3000),
		)

		failing := map[string]bool{"200": true}
		var uploaded []string
		dest := &mocks.MockDestination{
			NameValue: "trello",
			UploadFunc: func(ctx context.Context, sub models.Submission, ref *services.ContainerRef) (string, error) {
				if failing[sub.SubmissionID] {
					return "", &shared.UploadError{Destination: "trello", Retryable: false, Err: fmt.Errorf("boom")}
				}
				uploaded = append(uploaded, sub.SubmissionID)
				return "card-" + sub.SubmissionID, nil
			},
		}

		engine := newTestEngine(store, []services.Source{src}, []DestinationBinding{{Destination: dest, Container: "Solved"}})

		result, err := engine.Run(context.Background(), nil)
		if err != nil {
			t.Fatalf("first run failed: %v", err)
		}
		// One failure never blocks the items behind it.
		if result.TotalUploaded() != 2 || result.TotalFailed() != 1 {
			t.Errorf("expected 2 uploaded 1 failed, got %d/%d", result.TotalUploaded(), result.TotalFailed())
		}

		// Next run retries exactly the failed one.
		failing["200"] = false
		uploaded = nil

		result, err = engine.Run(context.Background(), nil)
		if err != nil {
			t.Fatalf("second run failed: %v", err)
		}
		if result.TotalUploaded() != 1 || len(uploaded) != 1 || uploaded[0] != "200" {
			t.Errorf("expected only 200 retried, got %v", uploaded)
		}
	})

	t.Run("SourceFailureIsolated", func(t *testing.T) {
		store := setupStore(t)

		broken := &mocks.MockSource{
			NameValue: "broken",
			FetchFunc: func(ctx context.Context, since *models.Watermark) ([]models.Submission, error) {
				return nil, &shared.FetchError{Judge: "broken", Retryable: false, Err: fmt.Errorf("unreachable")}
			},
		}
		healthy := watermarkSource("leetcode", mocks.Sub("leetcode", "1", "100", 1000))
		dest := &mocks.MockDestination{NameValue: "trello"}

		engine := newTestEngine(store, []services.Source{broken, healthy}, []DestinationBinding{{Destination: dest, Container: "Solved"}})

		result, err := engine.Run(context.Background(), nil)
		if err != nil {
			t.Fatalf("run should survive one broken source: %v", err)
		}

		if result.Sources[0].Err == nil {
			t.Error("broken source should record its error")
		}
		if result.TotalStored() != 1 || result.TotalUploaded() != 1 {
			t.Errorf("healthy branch should complete, stored %d uploaded %d", result.TotalStored(), result.TotalUploaded())
		}
	})

	t.Run("ContainerResolutionFailureSkipsDestination", func(t *testing.T) {
		store := setupStore(t)
		src := watermarkSource("leetcode", mocks.Sub("leetcode", "1", "100", 1000))

		misconfigured := &mocks.MockDestination{
			NameValue: "trello",
			ResolveFunc: func(ctx context.Context, name string) (*services.ContainerRef, error) {
				return nil, fmt.Errorf("%w: list %q", shared.ErrContainerNotFound, name)
			},
		}
		working := &mocks.MockDestination{NameValue: "github"}

		engine := newTestEngine(store, []services.Source{src}, []DestinationBinding{
			{Destination: misconfigured, Container: "Nope"},
			{Destination: working, Container: "Solved"},
		})

		result, err := engine.Run(context.Background(), nil)
		if err != nil {
			t.Fatalf("run should survive one misconfigured destination: %v", err)
		}

		if !errors.Is(result.Destinations[0].Err, shared.ErrContainerNotFound) {
			t.Errorf("expected container error recorded, got %v", result.Destinations[0].Err)
		}
		if result.Destinations[1].Uploaded != 1 {
			t.Errorf("working destination should upload, got %d", result.Destinations[1].Uploaded)
		}

		// The skipped destination still sees the submission next run.
		pending, err := store.PendingForDestination("trello")
		if err != nil {
			t.Fatalf("failed to list pending: %v", err)
		}
		if len(pending) != 1 {
			t.Errorf("expected 1 pending for skipped destination, got %d", len(pending))
		}
	})

	t.Run("PermissionDeniedUploadKeepsRunAlive", func(t *testing.T) {
		store := setupStore(t)
		src := watermarkSource("leetcode",
			mocks.Sub("leetcode", "1", "100", 1000),
			mocks.Sub("leetcode", "2", "200", 2000),
		)

		denied := &mocks.MockDestination{
			NameValue: "trello",
			UploadFunc: func(ctx context.Context, sub models.Submission, ref *services.ContainerRef) (string, error) {
				return "", &shared.UploadError{Destination: "trello", Retryable: false, Err: fmt.Errorf("POST /cards: status 403")}
			},
		}
		working := &mocks.MockDestination{NameValue: "github"}

		engine := newTestEngine(store, []services.Source{src}, []DestinationBinding{
			{Destination: denied, Container: "Solved"},
			{Destination: working, Container: "Solved"},
		})

		result, err := engine.Run(context.Background(), nil)
		if err != nil {
			t.Fatalf("denied uploads must not abort the run: %v", err)
		}
		if result.Destinations[0].Failed != 2 || result.Destinations[0].Uploaded != 0 {
			t.Errorf("denied destination: expected 2 failed, got %+v", result.Destinations[0])
		}
		if result.Destinations[1].Uploaded != 2 {
			t.Errorf("other destination should finish, got %+v", result.Destinations[1])
		}
	})

	t.Run("AuthFailureIsFatal", func(t *testing.T) {
		store := setupStore(t)

		unauthorized := &mocks.MockSource{
			NameValue: "leetcode",
			FetchFunc: func(ctx context.Context, since *models.Watermark) ([]models.Submission, error) {
				return nil, fmt.Errorf("%w: session expired", shared.ErrAuthFailed)
			},
		}
		dest := &mocks.MockDestination{NameValue: "trello"}

		engine := newTestEngine(store, []services.Source{unauthorized}, []DestinationBinding{{Destination: dest, Container: "Solved"}})

		_, err := engine.Run(context.Background(), nil)
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
	})

	t.Run("RetryableFetchIsRetried", func(t *testing.T) {
		store := setupStore(t)

		attempts := 0
		flaky := &mocks.MockSource{
			NameValue: "leetcode",
			FetchFunc: func(ctx context.Context, since *models.Watermark) ([]models.Submission, error) {
				attempts++
				if attempts < 2 {
					return nil, &shared.FetchError{Judge: "leetcode", Retryable: true, Err: fmt.Errorf("status 503")}
				}
				return []models.Submission{mocks.Sub("leetcode", "1", "100", 1000)}, nil
			},
		}
		dest := &mocks.MockDestination{NameValue: "trello"}

		engine := newTestEngine(store, []services.Source{flaky}, []DestinationBinding{{Destination: dest, Container: "Solved"}})

		result, err := engine.Run(context.Background(), nil)
		if err != nil {
			t.Fatalf("run failed: %v", err)
		}
		if attempts != 2 {
			t.Errorf("expected 2 fetch attempts, got %d", attempts)
		}
		if result.TotalUploaded() != 1 {
			t.Errorf("expected 1 uploaded, got %d", result.TotalUploaded())
		}
	})

	t.Run("CancelledContext", func(t *testing.T) {
		store := setupStore(t)
		src := watermarkSource("leetcode", mocks.Sub("leetcode", "1", "100", 1000))
		dest := &mocks.MockDestination{NameValue: "trello"}

		engine := newTestEngine(store, []services.Source{src}, []DestinationBinding{{Destination: dest, Container: "Solved"}})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := engine.Run(ctx, nil); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("ProgressUpdatesNeverBlock", func(t *testing.T) {
		store := setupStore(t)
		src := watermarkSource("leetcode",
			mocks.Sub("leetcode", "1", "100", 1000),
			mocks.Sub("leetcode", "2", "200", 2000),
		)
		dest := &mocks.MockDestination{NameValue: "trello"}

		engine := newTestEngine(store, []services.Source{src}, []DestinationBinding{{Destination: dest, Container: "Solved"}})

		// Unbuffered channel nobody reads: sends must be dropped, not block.
		progress := make(chan ProgressUpdate)

		result, err := engine.Run(context.Background(), progress)
		if err != nil {
			t.Fatalf("run failed: %v", err)
		}
		if result.TotalUploaded() != 2 {
			t.Errorf("expected 2 uploaded, got %d", result.TotalUploaded())
		}
	})
}

// TestEngineThreeRunScenario exercises the full incremental flow: an
// initial backfill, a quiet run, and a run with new history plus a
// transient upload failure.
func TestEngineThreeRunScenario(t *testing.T) {
	store := setupStore(t)

	history := []models.Submission{
		mocks.Sub("leetcode", "1", "100", 1000),
		mocks.Sub("leetcode", "2", "200", 2000),
	}
	src := &mocks.MockSource{
		NameValue: "leetcode",
		FetchFunc: func(ctx context.Context, since *models.Watermark) ([]models.Submission, error) {
			var out []models.Submission
			for i := len(history) - 1; i >= 0; i-- {
				if since != nil && since.Covers(history[i]) {
					break
				}
				out = append(out, history[i])
			}
			return out, nil
		},
	}

	failOnce := true
	var uploaded []string
	dest := &mocks.MockDestination{
		NameValue: "trello",
		UploadFunc: func(ctx context.Context, sub models.Submission, ref *services.ContainerRef) (string, error) {
			if sub.SubmissionID == "300" && failOnce {
				failOnce = false
				return "", &shared.UploadError{Destination: "trello", Retryable: false, Err: fmt.Errorf("boom")}
			}
			uploaded = append(uploaded, sub.SubmissionID)
			return "card-" + sub.SubmissionID, nil
		},
	}

	engine := newTestEngine(store, []services.Source{src}, []DestinationBinding{{Destination: dest, Container: "Solved"}})

	// Run 1: backfill.
	result, err := engine.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("run 1 failed: %v", err)
	}
	if result.TotalStored() != 2 || result.TotalUploaded() != 2 {
		t.Fatalf("run 1: expected 2/2, got %d/%d", result.TotalStored(), result.TotalUploaded())
	}

	// Run 2: nothing new.
	result, err = engine.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("run 2 failed: %v", err)
	}
	if result.TotalStored() != 0 || result.TotalUploaded() != 0 {
		t.Fatalf("run 2: expected no-op, got %d/%d", result.TotalStored(), result.TotalUploaded())
	}

	// Run 3: two new submissions, one upload fails transiently.
	history = append(history,
		mocks.Sub("leetcode", "3", "300", 3000),
		mocks.Sub("leetcode", "4", "400", 4000),
	)

	result, err = engine.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("run 3 failed: %v", err)
	}
	if result.TotalStored() != 2 {
		t.Fatalf("run 3: expected 2 stored, got %d", result.TotalStored())
	}
	if result.TotalUploaded() != 1 || result.TotalFailed() != 1 {
		t.Fatalf("run 3: expected 1 uploaded 1 failed, got %d/%d", result.TotalUploaded(), result.TotalFailed())
	}

	// Run 4: only the failed upload is retried; nothing refetched twice.
	result, err = engine.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("run 4 failed: %v", err)
	}
	if result.TotalStored() != 0 || result.TotalUploaded() != 1 {
		t.Fatalf("run 4: expected 0 stored 1 uploaded, got %d/%d", result.TotalStored(), result.TotalUploaded())
	}

	want := []string{"100", "200", "400", "300"}
	if len(uploaded) != len(want) {
		t.Fatalf("expected %d uploads total, got %v", len(want), uploaded)
	}
	for i, id := range want {
		if uploaded[i] != id {
			t.Errorf("upload %d: expected %s, got %s", i, id, uploaded[i])
		}
	}

	// Exactly one card per (submission, destination).
	records, err := store.Uploads("trello")
	if err != nil {
		t.Fatalf("failed to list uploads: %v", err)
	}
	if len(records) != 4 {
		t.Errorf("expected 4 upload records, got %d", len(records))
	}
}

func TestRecordUploadRace(t *testing.T) {
	// A duplicate record means a concurrent run already delivered the
	// card: the engine treats it as uploaded instead of failing the run.
	store := setupStore(t)
	s := mocks.Sub("leetcode", "1", "100", 1000)

	if _, err := store.StoreSubmissions("leetcode", []models.Submission{s}); err != nil {
		t.Fatalf("failed to store: %v", err)
	}

	dest := &mocks.MockDestination{
		NameValue: "trello",
		UploadFunc: func(ctx context.Context, sub models.Submission, ref *services.ContainerRef) (string, error) {
			// A racing run records the upload between our Upload and
			// RecordUpload calls.
			if err := store.RecordUpload(sub.Key(), "trello", "card-racer"); err != nil {
				t.Fatalf("failed to pre-record: %v", err)
			}
			return "card-ours", nil
		},
	}

	engine := newTestEngine(store, nil, []DestinationBinding{{Destination: dest, Container: "Solved"}})

	result, err := engine.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.TotalFailed() != 0 {
		t.Errorf("duplicate record should not count as failure, got %d", result.TotalFailed())
	}
	if result.TotalUploaded() != 1 {
		t.Errorf("expected 1 uploaded, got %d", result.TotalUploaded())
	}
}

var _ RecordStore = (*repositories.Store)(nil)
var _ SyncEngine = (*Engine)(nil)
