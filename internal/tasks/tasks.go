// package tasks implements the fetch → record → upload sync loop.
//
// Operations emit progress updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ojtools/ojsync/internal/models"
	"github.com/ojtools/ojsync/internal/services"
	"github.com/ojtools/ojsync/internal/shared"
	"golang.org/x/time/rate"
)

const (
	defaultRateLimit = 5.0
	maxAttempts      = 3
	baseBackoff      = 500 * time.Millisecond
)

// RecordStore defines the persistence operations the engine needs.
// This abstraction allows for easier testing and decoupling from concrete implementation.
type RecordStore interface {
	// Watermark returns the high-water mark for a judge, nil if none recorded.
	Watermark(judge string) (*models.Watermark, error)

	// StoreSubmissions records fetched submissions, ignoring ones already
	// present, and advances the judge's watermark. Returns the number of
	// newly inserted rows.
	StoreSubmissions(judge string, subs []models.Submission) (int, error)

	// PendingForDestination returns accepted submissions with no upload
	// record for the destination, oldest first.
	PendingForDestination(destination string) ([]models.Submission, error)

	// RecordUpload marks a submission as uploaded to a destination.
	RecordUpload(key models.SubmissionKey, destination, externalCardID string) error
}

// SourceResult summarizes one source's fetch-and-store branch.
type SourceResult struct {
	Judge   string `json:"judge"`
	Fetched int    `json:"fetched"`
	Stored  int    `json:"stored"`
	Err     error  `json:"-"`
}

// DestinationResult summarizes one destination's upload branch.
type DestinationResult struct {
	Destination string `json:"destination"`
	Container   string `json:"container"`
	Uploaded    int    `json:"uploaded"`
	Failed      int    `json:"failed"`
	Err         error  `json:"-"`
}

// RunResult contains all data from a full sync run.
type RunResult struct {
	Sources      []SourceResult      `json:"sources"`
	Destinations []DestinationResult `json:"destinations"`
}

// TotalStored returns newly recorded submissions across all sources.
func (r *RunResult) TotalStored() int {
	total := 0
	for _, s := range r.Sources {
		total += s.Stored
	}
	return total
}

// TotalUploaded returns created cards across all destinations.
func (r *RunResult) TotalUploaded() int {
	total := 0
	for _, d := range r.Destinations {
		total += d.Uploaded
	}
	return total
}

// TotalFailed returns failed uploads across all destinations.
func (r *RunResult) TotalFailed() int {
	total := 0
	for _, d := range r.Destinations {
		total += d.Failed
	}
	return total
}

// fatal returns the first run-fatal error recorded in the result.
// Rejected credentials and storage failures abort the run; everything
// else is isolated to its branch.
func (r *RunResult) fatal() error {
	for _, s := range r.Sources {
		if runFatal(s.Err) {
			return s.Err
		}
	}
	for _, d := range r.Destinations {
		if runFatal(d.Err) {
			return d.Err
		}
	}
	return nil
}

func runFatal(err error) bool {
	return errors.Is(err, shared.ErrAuthFailed) || errors.Is(err, shared.ErrStorage)
}

// DestinationBinding pairs a destination with the container name uploads
// land in.
type DestinationBinding struct {
	Destination services.Destination
	Container   string
}

// SyncEngine defines the synchronization operation.
type SyncEngine interface {
	// Run performs a full judge → board sync: fetch new accepted
	// submissions from every source, record them, then upload anything
	// a destination has not seen yet.
	Run(ctx context.Context, progress chan<- ProgressUpdate) (*RunResult, error)
}

// Engine implements SyncEngine over a set of sources, destination
// bindings, and a record store.
type Engine struct {
	sources  []services.Source
	bindings []DestinationBinding
	store    RecordStore
	limiter  *rate.Limiter
	logger   *log.Logger
}

// NewEngine creates an Engine. rateLimit is the shared upload budget in
// requests per second; zero or negative picks the default.
func NewEngine(sources []services.Source, bindings []DestinationBinding, store RecordStore, rateLimit float64, logger *log.Logger) *Engine {
	if rateLimit <= 0 {
		rateLimit = defaultRateLimit
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &Engine{
		sources:  sources,
		bindings: bindings,
		store:    store,
		limiter:  rate.NewLimiter(rate.Limit(rateLimit), 1),
		logger:   shared.WithLogger(logger, "component", "engine"),
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
		// Sent successfully
	default:
		// Channel full or closed, skip this update
	}
}

// Run executes one sync pass. Sources are fetched concurrently, then
// destinations upload concurrently. A failed branch never blocks the
// others; only rejected credentials and storage failures abort the run.
func (e *Engine) Run(ctx context.Context, progress chan<- ProgressUpdate) (*RunResult, error) {
	if e.store == nil {
		return nil, fmt.Errorf("%w: record store not initialized", shared.ErrStorage)
	}
	if len(e.sources) == 0 && len(e.bindings) == 0 {
		return nil, fmt.Errorf("%w: no sources or destinations configured", shared.ErrInvalidConfig)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	result := &RunResult{
		Sources:      make([]SourceResult, len(e.sources)),
		Destinations: make([]DestinationResult, len(e.bindings)),
	}

	var wg sync.WaitGroup
	for i, src := range e.sources {
		wg.Add(1)
		go func(i int, src services.Source) {
			defer wg.Done()
			result.Sources[i] = e.runSource(ctx, cancel, progress, src, i)
		}(i, src)
	}
	wg.Wait()

	if err := result.fatal(); err != nil {
		return result, err
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	for i, binding := range e.bindings {
		wg.Add(1)
		go func(i int, binding DestinationBinding) {
			defer wg.Done()
			result.Destinations[i] = e.runDestination(ctx, cancel, progress, binding, i)
		}(i, binding)
	}
	wg.Wait()

	if err := result.fatal(); err != nil {
		return result, err
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	e.sendProgress(progress, runCompleteUpdate(result))
	return result, nil
}

// runSource fetches new submissions from one judge and records them.
func (e *Engine) runSource(ctx context.Context, cancel context.CancelFunc, progress chan<- ProgressUpdate, src services.Source, step int) SourceResult {
	res := SourceResult{Judge: src.Name()}
	total := len(e.sources)

	e.sendProgress(progress, fetchSourceUpdate(step+1, total, src.Name()))

	since, err := e.store.Watermark(src.Name())
	if err != nil {
		res.Err = err
		cancel()
		return res
	}

	subs, err := e.fetchWithRetry(ctx, src, since)
	if err != nil {
		res.Err = err
		if runFatal(err) {
			cancel()
		} else {
			e.logger.Warn("source skipped", "judge", src.Name(), "err", err)
			e.sendProgress(progress, fetchFailedUpdate(step+1, total, src.Name(), err))
		}
		return res
	}
	res.Fetched = len(subs)

	stored, err := e.store.StoreSubmissions(src.Name(), subs)
	if err != nil {
		res.Err = err
		cancel()
		return res
	}
	res.Stored = stored

	e.logger.Info("source complete", "judge", src.Name(), "fetched", res.Fetched, "stored", res.Stored)
	e.sendProgress(progress, storedUpdate(step+1, total, src.Name(), res.Fetched, res.Stored))
	return res
}

// runDestination resolves one destination's container and uploads every
// pending submission. Individual upload failures are counted and skipped;
// the submission stays pending for the next run.
func (e *Engine) runDestination(ctx context.Context, cancel context.CancelFunc, progress chan<- ProgressUpdate, binding DestinationBinding, step int) DestinationResult {
	dest := binding.Destination
	res := DestinationResult{Destination: dest.Name(), Container: binding.Container}

	e.sendProgress(progress, resolveContainerUpdate(step+1, len(e.bindings), dest.Name(), binding.Container))

	ref, err := dest.ResolveContainer(ctx, binding.Container)
	if err != nil {
		res.Err = err
		if runFatal(err) {
			cancel()
		} else {
			e.logger.Warn("destination skipped", "destination", dest.Name(), "err", err)
			e.sendProgress(progress, resolveFailedUpdate(step+1, len(e.bindings), dest.Name(), err))
		}
		return res
	}

	pending, err := e.store.PendingForDestination(dest.Name())
	if err != nil {
		res.Err = err
		cancel()
		return res
	}

	for i, sub := range pending {
		if ctx.Err() != nil {
			res.Err = ctx.Err()
			return res
		}
		if err := e.limiter.Wait(ctx); err != nil {
			res.Err = err
			return res
		}

		e.sendProgress(progress, uploadUpdate(i+1, len(pending), dest.Name(), sub))

		cardID, err := e.uploadWithRetry(ctx, dest, sub, ref)
		if err != nil {
			if runFatal(err) {
				res.Err = err
				cancel()
				return res
			}
			// Left pending, picked up again next run.
			res.Failed++
			e.logger.Warn("upload failed", "destination", dest.Name(), "key", sub.Key().String(), "err", err)
			e.sendProgress(progress, uploadFailedUpdate(i+1, len(pending), dest.Name(), sub, err))
			continue
		}

		err = e.store.RecordUpload(sub.Key(), dest.Name(), cardID)
		if errors.Is(err, shared.ErrDuplicateUpload) {
			// A concurrent run got there first.
			e.logger.Debug("upload already recorded", "destination", dest.Name(), "key", sub.Key().String())
			err = nil
		}
		if err != nil {
			res.Err = err
			cancel()
			return res
		}
		res.Uploaded++
	}

	e.logger.Info("destination complete", "destination", dest.Name(), "uploaded", res.Uploaded, "failed", res.Failed)
	return res
}

// fetchWithRetry retries retryable fetch failures with exponential backoff.
func (e *Engine) fetchWithRetry(ctx context.Context, src services.Source, since *models.Watermark) ([]models.Submission, error) {
	for attempt := 0; ; attempt++ {
		subs, err := src.Fetch(ctx, since)
		if err == nil {
			return subs, nil
		}

		var fetchErr *shared.FetchError
		if attempt >= maxAttempts-1 || !errors.As(err, &fetchErr) || !fetchErr.Retryable {
			return nil, err
		}

		e.logger.Debug("retrying fetch", "judge", src.Name(), "attempt", attempt+1, "err", err)
		if err := e.backoff(ctx, attempt); err != nil {
			return nil, err
		}
	}
}

// uploadWithRetry retries retryable upload failures with exponential backoff.
func (e *Engine) uploadWithRetry(ctx context.Context, dest services.Destination, sub models.Submission, ref *services.ContainerRef) (string, error) {
	for attempt := 0; ; attempt++ {
		cardID, err := dest.Upload(ctx, sub, ref)
		if err == nil {
			return cardID, nil
		}

		var uploadErr *shared.UploadError
		if attempt >= maxAttempts-1 || !errors.As(err, &uploadErr) || !uploadErr.Retryable {
			return "", err
		}

		e.logger.Debug("retrying upload", "destination", dest.Name(), "attempt", attempt+1, "err", err)
		if err := e.backoff(ctx, attempt); err != nil {
			return "", err
		}
	}
}

func (e *Engine) backoff(ctx context.Context, attempt int) error {
	timer := time.NewTimer(baseBackoff << attempt)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
