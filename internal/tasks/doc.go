// Package tasks orchestrates submission syncs between judges and task boards with real-time progress reporting.
//
// # Core Operation
//
// The [SyncEngine] interface defines a single operation:
//
//  1. [SyncEngine.Run] : Full judge → board sync
//     - Fetches new accepted submissions from every source, concurrently
//     - Records them and advances each judge's watermark
//     - Uploads anything each destination has not recorded yet
//     - Returns per-branch fetch, store, upload, and failure counts
//
// # Failure Isolation
//
// Branches fail independently: an unreachable judge or misconfigured
// board skips that branch and the rest of the run proceeds. A failed
// upload leaves the submission pending, so the next run retries it
// without any queue bookkeeping. Only rejected credentials and storage
// failures abort the whole run.
//
// # Progress Reporting
//
// # All operations use non-blocking channels for progress updates
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Implementation
//
// [Engine] implements [SyncEngine] with dependencies on:
//   - [services.Source] : judge API clients (LeetCode)
//   - [DestinationBinding] : board API clients paired with a target list (Trello)
//   - [RecordStore] : persistence layer (repositories.Store)
package tasks
