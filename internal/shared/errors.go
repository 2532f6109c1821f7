package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors. ErrAuthFailed aborts an entire run: nothing
	// a retry can do until the user re-authenticates.
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")

	// Store errors. ErrStorage is fatal to a run; ErrDuplicateUpload is a
	// benign outcome of recording an upload that already has a record.
	ErrStorage         = fmt.Errorf("record store failure")
	ErrDuplicateUpload = fmt.Errorf("upload already recorded")

	// Destination configuration: the named board/list does not exist.
	// Fatal for that destination only.
	ErrContainerNotFound = fmt.Errorf("target container not found")

	// Input validation errors
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")

	// ErrTimeout signals an interactive flow that never completed.
	ErrTimeout = fmt.Errorf("operation timed out")
)

// FetchError reports a transport or parse failure while fetching from a
// source. Retryable failures skip the source for the current run; nothing
// was committed, so the next run retries from the same watermark.
type FetchError struct {
	Judge     string
	Retryable bool
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch from %s failed: %v", e.Judge, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// UploadError reports a failed card upload. Retryable means a later run
// may succeed with the identical request; non-retryable means it will not
// (permission denied and the like), but neither aborts the destination
// loop; the submission simply stays pending.
type UploadError struct {
	Destination string
	Retryable   bool
	Err         error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload to %s failed: %v", e.Destination, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }
