package tasks

import (
	"fmt"

	"github.com/ojtools/ojsync/internal/models"
)

// ProgressUpdate represents a progress event during a sync run.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchSubmissions Phase = iota
	StoreRecords
	ResolveContainer
	UploadCards
	RunComplete
)

func (p Phase) String() string {
	switch p {
	case FetchSubmissions:
		return "fetch_submissions"
	case StoreRecords:
		return "store_records"
	case ResolveContainer:
		return "resolve_container"
	case UploadCards:
		return "upload_cards"
	case RunComplete:
		return "run_complete"
	default:
		return ""
	}
}

func fetchSourceUpdate(step, total int, judge string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSubmissions,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Fetching new submissions from %s...", judge),
	}
}

func fetchFailedUpdate(step, total int, judge string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSubmissions,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("✗ %s: %v", judge, err),
	}
}

func storedUpdate(step, total int, judge string, fetched, stored int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   StoreRecords,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("%s: %d fetched, %d new", judge, fetched, stored),
	}
}

func resolveContainerUpdate(step, total int, destination, container string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveContainer,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Resolving %q on %s...", container, destination),
	}
}

func resolveFailedUpdate(step, total int, destination string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveContainer,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("✗ %s: %v", destination, err),
	}
}

func uploadUpdate(step, total int, destination string, sub models.Submission) ProgressUpdate {
	return ProgressUpdate{
		Phase:   UploadCards,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s ← %s. %s", step, total, destination, sub.ProblemID, sub.Title),
	}
}

func uploadFailedUpdate(step, total int, destination string, sub models.Submission, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   UploadCards,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s. %s: %v", step, total, sub.ProblemID, sub.Title, err),
	}
}

func runCompleteUpdate(result *RunResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RunComplete,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Done: %d stored, %d uploaded, %d failed", result.TotalStored(), result.TotalUploaded(), result.TotalFailed()),
		Data:    result,
	}
}
