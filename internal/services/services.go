// package services defines the Source and Destination capability interfaces
//
// LeetCode (GraphQL), Trello (REST)
package services

import (
	"context"

	"github.com/ojtools/ojsync/internal/models"
)

// Source fetches new submissions from one online judge.
type Source interface {
	// Fetch returns submissions newer than the watermark, paging from
	// most-recent backward and stopping once it reaches items the
	// watermark covers (nil means never synced: fetch everything).
	// Only accepted submissions are yielded; other verdicts are filtered
	// before the core ever sees them.
	//
	// Returns *shared.FetchError for transport/parse failure and
	// shared.ErrAuthFailed when credentials are invalid or the session
	// has expired.
	Fetch(ctx context.Context, since *models.Watermark) ([]models.Submission, error)

	// Name returns the judge identifier (e.g., "leetcode")
	Name() string
}

// ContainerRef is a resolved destination container: the board/list a run
// uploads into, with whatever the destination needs cached for the run.
type ContainerRef struct {
	ID       string            // container (list) id cards are created in
	BoardID  string            // owning board id
	Name     string            // human-readable container name
	MemberID string            // authenticated member, attached to cards
	Labels   map[string]string // existing board labels, lowercased name -> id
}

// Destination uploads submissions as cards to one board-like service.
type Destination interface {
	// ResolveContainer resolves the named container once per run; the
	// returned ref is cached by the caller. Returns
	// shared.ErrContainerNotFound when no container has that name.
	ResolveContainer(ctx context.Context, name string) (*ContainerRef, error)

	// Upload creates a card for the submission and returns its external
	// id. Tags that do not exist as labels on the destination are
	// silently omitted. Returns *shared.UploadError with Retryable set
	// for transient API/network failures and unset for permanent ones.
	Upload(ctx context.Context, sub models.Submission, ref *ContainerRef) (string, error)

	// Name returns the destination identifier (e.g., "trello")
	Name() string
}

// CredentialProvider supplies a saved token for a named service.
// The repositories.Store logins table satisfies it; callers resolve
// credentials through it once at construction so the sync engine itself
// never blocks on authentication.
type CredentialProvider interface {
	Token(service string) (string, error)
}
