// Trello [Destination] implementation
//
// Uses the Trello REST API with key+token query authentication. A run
// resolves the target board, list, labels, and member once, then creates
// one card per uploaded submission.
package services

import (
	"context"
	"errors"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ojtools/ojsync/internal/formatter"
	"github.com/ojtools/ojsync/internal/models"
	"github.com/ojtools/ojsync/internal/shared"
)

const defaultTrelloBaseURL = "https://api.trello.com/1"

// errTrelloUnauthorized marks a 401/403 from the API. ResolveContainer
// promotes it to shared.ErrAuthFailed; during Upload it stays a
// non-retryable UploadError so one denied card never aborts the run.
var errTrelloUnauthorized = errors.New("trello rejected the token")

type trelloBoard struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type trelloList struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type trelloLabel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type trelloMember struct {
	ID string `json:"id"`
}

type trelloCard struct {
	ID string `json:"id"`
}

// TrelloDestination implements [Destination] for Trello boards.
type TrelloDestination struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
	auth       shared.TrelloAuth
	boardName  string
	timeLayout string
}

// NewTrelloDestination creates a Trello destination. boardName is the
// display name of the board holding the target list, and timeLayout is
// the layout for submit times in card descriptions.
func NewTrelloDestination(auth shared.TrelloAuth, boardName, timeLayout string, logger *log.Logger) *TrelloDestination {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if timeLayout == "" {
		timeLayout = formatter.DefaultSubmitTimeFormat
	}

	return &TrelloDestination{
		baseURL:    defaultTrelloBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     shared.WithLogger(logger, "destination", "trello"),
		auth:       auth,
		boardName:  boardName,
		timeLayout: timeLayout,
	}
}

// Name returns the destination identifier.
func (t *TrelloDestination) Name() string {
	return "trello"
}

// ResolveContainer resolves the named list on the configured board, along
// with the board's label ids and the token owner's member id. A board or
// list that cannot be found is a configuration error, not a transient one.
func (t *TrelloDestination) ResolveContainer(ctx context.Context, name string) (*ContainerRef, error) {
	if t.auth.APIKey == "" || t.auth.Token == "" {
		return nil, fmt.Errorf("%w: trello api key and token are required", shared.ErrMissingCredentials)
	}

	var boards []trelloBoard
	if err := t.resolveGet(ctx, "/members/me/boards", url.Values{"fields": {"id,name"}}, &boards); err != nil {
		return nil, err
	}

	var board *trelloBoard
	for i := range boards {
		if boards[i].Name == t.boardName {
			board = &boards[i]
			break
		}
	}
	if board == nil {
		return nil, fmt.Errorf("%w: board %q", shared.ErrContainerNotFound, t.boardName)
	}

	var lists []trelloList
	if err := t.resolveGet(ctx, "/boards/"+board.ID+"/lists", url.Values{"fields": {"id,name"}}, &lists); err != nil {
		return nil, err
	}

	var list *trelloList
	for i := range lists {
		if lists[i].Name == name {
			list = &lists[i]
			break
		}
	}
	if list == nil {
		return nil, fmt.Errorf("%w: list %q on board %q", shared.ErrContainerNotFound, name, t.boardName)
	}

	var labels []trelloLabel
	if err := t.resolveGet(ctx, "/boards/"+board.ID+"/labels", url.Values{"fields": {"id,name"}, "limit": {"1000"}}, &labels); err != nil {
		return nil, err
	}

	labelIDs := map[string]string{}
	for _, label := range labels {
		if label.Name != "" {
			labelIDs[strings.ToLower(label.Name)] = label.ID
		}
	}

	var member trelloMember
	if err := t.resolveGet(ctx, "/members/me", url.Values{"fields": {"id"}}, &member); err != nil {
		return nil, err
	}

	t.logger.Debug("resolved container", "board", board.ID, "list", list.ID, "labels", len(labelIDs))

	return &ContainerRef{
		ID:       list.ID,
		BoardID:  board.ID,
		Name:     name,
		MemberID: member.ID,
		Labels:   labelIDs,
	}, nil
}

// Upload creates a card for the submission at the top of the resolved
// list and returns the new card's id. Tags with no matching board label
// are left off the card without error.
func (t *TrelloDestination) Upload(ctx context.Context, sub models.Submission, ref *ContainerRef) (string, error) {
	params := url.Values{
		"idList": {ref.ID},
		"name":   {formatter.CardName(sub)},
		"desc":   {formatter.CardDescription(sub, t.timeLayout)},
		"pos":    {"top"},
	}

	if ids := t.labelIDs(sub, ref); len(ids) > 0 {
		params.Set("idLabels", strings.Join(ids, ","))
	}
	if ref.MemberID != "" {
		params.Set("idMembers", ref.MemberID)
	}

	var card trelloCard
	if err := t.post(ctx, "/cards", params, &card); err != nil {
		return "", err
	}

	return card.ID, nil
}

// labelIDs matches the submission's tags, plus the judge name, against
// the board's labels. Unknown names are silently omitted.
func (t *TrelloDestination) labelIDs(sub models.Submission, ref *ContainerRef) []string {
	names := append([]string{sub.Judge}, sub.Tags...)

	var ids []string
	seen := map[string]bool{}
	for _, name := range names {
		id, ok := ref.Labels[strings.ToLower(name)]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}

	return ids
}

func (t *TrelloDestination) get(ctx context.Context, path string, params url.Values, result any) error {
	return t.do(ctx, "GET", path, params, result)
}

// resolveGet promotes a rejected token to shared.ErrAuthFailed: during
// container resolution bad credentials are fatal to the run, not a
// per-card failure.
func (t *TrelloDestination) resolveGet(ctx context.Context, path string, params url.Values, result any) error {
	err := t.get(ctx, path, params, result)
	if errors.Is(err, errTrelloUnauthorized) {
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}
	return err
}

func (t *TrelloDestination) post(ctx context.Context, path string, params url.Values, result any) error {
	return t.do(ctx, "POST", path, params, result)
}

// do issues an authenticated request and decodes the JSON response.
// Errors are classified by status: auth failures are terminal, 429 and
// server errors are retryable.
func (t *TrelloDestination) do(ctx context.Context, method, path string, params url.Values, result any) error {
	params.Set("key", t.auth.APIKey)
	params.Set("token", t.auth.Token)

	endpoint := t.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return &shared.UploadError{Destination: t.Name(), Retryable: false, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return &shared.UploadError{Destination: t.Name(), Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &shared.UploadError{Destination: t.Name(), Retryable: false, Err: fmt.Errorf("%s %s: %w (status %d)", method, path, errTrelloUnauthorized, resp.StatusCode)}
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return &shared.UploadError{Destination: t.Name(), Retryable: true, Err: fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &shared.UploadError{Destination: t.Name(), Retryable: false, Err: fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)}
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return &shared.UploadError{Destination: t.Name(), Retryable: true, Err: fmt.Errorf("decode response: %w", err)}
	}

	return nil
}
