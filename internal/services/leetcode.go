// LeetCode [Source] implementation
//
// Talks to the GraphQL API at leetcode.com. Authentication is cookie
// based: a csrftoken cookie bootstrapped from the GraphQL root plus either
// a LEETCODE_SESSION cookie from config or a username/password form login.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ojtools/ojsync/internal/models"
	"github.com/ojtools/ojsync/internal/shared"
)

const (
	defaultLeetCodeBaseURL = "https://leetcode.com"
	leetCodePageSize       = 20
)

const submissionListQuery = `
query ($offset: Int!, $limit: Int!) {
  submissionList(offset: $offset, limit: $limit) {
    hasNext
    submissions {
      id
      title
      titleSlug
      statusDisplay
      lang
      timestamp
      runtime
      memory
    }
  }
}`

const questionQuery = `
query ($titleSlug: String!) {
  question(titleSlug: $titleSlug) {
    questionFrontendId
    topicTags {
      name
    }
  }
}`

const submissionDetailsQuery = `
query ($submissionId: Int!) {
  submissionDetails(submissionId: $submissionId) {
    code
  }
}`

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type leetCodeSubmission struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	TitleSlug     string `json:"titleSlug"`
	StatusDisplay string `json:"statusDisplay"`
	Lang          string `json:"lang"`
	Timestamp     string `json:"timestamp"`
	Runtime       string `json:"runtime"`
	Memory        string `json:"memory"`
}

type leetCodeQuestion struct {
	QuestionFrontendID string `json:"questionFrontendId"`
	TopicTags          []struct {
		Name string `json:"name"`
	} `json:"topicTags"`
}

// LeetCodeSource implements [Source] for leetcode.com.
type LeetCodeSource struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
	config     shared.LeetCodeConfig
	csrfToken  string
	questions  map[string]*leetCodeQuestion // per-run titleSlug cache
}

// NewLeetCodeSource creates a LeetCode source with the given credentials.
func NewLeetCodeSource(config shared.LeetCodeConfig, logger *log.Logger) *LeetCodeSource {
	jar, _ := cookiejar.New(nil)
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &LeetCodeSource{
		baseURL:    defaultLeetCodeBaseURL,
		httpClient: &http.Client{Jar: jar, Timeout: 30 * time.Second},
		logger:     shared.WithLogger(logger, "source", "leetcode"),
		config:     config,
		questions:  map[string]*leetCodeQuestion{},
	}
}

// Name returns the judge identifier.
func (l *LeetCodeSource) Name() string {
	return "leetcode"
}

// Fetch pages the submission list newest-first, stopping at the watermark
// boundary, and returns only accepted submissions enriched with code and
// topic tags.
func (l *LeetCodeSource) Fetch(ctx context.Context, since *models.Watermark) ([]models.Submission, error) {
	if err := l.authenticate(ctx); err != nil {
		return nil, err
	}

	var fetched []models.Submission

	for offset := 0; ; offset += leetCodePageSize {
		page, hasNext, err := l.submissionPage(ctx, offset)
		if err != nil {
			return nil, err
		}

		for _, raw := range page {
			sub, err := l.convert(raw)
			if err != nil {
				// One malformed record never aborts the fetch.
				l.logger.Debug("skipping malformed submission", "id", raw.ID, "err", err)
				continue
			}

			if since != nil && since.Covers(sub) {
				return fetched, nil
			}

			if !sub.Accepted() {
				continue
			}

			l.enrich(ctx, &sub, raw)
			fetched = append(fetched, sub)
		}

		if !hasNext || len(page) == 0 {
			return fetched, nil
		}
	}
}

// convert maps a raw API record to a [models.Submission], without the
// enrichment queries. Conversion failures are per-record parse errors.
func (l *LeetCodeSource) convert(raw leetCodeSubmission) (models.Submission, error) {
	if raw.ID == "" || raw.TitleSlug == "" {
		return models.Submission{}, fmt.Errorf("missing id or slug")
	}

	seconds, err := strconv.ParseInt(raw.Timestamp, 10, 64)
	if err != nil {
		return models.Submission{}, fmt.Errorf("bad timestamp %q: %w", raw.Timestamp, err)
	}

	status := models.StatusOther
	if raw.StatusDisplay == "Accepted" {
		status = models.StatusAccepted
	}

	stats := ""
	if raw.Runtime != "" || raw.Memory != "" {
		stats = strings.TrimSpace(fmt.Sprintf("runtime %s, memory %s", raw.Runtime, raw.Memory))
	}

	return models.Submission{
		Judge:        l.Name(),
		ProblemID:    raw.TitleSlug, // replaced by the frontend id during enrichment
		SubmissionID: raw.ID,
		Title:        raw.Title,
		Status:       status,
		Language:     raw.Lang,
		SubmitTime:   time.Unix(seconds, 0).UTC(),
		Stats:        stats,
	}, nil
}

// enrich fills the problem's display id, topic tags, and solution code.
// Enrichment is best-effort: a failed lookup degrades the submission
// rather than dropping it.
func (l *LeetCodeSource) enrich(ctx context.Context, sub *models.Submission, raw leetCodeSubmission) {
	if q, err := l.question(ctx, raw.TitleSlug); err != nil {
		l.logger.Debug("question lookup failed", "slug", raw.TitleSlug, "err", err)
	} else {
		if q.QuestionFrontendID != "" {
			sub.ProblemID = q.QuestionFrontendID
		}
		for _, tag := range q.TopicTags {
			sub.Tags = append(sub.Tags, tag.Name)
		}
	}

	if code, err := l.submissionCode(ctx, raw.ID); err != nil {
		l.logger.Debug("code lookup failed", "id", raw.ID, "err", err)
	} else {
		sub.Code = code
	}
}

func (l *LeetCodeSource) submissionPage(ctx context.Context, offset int) ([]leetCodeSubmission, bool, error) {
	var data struct {
		SubmissionList struct {
			HasNext     bool                 `json:"hasNext"`
			Submissions []leetCodeSubmission `json:"submissions"`
		} `json:"submissionList"`
	}

	err := l.graphql(ctx, submissionListQuery, map[string]any{
		"offset": offset,
		"limit":  leetCodePageSize,
	}, &data)
	if err != nil {
		return nil, false, err
	}

	return data.SubmissionList.Submissions, data.SubmissionList.HasNext, nil
}

func (l *LeetCodeSource) question(ctx context.Context, titleSlug string) (*leetCodeQuestion, error) {
	if q, ok := l.questions[titleSlug]; ok {
		return q, nil
	}

	var data struct {
		Question *leetCodeQuestion `json:"question"`
	}
	if err := l.graphql(ctx, questionQuery, map[string]any{"titleSlug": titleSlug}, &data); err != nil {
		return nil, err
	}
	if data.Question == nil {
		return nil, fmt.Errorf("question %q not found", titleSlug)
	}

	l.questions[titleSlug] = data.Question
	return data.Question, nil
}

func (l *LeetCodeSource) submissionCode(ctx context.Context, id string) (string, error) {
	numericID, err := strconv.Atoi(id)
	if err != nil {
		return "", fmt.Errorf("non-numeric submission id %q", id)
	}

	var data struct {
		SubmissionDetails *struct {
			Code string `json:"code"`
		} `json:"submissionDetails"`
	}
	if err := l.graphql(ctx, submissionDetailsQuery, map[string]any{"submissionId": numericID}, &data); err != nil {
		return "", err
	}
	if data.SubmissionDetails == nil {
		return "", fmt.Errorf("no details for submission %s", id)
	}

	return data.SubmissionDetails.Code, nil
}

// graphql POSTs a query and decodes the data envelope into result.
func (l *LeetCodeSource) graphql(ctx context.Context, query string, variables map[string]any, result any) error {
	body, err := json.Marshal(graphqlRequest{
		Query:     strings.ReplaceAll(query, "\n", " "),
		Variables: variables,
	})
	if err != nil {
		return &shared.FetchError{Judge: l.Name(), Retryable: false, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", l.baseURL+"/graphql/", bytes.NewReader(body))
	if err != nil {
		return &shared.FetchError{Judge: l.Name(), Retryable: false, Err: err}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Referer", l.baseURL)
	if l.csrfToken != "" {
		req.Header.Set("X-Csrftoken", l.csrfToken)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return &shared.FetchError{Judge: l.Name(), Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: leetcode rejected the session (status %d)", shared.ErrAuthFailed, resp.StatusCode)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return &shared.FetchError{Judge: l.Name(), Retryable: true, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &shared.FetchError{Judge: l.Name(), Retryable: false, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var envelope graphqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return &shared.FetchError{Judge: l.Name(), Retryable: true, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(envelope.Errors) > 0 {
		return &shared.FetchError{Judge: l.Name(), Retryable: false, Err: fmt.Errorf("graphql: %s", envelope.Errors[0].Message)}
	}

	if err := json.Unmarshal(envelope.Data, result); err != nil {
		return &shared.FetchError{Judge: l.Name(), Retryable: false, Err: fmt.Errorf("decode data: %w", err)}
	}

	return nil
}

// authenticate establishes the csrftoken cookie and a session, once per
// source instance. A configured session cookie wins over form login.
func (l *LeetCodeSource) authenticate(ctx context.Context) error {
	if l.csrfToken != "" {
		return nil
	}

	if err := l.bootstrapCSRF(ctx); err != nil {
		return err
	}

	base, err := url.Parse(l.baseURL)
	if err != nil {
		return &shared.FetchError{Judge: l.Name(), Retryable: false, Err: err}
	}

	if l.config.Session != "" {
		l.httpClient.Jar.SetCookies(base, []*http.Cookie{
			{Name: "LEETCODE_SESSION", Value: l.config.Session},
		})
		return nil
	}

	if l.config.Username == "" || l.config.Password == "" {
		return fmt.Errorf("%w: leetcode needs a session cookie or username/password", shared.ErrMissingCredentials)
	}

	return l.login(ctx)
}

// bootstrapCSRF fetches the csrftoken cookie from the GraphQL root.
func (l *LeetCodeSource) bootstrapCSRF(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", l.baseURL+"/graphql/", nil)
	if err != nil {
		return &shared.FetchError{Judge: l.Name(), Retryable: false, Err: err}
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return &shared.FetchError{Judge: l.Name(), Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	for _, cookie := range resp.Cookies() {
		if cookie.Name == "csrftoken" {
			l.csrfToken = cookie.Value
			return nil
		}
	}

	return &shared.FetchError{Judge: l.Name(), Retryable: true, Err: fmt.Errorf("no csrftoken cookie in response")}
}

// login performs the username/password form login. The password is
// dropped from the in-memory config once the session is established.
func (l *LeetCodeSource) login(ctx context.Context) error {
	form := url.Values{
		"login":               {l.config.Username},
		"password":            {l.config.Password},
		"csrfmiddlewaretoken": {l.csrfToken},
	}

	req, err := http.NewRequestWithContext(ctx, "POST", l.baseURL+"/accounts/login/", strings.NewReader(form.Encode()))
	if err != nil {
		return &shared.FetchError{Judge: l.Name(), Retryable: false, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", l.baseURL+"/accounts/login/")
	req.Header.Set("X-Csrftoken", l.csrfToken)

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return &shared.FetchError{Judge: l.Name(), Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: login rejected with status %d", shared.ErrAuthFailed, resp.StatusCode)
	}

	for _, cookie := range l.httpClient.Jar.Cookies(req.URL) {
		if cookie.Name == "LEETCODE_SESSION" && cookie.Value != "" {
			l.config.Password = ""
			return nil
		}
	}

	return fmt.Errorf("%w: login did not yield a session cookie", shared.ErrAuthFailed)
}
