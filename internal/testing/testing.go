// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/ojtools/ojsync/internal/models"
	"github.com/ojtools/ojsync/internal/services"
)

// MockSource is a configurable test double for [services.Source].
// Zero-value behavior: named "mock", fetches nothing.
type MockSource struct {
	NameValue string
	FetchFunc func(ctx context.Context, since *models.Watermark) ([]models.Submission, error)
}

func (m *MockSource) Name() string {
	if m.NameValue == "" {
		return "mock"
	}
	return m.NameValue
}

func (m *MockSource) Fetch(ctx context.Context, since *models.Watermark) ([]models.Submission, error) {
	if m.FetchFunc == nil {
		return nil, nil
	}
	return m.FetchFunc(ctx, since)
}

// MockDestination is a configurable test double for [services.Destination].
// Zero-value behavior: named "mockboard", resolves an empty container,
// uploads succeed with a deterministic card id.
type MockDestination struct {
	NameValue   string
	ResolveFunc func(ctx context.Context, name string) (*services.ContainerRef, error)
	UploadFunc  func(ctx context.Context, sub models.Submission, ref *services.ContainerRef) (string, error)
}

func (m *MockDestination) Name() string {
	if m.NameValue == "" {
		return "mockboard"
	}
	return m.NameValue
}

func (m *MockDestination) ResolveContainer(ctx context.Context, name string) (*services.ContainerRef, error) {
	if m.ResolveFunc == nil {
		return &services.ContainerRef{ID: "list1", BoardID: "board1", Name: name, Labels: map[string]string{}}, nil
	}
	return m.ResolveFunc(ctx, name)
}

func (m *MockDestination) Upload(ctx context.Context, sub models.Submission, ref *services.ContainerRef) (string, error) {
	if m.UploadFunc == nil {
		return fmt.Sprintf("card-%s", sub.SubmissionID), nil
	}
	return m.UploadFunc(ctx, sub, ref)
}

// Sub builds a minimal accepted submission for tests.
func Sub(judge, problemID, submissionID string, submitTime int64) models.Submission {
	return models.Submission{
		Judge:        judge,
		ProblemID:    problemID,
		SubmissionID: submissionID,
		Title:        "Problem " + problemID,
		Status:       models.StatusAccepted,
		Language:     "go",
		SubmitTime:   time.Unix(submitTime, 0).UTC(),
	}
}

// FetchFixed returns a fetch func serving a fixed history, honoring the
// watermark boundary.
func FetchFixed(subs ...models.Submission) func(ctx context.Context, since *models.Watermark) ([]models.Submission, error) {
	return func(ctx context.Context, since *models.Watermark) ([]models.Submission, error) {
		var out []models.Submission
		for _, s := range subs {
			if since != nil && since.Covers(s) {
				continue
			}
			out = append(out, s)
		}
		return out, nil
	}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
