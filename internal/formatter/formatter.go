// package formatter renders submissions for card upload and ledger exports (CSV, Markdown, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ojtools/ojsync/internal/models"
)

// DefaultSubmitTimeFormat omits hours and minutes because some judges only
// report coarse submit times.
const DefaultSubmitTimeFormat = "Jan 02 MST"

// FormatSubmitTime renders a submit time with the given Go layout.
// A zero time (judge provided no usable timestamp) renders best-effort as
// "unknown" rather than failing the upload.
func FormatSubmitTime(t time.Time, layout string) string {
	if t.IsZero() {
		return "unknown"
	}
	if layout == "" {
		layout = DefaultSubmitTimeFormat
	}
	return t.Format(layout)
}

// CardName builds the card title: "{problemId}. {title}".
func CardName(sub models.Submission) string {
	return fmt.Sprintf("%s. %s", sub.ProblemID, sub.Title)
}

// CardDescription builds the card body: language, stats, the solution
// code fenced for the board's markdown, and the acceptance date line.
func CardDescription(sub models.Submission, timeLayout string) string {
	var buf bytes.Buffer

	if sub.Language != "" {
		buf.WriteString(fmt.Sprintf("**Language**: %s\n", sub.Language))
	}
	if sub.Stats != "" {
		buf.WriteString(fmt.Sprintf("**Stats**: %s\n", sub.Stats))
	}

	if sub.Code != "" {
		buf.WriteString(fmt.Sprintf("\n```%s\n%s\n```\n", fenceHint(sub.Language), strings.TrimRight(sub.Code, "\n")))
	}

	buf.WriteString(fmt.Sprintf("\n-- Accepted on %s", FormatSubmitTime(sub.SubmitTime, timeLayout)))

	return buf.String()
}

// fenceHint maps a judge language name to a code-fence hint, falling back
// to the lowercased name.
func fenceHint(language string) string {
	switch l := strings.ToLower(language); l {
	case "python3":
		return "python"
	case "golang":
		return "go"
	case "c++":
		return "cpp"
	case "c#":
		return "csharp"
	default:
		return l
	}
}

// ExportToCSV renders submissions as CSV with columns: Judge, ProblemID, SubmissionID, Title, Language, SubmitTime, Tags
func ExportToCSV(subs []models.Submission) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Judge", "ProblemID", "SubmissionID", "Title", "Language", "SubmitTime", "Tags"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, sub := range subs {
		record := []string{
			sub.Judge,
			sub.ProblemID,
			sub.SubmissionID,
			sub.Title,
			sub.Language,
			FormatSubmitTime(sub.SubmitTime, time.RFC3339),
			strings.Join(sub.Tags, ";"),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders submissions as a Markdown checklist grouped by judge
func ExportToMarkdown(subs []models.Submission) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Solved Problems\n")

	var judge string
	for _, sub := range subs {
		if sub.Judge != judge {
			judge = sub.Judge
			buf.WriteString(fmt.Sprintf("\n## %s\n\n", judge))
		}

		tagPart := ""
		if len(sub.Tags) > 0 {
			tagPart = fmt.Sprintf(" _%s_", strings.Join(sub.Tags, ", "))
		}
		buf.WriteString(fmt.Sprintf("- [x] %s. %s (%s)%s\n", sub.ProblemID, sub.Title, FormatSubmitTime(sub.SubmitTime, DefaultSubmitTimeFormat), tagPart))
	}

	return buf.Bytes(), nil
}

// ExportToJSON renders submissions as pretty-printed JSON
func ExportToJSON(subs []models.Submission) ([]byte, error) {
	data, err := json.MarshalIndent(subs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return append(data, '\n'), nil
}
