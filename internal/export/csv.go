package export

import (
	"io"
	"strconv"
	"strings"

	"github.com/zhouzirui/catalyst/backend/internal/model/chat"
)

// WriteCSV writes the summary block, a blank line and one row per metric.
// Every value is quoted and embedded quotes are doubled.
func WriteCSV(w io.Writer, r *chat.AnalysisResult) error {
	if r == nil {
		return ErrNoAnalysis
	}

	lines := []string{
		quoteRow("Idea Name", r.IdeaName),
		quoteRow("Summary", r.Summary),
		quoteRow("Overall Score", strconv.Itoa(r.OverallScore)),
		quoteRow("Recommendation", r.Recommendation),
		"",
		"Metric,Score,Reasoning",
	}
	for _, m := range r.Metrics {
		lines = append(lines, quoteRow(m.Metric, strconv.Itoa(m.Score), m.Reasoning))
	}

	_, err := io.WriteString(w, strings.Join(lines, "\n"))
	return err
}

func quoteRow(fields ...string) string {
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(quoted, ",")
}
