// Package export renders an analysis result as CSV or PDF for download.
package export

import (
	"errors"
	"strings"

	"github.com/zhouzirui/catalyst/backend/internal/model/chat"
)

// ErrNoAnalysis is returned when there is no result to export.
var ErrNoAnalysis = errors.New("no analysis to export")

const (
	csvSuffix = "_analysis.csv"
	pdfSuffix = "_report.pdf"
)

// CSVFileName is the download name for the CSV export of r.
func CSVFileName(r *chat.AnalysisResult) string {
	return baseName(r) + csvSuffix
}

// PDFFileName is the download name for the PDF report of r.
func PDFFileName(r *chat.AnalysisResult) string {
	return baseName(r) + pdfSuffix
}

// baseName lowercases the idea name and replaces every character outside
// [a-z0-9] with an underscore.
func baseName(r *chat.AnalysisResult) string {
	if r == nil {
		return "analysis"
	}
	var b strings.Builder
	for _, c := range strings.ToLower(r.IdeaName) {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteRune(c)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
