package export

import (
	"fmt"
	"io"
	"math"

	"github.com/go-pdf/fpdf"

	"github.com/zhouzirui/catalyst/backend/internal/analysis/feasibility"
	"github.com/zhouzirui/catalyst/backend/internal/model/chat"
)

const (
	pageMargin   = 14.0
	contentWidth = 182.0
	lineHeight   = 5.0
	radarRadius  = 32.0
)

type rgb struct{ r, g, b int }

var (
	accent    = rgb{14, 165, 233}
	ink       = rgb{40, 40, 40}
	muted     = rgb{80, 80, 80}
	bandColor = map[feasibility.Band]rgb{
		feasibility.Strong:   {16, 185, 129},
		feasibility.Moderate: {234, 179, 8},
		feasibility.Weak:     {239, 68, 68},
	}
)

// WritePDF renders a one-document report of r: summary, metric table, radar
// chart and recommendation.
func WritePDF(w io.Writer, r *chat.AnalysisResult) error {
	if r == nil {
		return ErrNoAnalysis
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, 20, pageMargin)
	pdf.SetAutoPageBreak(true, 15)
	pdf.SetTitle("Market Feasibility Analysis", true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	setColor(pdf, ink)
	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(contentWidth, 10, "Market Feasibility Analysis", "", 1, "L", false, 0, "")

	setColor(pdf, accent)
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(contentWidth, 9, tr(r.IdeaName), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	setColor(pdf, muted)
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(contentWidth, lineHeight, tr(r.Summary), "", "L", false)
	pdf.Ln(5)

	setColor(pdf, ink)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(contentWidth, 7, fmt.Sprintf("Overall Score: %d/100 (%s)", r.OverallScore, feasibility.BandFor(r.OverallScore)), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	writeMetricTable(pdf, tr, r.Metrics)
	pdf.Ln(6)
	drawRadar(pdf, tr, r.Metrics)

	setColor(pdf, accent)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(contentWidth, 7, "Strategic Recommendation:", "", 1, "L", false, 0, "")
	setColor(pdf, ink)
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(contentWidth, lineHeight, tr(r.Recommendation), "", "L", false)

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return pdf.Output(w)
}

func setColor(pdf *fpdf.Fpdf, c rgb) {
	pdf.SetTextColor(c.r, c.g, c.b)
}

func writeMetricTable(pdf *fpdf.Fpdf, tr func(string) string, metrics []chat.AnalysisMetric) {
	const (
		metricW = 34.0
		scoreW  = 20.0
	)
	reasonW := contentWidth - metricW - scoreW

	pdf.SetFillColor(accent.r, accent.g, accent.b)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(metricW, 8, "Metric", "1", 0, "L", true, 0, "")
	pdf.CellFormat(scoreW, 8, "Score", "1", 0, "C", true, 0, "")
	pdf.CellFormat(reasonW, 8, "Reasoning", "1", 1, "L", true, 0, "")

	_, pageH := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	pdf.SetFont("Helvetica", "", 10)
	for _, m := range metrics {
		lines := pdf.SplitText(tr(m.Reasoning), reasonW-2)
		rowH := math.Max(float64(len(lines))*lineHeight, 8)
		if pdf.GetY()+rowH > pageH-bottom {
			pdf.AddPage()
		}

		x, y := pdf.GetXY()
		setColor(pdf, ink)
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(metricW, rowH, tr(m.Metric), "1", 0, "L", false, 0, "")

		c := bandColor[feasibility.BandFor(m.Score)]
		setColor(pdf, c)
		pdf.CellFormat(scoreW, rowH, fmt.Sprintf("%d", m.Score), "1", 0, "C", false, 0, "")

		setColor(pdf, muted)
		pdf.SetFont("Helvetica", "", 10)
		pdf.Rect(x+metricW+scoreW, y, reasonW, rowH, "D")
		pdf.SetXY(x+metricW+scoreW+1, y)
		for _, line := range lines {
			pdf.CellFormat(reasonW-2, lineHeight, line, "", 2, "L", false, 0, "")
		}
		pdf.SetXY(x, y+rowH)
	}
}

// drawRadar plots the metric scores as a polygon over a 0-100 grid. Fewer
// than three metrics do not form a polygon and are skipped.
func drawRadar(pdf *fpdf.Fpdf, tr func(string) string, metrics []chat.AnalysisMetric) {
	n := len(metrics)
	if n < 3 {
		return
	}

	_, pageH := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	size := 2*radarRadius + 16
	if pdf.GetY()+size > pageH-bottom {
		pdf.AddPage()
	}
	cx := pageMargin + contentWidth/2
	cy := pdf.GetY() + radarRadius + 8

	point := func(i int, scale float64) fpdf.PointType {
		angle := 2*math.Pi*float64(i)/float64(n) - math.Pi/2
		return fpdf.PointType{
			X: cx + radarRadius*scale*math.Cos(angle),
			Y: cy + radarRadius*scale*math.Sin(angle),
		}
	}

	pdf.SetLineWidth(0.2)
	pdf.SetDrawColor(200, 200, 200)
	for _, ring := range []float64{0.25, 0.5, 0.75, 1} {
		grid := make([]fpdf.PointType, n)
		for i := range grid {
			grid[i] = point(i, ring)
		}
		pdf.Polygon(grid, "D")
	}

	pdf.SetFont("Helvetica", "", 8)
	setColor(pdf, muted)
	for i, m := range metrics {
		edge := point(i, 1)
		pdf.Line(cx, cy, edge.X, edge.Y)
		label := point(i, 1.18)
		text := tr(m.Metric)
		pdf.Text(label.X-pdf.GetStringWidth(text)/2, label.Y+1, text)
	}

	scores := make([]fpdf.PointType, n)
	for i, m := range metrics {
		scores[i] = point(i, float64(m.Score)/100)
	}
	pdf.SetDrawColor(accent.r, accent.g, accent.b)
	pdf.SetFillColor(186, 230, 253)
	pdf.SetLineWidth(0.6)
	pdf.Polygon(scores, "DF")

	pdf.SetLineWidth(0.2)
	pdf.SetDrawColor(0, 0, 0)
	pdf.SetY(cy + radarRadius + 10)
}
