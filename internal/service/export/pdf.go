package export

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/go-pdf/fpdf"

	"github.com/chemaudit/chemaudit/internal/store/model"
)

const (
	pdfMargin   = 15.0
	pdfLine     = 6.0
	pdfBarWidth = 60.0
	pdfMaxRows  = 500
)

// PDFRenderer writes a summary report with a score bar per result.
type PDFRenderer struct{}

func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{}
}

func (r *PDFRenderer) SupportedFormat() Format { return FormatPDF }
func (r *PDFRenderer) ContentType() string     { return "application/pdf" }
func (r *PDFRenderer) Extension() string       { return "pdf" }

func (r *PDFRenderer) Render(data *Data) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(data.GeneratedAt)
	pdf.SetModificationDate(data.GeneratedAt)
	pdf.SetCatalogSort(true)
	pdf.SetTitle("ChemAudit batch report "+data.Job.ID, true)
	pdf.SetCreator("chemaudit", true)
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-pdfMargin)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "Batch Validation Report", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, pdfLine, "Job: "+data.Job.ID, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, pdfLine, "Status: "+string(data.Job.Status), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, pdfLine, "Generated: "+data.GeneratedAt.UTC().Format("2006-01-02 15:04:05 UTC"), "", 1, "L", false, 0, "")
	pdf.Ln(pdfLine)

	if data.Statistics != nil {
		writeStatistics(pdf, data.Statistics)
	}

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Results", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(15, pdfLine, "Index", "B", 0, "L", false, 0, "")
	pdf.CellFormat(55, pdfLine, "Name", "B", 0, "L", false, 0, "")
	pdf.CellFormat(20, pdfLine, "Score", "B", 0, "R", false, 0, "")
	pdf.CellFormat(90, pdfLine, "", "B", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	for i := range data.Items {
		if i == pdfMaxRows {
			pdf.Ln(2)
			pdf.CellFormat(0, pdfLine, fmt.Sprintf("%d further results omitted", len(data.Items)-pdfMaxRows), "", 1, "L", false, 0, "")
			break
		}
		writeResultRow(pdf, tr, &data.Items[i])
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write report: %w", err)
	}
	return buf.Bytes(), nil
}

func writeStatistics(pdf *fpdf.Fpdf, s *model.Statistics) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Summary", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	lines := []string{
		fmt.Sprintf("Molecules: %d (%d successful, %d errors)", s.Total, s.Successful, s.Errors),
	}
	if s.AvgValidationScore != nil {
		lines = append(lines, fmt.Sprintf("Average validation score: %.1f", *s.AvgValidationScore))
	}
	if s.AvgMLReadinessScore != nil {
		lines = append(lines, fmt.Sprintf("Average ML readiness score: %.1f", *s.AvgMLReadinessScore))
	}
	lines = append(lines, fmt.Sprintf("Processing time: %.2fs", s.ProcessingTimeSeconds))
	for _, bucket := range []string{model.BucketExcellent, model.BucketGood, model.BucketModerate, model.BucketPoor} {
		lines = append(lines, fmt.Sprintf("Score %s: %d", bucket, s.ScoreDistribution[bucket]))
	}
	if len(s.FailedChecks) > 0 {
		names := make([]string, 0, len(s.FailedChecks))
		for name := range s.FailedChecks {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			lines = append(lines, fmt.Sprintf("Failed %s: %d", name, s.FailedChecks[name]))
		}
	}
	for _, line := range lines {
		pdf.CellFormat(0, pdfLine, line, "", 1, "L", false, 0, "")
	}
	pdf.Ln(pdfLine)
}

func writeResultRow(pdf *fpdf.Fpdf, tr func(string) string, item *model.ResultItem) {
	pdf.CellFormat(15, pdfLine, fmt.Sprintf("%d", item.Index), "", 0, "L", false, 0, "")
	pdf.CellFormat(55, pdfLine, tr(truncate(item.Name, 32)), "", 0, "L", false, 0, "")

	score, ok := item.Score()
	if !ok {
		pdf.CellFormat(20, pdfLine, "-", "", 0, "R", false, 0, "")
		pdf.CellFormat(90, pdfLine, tr(truncate(item.Error, 60)), "", 1, "L", false, 0, "")
		return
	}
	pdf.CellFormat(20, pdfLine, fmt.Sprintf("%d", score), "", 0, "R", false, 0, "")

	x, y := pdf.GetX()+4, pdf.GetY()+1.5
	red, green, blue := barColour(score)
	pdf.SetFillColor(230, 230, 230)
	pdf.Rect(x, y, pdfBarWidth, pdfLine-3, "F")
	pdf.SetFillColor(red, green, blue)
	pdf.Rect(x, y, pdfBarWidth*float64(score)/100, pdfLine-3, "F")
	pdf.Ln(pdfLine)
}

func barColour(score int) (int, int, int) {
	switch {
	case score >= 80:
		return 84, 160, 84
	case score >= 50:
		return 230, 180, 40
	}
	return 200, 60, 60
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
