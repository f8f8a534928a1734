package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/chemaudit/chemaudit/internal/store/model"
)

const (
	resultsSheet = "Results"
	summarySheet = "Summary"
)

var sheetHeader = []string{
	"Index", "Name", "Input SMILES", "Canonical SMILES", "Overall Score", "Status",
	"Error", "InChIKey", "Issues", "Failed Checks", "Alerts", "ML Readiness",
}

var sheetWidths = []float64{8, 20, 40, 40, 14, 10, 30, 30, 8, 40, 30, 14}

// SheetRenderer writes a workbook with a results sheet and a summary sheet.
type SheetRenderer struct{}

func NewSheetRenderer() *SheetRenderer {
	return &SheetRenderer{}
}

func (r *SheetRenderer) SupportedFormat() Format { return FormatSheet }
func (r *SheetRenderer) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}
func (r *SheetRenderer) Extension() string { return "xlsx" }

func (r *SheetRenderer) Render(data *Data) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	if err := r.writeResults(f, data.Items); err != nil {
		return nil, err
	}
	if err := r.writeSummary(f, data); err != nil {
		return nil, err
	}

	stamp := data.GeneratedAt.UTC().Format("2006-01-02T15:04:05Z")
	if err := f.SetDocProps(&excelize.DocProperties{
		Title:    "Batch " + data.Job.ID,
		Creator:  "chemaudit",
		Created:  stamp,
		Modified: stamp,
	}); err != nil {
		return nil, fmt.Errorf("failed to set workbook properties: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *SheetRenderer) writeResults(f *excelize.File, items []model.ResultItem) error {
	if err := f.SetSheetRow(resultsSheet, "A1", &sheetHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(sheetHeader))
	if err := f.SetCellStyle(resultsSheet, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}
	for i, w := range sheetWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(resultsSheet, col, col, w); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i := range items {
		item := &items[i]
		row := []interface{}{
			item.Index, item.Name, item.Input, item.CanonicalSMILES, nil, string(item.Status),
			item.Error, item.CanonicalKey, nil, strings.Join(failedChecks(item), ", "),
			strings.Join(alertNames(item), ", "), nil,
		}
		if score, ok := item.Score(); ok {
			row[4] = score
			row[8] = len(item.Validation.Issues)
		}
		if item.Scoring != nil {
			row[11] = item.Scoring.MLReadiness.Score
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(resultsSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", item.Index, err)
		}
	}

	last := len(items) + 1
	if err := f.SetPanes(resultsSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}
	if err := f.AutoFilter(resultsSheet, fmt.Sprintf("A1:%s%d", lastCol, last), nil); err != nil {
		return fmt.Errorf("failed to add filter: %w", err)
	}
	if len(items) > 0 {
		return r.colourScores(f, fmt.Sprintf("E2:E%d", last))
	}
	return nil
}

// colourScores shades scores of 80 and above green and scores below 50 red.
func (r *SheetRenderer) colourScores(f *excelize.File, ref string) error {
	rules := []struct {
		criteria string
		value    string
		colour   string
	}{
		{">=", "80", "C6EFCE"},
		{"between", "", "FFEB9C"},
		{"<", "50", "FFC7CE"},
	}
	var opts []excelize.ConditionalFormatOptions
	for _, rule := range rules {
		style, err := f.NewConditionalStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{rule.colour}, Pattern: 1},
		})
		if err != nil {
			return fmt.Errorf("failed to create score style: %w", err)
		}
		opt := excelize.ConditionalFormatOptions{Type: "cell", Criteria: rule.criteria, Format: &style, Value: rule.value}
		if rule.criteria == "between" {
			opt.MinValue, opt.MaxValue, opt.Value = "50", "79", ""
		}
		opts = append(opts, opt)
	}
	if err := f.SetConditionalFormat(resultsSheet, ref, opts); err != nil {
		return fmt.Errorf("failed to add score formatting: %w", err)
	}
	return nil
}

func (r *SheetRenderer) writeSummary(f *excelize.File, data *Data) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to add summary sheet: %w", err)
	}
	rows := [][]interface{}{
		{"Job ID", data.Job.ID},
		{"Status", string(data.Job.Status)},
		{"Exported Results", len(data.Items)},
	}
	if s := data.Statistics; s != nil {
		rows = append(rows,
			[]interface{}{"Total", s.Total},
			[]interface{}{"Successful", s.Successful},
			[]interface{}{"Errors", s.Errors},
			[]interface{}{"Average Validation Score", optional(s.AvgValidationScore)},
			[]interface{}{"Average ML Readiness Score", optional(s.AvgMLReadinessScore)},
			[]interface{}{"Processing Time (s)", s.ProcessingTimeSeconds},
		)
		for _, bucket := range []string{model.BucketExcellent, model.BucketGood, model.BucketModerate, model.BucketPoor} {
			rows = append(rows, []interface{}{"Score " + bucket, s.ScoreDistribution[bucket]})
		}
	}
	for i := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
	}
	return f.SetColWidth(summarySheet, "A", "A", 30)
}

func optional(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}
