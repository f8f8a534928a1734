package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
)

var csvHeader = []string{
	"index", "name", "input_smiles", "canonical_smiles", "overall_score", "status", "error",
	"inchikey", "num_issues", "failed_checks", "alert_count", "alerts", "ml_readiness_score",
	"lipinski_violations", "standardized_smiles", "qed_score", "sa_score", "safety_alerts",
}

type CSVRenderer struct{}

func NewCSVRenderer() *CSVRenderer {
	return &CSVRenderer{}
}

func (r *CSVRenderer) SupportedFormat() Format { return FormatCSV }
func (r *CSVRenderer) ContentType() string     { return "text/csv" }
func (r *CSVRenderer) Extension() string       { return "csv" }

func (r *CSVRenderer) Render(data *Data) ([]byte, error) {
	csvRows := [][]string{csvHeader}
	for i := range data.Items {
		item := &data.Items[i]
		row := []string{
			strconv.Itoa(item.Index),
			item.Name,
			item.Input,
			item.CanonicalSMILES,
			scoreText(item),
			string(item.Status),
			item.Error,
			item.CanonicalKey,
			"",
			strings.Join(failedChecks(item), ";"),
			"",
			strings.Join(alertNames(item), ";"),
			"",
			"",
			"",
			"",
			"",
			"",
		}
		if item.Validation != nil {
			row[8] = strconv.Itoa(len(item.Validation.Issues))
		}
		if item.Alerts != nil {
			row[10] = strconv.Itoa(item.Alerts.TotalAlerts)
		}
		if item.Scoring != nil {
			row[12] = strconv.Itoa(item.Scoring.MLReadiness.Score)
			row[13] = strconv.Itoa(item.Scoring.Lipinski.Violations)
			row[15] = strconv.FormatFloat(item.Scoring.Druglikeness.QED, 'f', 3, 64)
			row[16] = strconv.FormatFloat(item.Scoring.ADMET.SAScore, 'f', 2, 64)
			if item.Scoring.SafetyFilters != nil {
				row[17] = strconv.Itoa(item.Scoring.SafetyFilters.TotalAlerts)
			}
		}
		if item.Standardization != nil {
			row[14] = item.Standardization.StandardizedSMILES
		}
		csvRows = append(csvRows, row)
	}
	return r.convertRowsToCSV(csvRows)
}

func (r *CSVRenderer) convertRowsToCSV(csvRows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	for _, row := range csvRows {
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}
