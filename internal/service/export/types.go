package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/chemaudit/chemaudit/internal/store/model"
)

type Renderer interface {
	Render(data *Data) ([]byte, error)
	SupportedFormat() Format
	ContentType() string
	Extension() string
}

type Format string

const (
	FormatCSV   Format = "tabular-csv"
	FormatSheet Format = "tabular-sheet"
	FormatSDF   Format = "structure-file"
	FormatJSON  Format = "structured-json"
	FormatPDF   Format = "report-document"
)

var formatAliases = map[string]Format{
	"tabular-csv":     FormatCSV,
	"csv":             FormatCSV,
	"tabular-sheet":   FormatSheet,
	"excel":           FormatSheet,
	"xlsx":            FormatSheet,
	"structure-file":  FormatSDF,
	"sdf":             FormatSDF,
	"structured-json": FormatJSON,
	"json":            FormatJSON,
	"report-document": FormatPDF,
	"pdf":             FormatPDF,
}

// ParseFormat accepts the format tokens and their short aliases.
func ParseFormat(token string) (Format, error) {
	if f, ok := formatAliases[strings.ToLower(strings.TrimSpace(token))]; ok {
		return f, nil
	}
	return "", fmt.Errorf("unsupported export format: %s", token)
}

// Data is the filtered result set handed to a renderer.
type Data struct {
	Job         *model.Job
	Items       []model.ResultItem
	Statistics  *model.Statistics
	GeneratedAt time.Time
}

// Filename is batch_{id[:8]}_{YYYYMMDD_HHMMSS}.{ext}.
func Filename(jobID string, at time.Time, ext string) string {
	short := jobID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("batch_%s_%s.%s", short, at.UTC().Format("20060102_150405"), ext)
}

// scoreText is the overall score of item, empty when it has none.
func scoreText(item *model.ResultItem) string {
	if score, ok := item.Score(); ok {
		return fmt.Sprintf("%d", score)
	}
	return ""
}

func failedChecks(item *model.ResultItem) []string {
	if item.Validation == nil {
		return nil
	}
	return item.Validation.FailedChecks()
}

func alertNames(item *model.ResultItem) []string {
	if item.Alerts == nil {
		return nil
	}
	names := make([]string, 0, len(item.Alerts.Alerts))
	for _, a := range item.Alerts.Alerts {
		names = append(names, a.Catalog+":"+a.Name)
	}
	return names
}
