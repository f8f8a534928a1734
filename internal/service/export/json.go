package export

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/chemaudit/chemaudit/internal/store/model"
)

type jsonMetadata struct {
	JobID        string            `json:"job_id"`
	Status       model.JobStatus   `json:"status"`
	ExportedAt   time.Time         `json:"exported_at"`
	TotalResults int               `json:"total_results"`
	Format       Format            `json:"format"`
	Statistics   *model.Statistics `json:"statistics,omitempty"`
}

type jsonDocument struct {
	Metadata jsonMetadata       `json:"metadata"`
	Results  []model.ResultItem `json:"results"`
}

type JSONRenderer struct{}

func NewJSONRenderer() *JSONRenderer {
	return &JSONRenderer{}
}

func (r *JSONRenderer) SupportedFormat() Format { return FormatJSON }
func (r *JSONRenderer) ContentType() string     { return "application/json" }
func (r *JSONRenderer) Extension() string       { return "json" }

func (r *JSONRenderer) Render(data *Data) ([]byte, error) {
	doc := jsonDocument{
		Metadata: jsonMetadata{
			JobID:        data.Job.ID,
			Status:       data.Job.Status,
			ExportedAt:   data.GeneratedAt.UTC(),
			TotalResults: len(data.Items),
			Format:       FormatJSON,
			Statistics:   data.Statistics,
		},
		Results: data.Items,
	}
	if doc.Results == nil {
		doc.Results = []model.ResultItem{}
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode results: %w", err)
	}
	return out, nil
}
