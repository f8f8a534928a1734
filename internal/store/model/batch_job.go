package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cast"
)

type JobStatus string

// Job status constants
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusComplete   JobStatus = "complete"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusComplete, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// AllowedFrom lists the states a job may be in to move to s.
func (s JobStatus) AllowedFrom() []JobStatus {
	switch s {
	case JobStatusProcessing:
		return []JobStatus{JobStatusPending}
	case JobStatusComplete, JobStatusFailed, JobStatusCancelled:
		return []JobStatus{JobStatusProcessing}
	}
	return nil
}

// JobOptions are the per-item processing options chosen at submission.
type JobOptions struct {
	Checks                 []string `json:"checks,omitempty"`
	IncludeAlerts          bool     `json:"include_alerts"`
	IncludeScoring         bool     `json:"include_scoring"`
	IncludeStandardization bool     `json:"include_standardization"`
	Catalogs               []string `json:"catalogs,omitempty"`
}

type Job struct {
	ID           string     `json:"job_id"`
	Status       JobStatus  `json:"status"`
	Total        int        `json:"total_molecules"`
	Processed    int        `json:"processed"`
	Success      int        `json:"successful"`
	Errors       int        `json:"errors"`
	Progress     int        `json:"progress"`
	EtaSeconds   *int       `json:"eta_seconds"`
	ErrorMessage *string    `json:"error_message"`
	ChunkSize    int        `json:"chunk_size"`
	Queue        string     `json:"queue"`
	Options      JobOptions `json:"options"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Elapsed is the processing time so far, or the total processing time of a terminal job.
func (j *Job) Elapsed(now time.Time) time.Duration {
	if j.StartedAt == nil {
		return 0
	}
	end := now
	if j.CompletedAt != nil {
		end = *j.CompletedAt
	}
	return end.Sub(*j.StartedAt)
}

// Hash field names of the job record.
const (
	FieldID          = "id"
	FieldStatus      = "status"
	FieldTotal       = "total"
	FieldProcessed   = "processed"
	FieldSuccess     = "success"
	FieldErrors      = "errors"
	FieldProgress    = "progress"
	FieldEta         = "eta_seconds"
	FieldError       = "error_message"
	FieldChunkSize   = "chunk_size"
	FieldQueue       = "queue"
	FieldOptions     = "options"
	FieldCreatedAt   = "created_at"
	FieldStartedAt   = "started_at"
	FieldUpdatedAt   = "updated_at"
	FieldCompletedAt = "completed_at"
)

func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func (j *Job) ToHash() (map[string]string, error) {
	opts, err := json.Marshal(j.Options)
	if err != nil {
		return nil, fmt.Errorf("encoding job options: %w", err)
	}
	h := map[string]string{
		FieldID:        j.ID,
		FieldStatus:    string(j.Status),
		FieldTotal:     strconv.Itoa(j.Total),
		FieldProcessed: strconv.Itoa(j.Processed),
		FieldSuccess:   strconv.Itoa(j.Success),
		FieldErrors:    strconv.Itoa(j.Errors),
		FieldProgress:  strconv.Itoa(j.Progress),
		FieldChunkSize: strconv.Itoa(j.ChunkSize),
		FieldQueue:     j.Queue,
		FieldOptions:   string(opts),
		FieldCreatedAt: FormatTime(j.CreatedAt),
		FieldUpdatedAt: FormatTime(j.UpdatedAt),
	}
	if j.EtaSeconds != nil {
		h[FieldEta] = strconv.Itoa(*j.EtaSeconds)
	}
	if j.ErrorMessage != nil {
		h[FieldError] = *j.ErrorMessage
	}
	if j.StartedAt != nil {
		h[FieldStartedAt] = FormatTime(*j.StartedAt)
	}
	if j.CompletedAt != nil {
		h[FieldCompletedAt] = FormatTime(*j.CompletedAt)
	}
	return h, nil
}

// JobFromHash decodes a job record. Missing counters read as zero.
func JobFromHash(h map[string]string) (*Job, error) {
	j := &Job{
		ID:        h[FieldID],
		Status:    JobStatus(h[FieldStatus]),
		Total:     cast.ToInt(h[FieldTotal]),
		Processed: cast.ToInt(h[FieldProcessed]),
		Success:   cast.ToInt(h[FieldSuccess]),
		Errors:    cast.ToInt(h[FieldErrors]),
		Progress:  cast.ToInt(h[FieldProgress]),
		ChunkSize: cast.ToInt(h[FieldChunkSize]),
		Queue:     h[FieldQueue],
	}
	if v, ok := h[FieldEta]; ok && v != "" {
		eta, err := cast.ToIntE(v)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", FieldEta, err)
		}
		j.EtaSeconds = &eta
	}
	if v, ok := h[FieldError]; ok && v != "" {
		msg := v
		j.ErrorMessage = &msg
	}
	if v := h[FieldOptions]; v != "" {
		if err := json.Unmarshal([]byte(v), &j.Options); err != nil {
			return nil, fmt.Errorf("decoding job options: %w", err)
		}
	}
	var err error
	if j.CreatedAt, err = parseTime(h[FieldCreatedAt]); err != nil {
		return nil, err
	}
	if j.UpdatedAt, err = parseTime(h[FieldUpdatedAt]); err != nil {
		return nil, err
	}
	if j.StartedAt, err = parseOptionalTime(h[FieldStartedAt]); err != nil {
		return nil, err
	}
	if j.CompletedAt, err = parseOptionalTime(h[FieldCompletedAt]); err != nil {
		return nil, err
	}
	return j, nil
}

func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("decoding timestamp %q: %w", v, err)
	}
	return t, nil
}

func parseOptionalTime(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := parseTime(v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
