package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/chemaudit/chemaudit/internal/store/model"
)

// Client is an HTTP client for the chemaudit /api/v1 endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(e.Body, &body); err == nil && body.Error != "" {
		return fmt.Sprintf("server returned status %d: %s", e.StatusCode, body.Error)
	}
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, strings.TrimSpace(string(e.Body)))
}

type ValidateRequest struct {
	Molecule         string   `json:"molecule"`
	Format           string   `json:"format,omitempty"`
	Checks           []string `json:"checks,omitempty"`
	PreserveAromatic *bool    `json:"preserve_aromatic,omitempty"`
}

type BatchUpload struct {
	Filename               string
	Data                   io.Reader
	StructureColumn        string
	NameColumn             string
	Checks                 []string
	Catalogs               []string
	IncludeAlerts          bool
	IncludeScoring         bool
	IncludeStandardization bool
}

type BatchSubmitted struct {
	JobID          string          `json:"job_id"`
	Status         model.JobStatus `json:"status"`
	TotalMolecules int             `json:"total_molecules"`
	Queue          string          `json:"queue"`
}

// ExportRequest selects the exported results. Empty fields leave the server defaults.
type ExportRequest struct {
	Format   string
	ScoreMin *int
	ScoreMax *int
	Indices  []int
}

func (c *Client) Validate(ctx context.Context, req ValidateRequest) (json.RawMessage, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.doJSON(ctx, http.MethodPost, "/api/v1/validate", bytes.NewReader(body), "application/json")
}

func (c *Client) Checks(ctx context.Context) (json.RawMessage, error) {
	return c.doJSON(ctx, http.MethodGet, "/api/v1/checks", nil, "")
}

func (c *Client) SubmitBatch(ctx context.Context, upload BatchUpload) (*BatchSubmitted, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", upload.Filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, upload.Data); err != nil {
		return nil, fmt.Errorf("failed to copy file into multipart: %w", err)
	}
	fields := map[string]string{
		"smiles_column":           upload.StructureColumn,
		"name_column":             upload.NameColumn,
		"checks":                  strings.Join(upload.Checks, ","),
		"catalogs":                strings.Join(upload.Catalogs, ","),
		"include_alerts":          strconv.FormatBool(upload.IncludeAlerts),
		"include_scoring":         strconv.FormatBool(upload.IncludeScoring),
		"include_standardization": strconv.FormatBool(upload.IncludeStandardization),
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	raw, err := c.doJSON(ctx, http.MethodPost, "/api/v1/batch/", &buf, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	var submitted BatchSubmitted
	if err := json.Unmarshal(raw, &submitted); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &submitted, nil
}

func (c *Client) GetBatch(ctx context.Context, id string) (*model.Job, error) {
	return c.job(ctx, http.MethodGet, "/api/v1/batch/"+url.PathEscape(id)+"/")
}

func (c *Client) CancelBatch(ctx context.Context, id string) (*model.Job, error) {
	return c.job(ctx, http.MethodPost, "/api/v1/batch/"+url.PathEscape(id)+"/cancel")
}

func (c *Client) DeleteBatch(ctx context.Context, id string) error {
	_, err := c.doJSON(ctx, http.MethodDelete, "/api/v1/batch/"+url.PathEscape(id)+"/", nil, "")
	return err
}

func (c *Client) Results(ctx context.Context, id string, page, pageSize int) (json.RawMessage, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		q.Set("page_size", strconv.Itoa(pageSize))
	}
	path := "/api/v1/batch/" + url.PathEscape(id) + "/results"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	return c.doJSON(ctx, http.MethodGet, path, nil, "")
}

func (c *Client) Stats(ctx context.Context, id string) (json.RawMessage, error) {
	return c.doJSON(ctx, http.MethodGet, "/api/v1/batch/"+url.PathEscape(id)+"/stats", nil, "")
}

// WaitBatch polls the job until it reaches a terminal status.
func (c *Client) WaitBatch(ctx context.Context, id string, interval time.Duration, onProgress func(*model.Job)) (*model.Job, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		job, err := c.GetBatch(ctx, id)
		if err != nil {
			return nil, err
		}
		if onProgress != nil {
			onProgress(job)
		}
		if job.Status.IsTerminal() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Export streams the exported file into w and returns the filename the server proposed.
func (c *Client) Export(ctx context.Context, id string, req ExportRequest, w io.Writer) (string, int64, error) {
	q := url.Values{}
	if req.Format != "" {
		q.Set("format", req.Format)
	}
	if req.ScoreMin != nil {
		q.Set("score_min", strconv.Itoa(*req.ScoreMin))
	}
	if req.ScoreMax != nil {
		q.Set("score_max", strconv.Itoa(*req.ScoreMax))
	}
	if len(req.Indices) > 0 {
		parts := make([]string, 0, len(req.Indices))
		for _, i := range req.Indices {
			parts = append(parts, strconv.Itoa(i))
		}
		q.Set("indices", strings.Join(parts, ","))
	}
	path := "/api/v1/batch/" + url.PathEscape(id) + "/export"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	resp, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return "", 0, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	filename := ""
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		filename = params["filename"]
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return filename, n, fmt.Errorf("failed to read export: %w", err)
	}
	return filename, n, nil
}

// Health returns the health report. A degraded service answers 503 with a report, which is not an error here.
func (c *Client) Health(ctx context.Context) (json.RawMessage, error) {
	raw, err := c.doJSON(ctx, http.MethodGet, "/api/v1/health", nil, "")
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusServiceUnavailable {
		return apiErr.Body, nil
	}
	return raw, err
}

func (c *Client) job(ctx context.Context, method, path string) (*model.Job, error) {
	raw, err := c.doJSON(ctx, method, path, nil, "")
	if err != nil {
		return nil, err
	}
	var job model.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &job, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body io.Reader, contentType string) (json.RawMessage, error) {
	resp, err := c.do(ctx, method, path, body, contentType)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return bodyBytes, nil
}

// do sends the request and turns any non-2xx status into an *APIError.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call chemaudit service: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer func() {
			_ = resp.Body.Close()
		}()
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: bodyBytes}
	}
	return resp, nil
}
