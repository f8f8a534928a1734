package client_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/chemaudit/chemaudit/internal/client"
	"github.com/chemaudit/chemaudit/internal/store/model"
)

var _ = Describe("chemaudit client", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("Validate", func() {
		It("posts the molecule as json", func() {
			var received client.ValidateRequest
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.Method).To(Equal(http.MethodPost))
				Expect(r.URL.Path).To(Equal("/api/v1/validate"))
				Expect(r.Header.Get("Content-Type")).To(Equal("application/json"))
				_ = json.NewDecoder(r.Body).Decode(&received)

				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"overall_score":100}`))
			}))
			defer server.Close()

			raw, err := client.NewClient(server.URL, 5*time.Second).Validate(ctx, client.ValidateRequest{Molecule: "CCO", Checks: []string{"all"}})
			Expect(err).To(BeNil())
			Expect(string(raw)).To(ContainSubstring("overall_score"))
			Expect(received.Molecule).To(Equal("CCO"))
			Expect(received.Checks).To(ConsistOf("all"))
		})

		It("returns an APIError carrying the server message", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"failed to parse molecule"}`))
			}))
			defer server.Close()

			_, err := client.NewClient(server.URL, 5*time.Second).Validate(ctx, client.ValidateRequest{Molecule: "C1CC"})
			Expect(err).NotTo(BeNil())
			apiErr, ok := err.(*client.APIError)
			Expect(ok).To(BeTrue())
			Expect(apiErr.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(err.Error()).To(ContainSubstring("failed to parse molecule"))
		})

		It("fails when the request cannot be built", func() {
			_, err := client.NewClient("http://[invalid-url", time.Second).Validate(ctx, client.ValidateRequest{Molecule: "C"})
			Expect(err).NotTo(BeNil())
			Expect(err.Error()).To(ContainSubstring("failed to create request"))
		})
	})

	Describe("SubmitBatch", func() {
		It("sends a multipart upload with the options", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.Path).To(Equal("/api/v1/batch/"))
				Expect(r.ParseMultipartForm(1 << 20)).To(Succeed())
				file, header, err := r.FormFile("file")
				Expect(err).To(BeNil())
				defer file.Close()
				Expect(header.Filename).To(Equal("input.csv"))
				Expect(r.FormValue("smiles_column")).To(Equal("SMILES"))
				Expect(r.FormValue("include_alerts")).To(Equal("true"))
				Expect(r.FormValue("checks")).To(Equal("valence,kekulization"))
				Expect(r.FormValue("name_column")).To(BeEmpty())

				w.WriteHeader(http.StatusAccepted)
				_, _ = w.Write([]byte(`{"job_id":"abc","status":"pending","total_molecules":2,"queue":"high"}`))
			}))
			defer server.Close()

			submitted, err := client.NewClient(server.URL, 5*time.Second).SubmitBatch(ctx, client.BatchUpload{
				Filename:        "input.csv",
				Data:            strings.NewReader("SMILES\nCCO\nc1ccccc1\n"),
				StructureColumn: "SMILES",
				Checks:          []string{"valence", "kekulization"},
				IncludeAlerts:   true,
			})
			Expect(err).To(BeNil())
			Expect(submitted.JobID).To(Equal("abc"))
			Expect(submitted.Status).To(Equal(model.JobStatusPending))
			Expect(submitted.TotalMolecules).To(Equal(2))
		})
	})

	Describe("WaitBatch", func() {
		It("polls until the job is terminal", func() {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.Path).To(Equal("/api/v1/batch/abc/"))
				status := model.JobStatusProcessing
				if calls.Add(1) >= 3 {
					status = model.JobStatusComplete
				}
				_ = json.NewEncoder(w).Encode(model.Job{ID: "abc", Status: status})
			}))
			defer server.Close()

			var seen []model.JobStatus
			job, err := client.NewClient(server.URL, 5*time.Second).WaitBatch(ctx, "abc", 10*time.Millisecond, func(j *model.Job) {
				seen = append(seen, j.Status)
			})
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusComplete))
			Expect(seen).To(HaveLen(3))
		})
	})

	Describe("Export", func() {
		It("streams the body and reports the server filename", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.Path).To(Equal("/api/v1/batch/abc/export"))
				Expect(r.URL.Query().Get("format")).To(Equal("csv"))
				Expect(r.URL.Query().Get("score_min")).To(Equal("50"))
				Expect(r.URL.Query().Get("indices")).To(Equal("0,2"))
				w.Header().Set("Content-Disposition", `attachment; filename="batch_abc_20260101_000000.csv"`)
				_, _ = w.Write([]byte("index,name\n0,a\n"))
			}))
			defer server.Close()

			lo := 50
			var out bytes.Buffer
			name, n, err := client.NewClient(server.URL, 5*time.Second).Export(ctx, "abc",
				client.ExportRequest{Format: "csv", ScoreMin: &lo, Indices: []int{0, 2}}, &out)
			Expect(err).To(BeNil())
			Expect(name).To(Equal("batch_abc_20260101_000000.csv"))
			Expect(n).To(Equal(int64(out.Len())))
			Expect(out.String()).To(HavePrefix("index,name"))
		})
	})

	Describe("Health", func() {
		It("returns the degraded report instead of an error", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
			}))
			defer server.Close()

			raw, err := client.NewClient(server.URL, 5*time.Second).Health(ctx)
			Expect(err).To(BeNil())
			Expect(string(raw)).To(ContainSubstring("degraded"))
		})
	})
})
