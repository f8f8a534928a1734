package v1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/chemaudit/chemaudit/internal/alerts"
	"github.com/chemaudit/chemaudit/internal/chemkit"
	"github.com/chemaudit/chemaudit/internal/events"
	v1 "github.com/chemaudit/chemaudit/internal/handlers/v1"
	"github.com/chemaudit/chemaudit/internal/jobs"
	"github.com/chemaudit/chemaudit/internal/kvstore"
	"github.com/chemaudit/chemaudit/internal/progress"
	"github.com/chemaudit/chemaudit/internal/service"
	"github.com/chemaudit/chemaudit/internal/service/export"
	"github.com/chemaudit/chemaudit/internal/standardize"
	"github.com/chemaudit/chemaudit/internal/store"
	"github.com/chemaudit/chemaudit/internal/store/model"
	"github.com/chemaudit/chemaudit/internal/structure"
	"github.com/chemaudit/chemaudit/internal/usage"
	"github.com/chemaudit/chemaudit/internal/validation/checks"
)

const scenarioCSV = "smiles,name\nCCO,Ethanol\nCC(=O)O,Acetic\nc1ccccc1,Benzene\nINVALID,Bad\nC,Methane\n"

var _ = Describe("v1 handlers", Ordered, func() {
	var (
		mr         *miniredis.Miniredis
		s          store.Store
		producer   *events.EventProducer
		recorder   *usage.Recorder
		hub        *progress.Hub
		batches    *service.BatchService
		server     *httptest.Server
		stopWorker context.CancelFunc
	)

	BeforeAll(func() {
		var err error
		mr, err = miniredis.Run()
		Expect(err).To(BeNil())
		kv := kvstore.NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "default")
		rl := kvstore.NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr(), DB: 1}), "ratelimit")
		s = store.NewStore(kv, store.Options{Retention: time.Hour, CacheTTL: time.Minute, CacheEnabled: true})
		producer = events.NewEventProducer(events.NewKVWriter(kv))
		tracker := progress.NewTracker(s, producer)
		queue := jobs.NewQueue(kv, 3, 5*time.Millisecond)
		recorder = usage.NewRecorder(kv, time.Hour)
		hub = progress.NewHub(kv, s.Jobs())

		kit := chemkit.NewBuiltin()
		parser := structure.NewParser(kit, 10000)
		screener, err := alerts.NewScreener(kit)
		Expect(err).To(BeNil())
		processor := jobs.NewProcessor(parser, checks.NewEngine(), screener, s.Cache())
		dispatcher := jobs.NewDispatcher(queue, tracker, 2, 500)
		batches = service.NewBatchService(s, processor, dispatcher, tracker, recorder, service.BatchLimits{MaxFileSize: 1 << 20, MaxBatchSize: 100})

		h := v1.NewServiceHandler(v1.Services{
			Validation:  service.NewValidationService(processor, dispatcher, recorder),
			Batches:     batches,
			Exports:     service.NewExportService(batches, s, export.NewFactory(parser)),
			Alerts:      service.NewAlertsService(parser, screener),
			Standardize: service.NewStandardizeService(parser, standardize.NewPipeline(kit)),
			Health:      service.NewHealthService(&kvstore.Namespaces{Default: kv, RateLimit: rl}, queue, kit),
			Hub:         hub,
		}, v1.Options{MaxFileSize: 1 << 20})

		router := chi.NewRouter()
		router.Route("/api/v1", h.Routes)
		server = httptest.NewServer(router)

		var wctx context.Context
		wctx, stopWorker = context.WithCancel(context.Background())
		w := jobs.NewWorker("w-http", jobs.Tiers, queue, processor, s, tracker, jobs.WorkerOptions{WriteBackoff: time.Millisecond})
		go func() { _ = w.Run(wctx) }()
	})

	AfterAll(func() {
		stopWorker()
		server.Close()
		hub.Close()
		_ = batches.Close(context.Background())
		_ = recorder.Close(context.Background())
		_ = producer.Close()
		_ = s.Close()
		mr.Close()
	})

	postJSON := func(path string, body any) *http.Response {
		b, err := json.Marshal(body)
		Expect(err).To(BeNil())
		resp, err := http.Post(server.URL+path, "application/json", bytes.NewReader(b))
		Expect(err).To(BeNil())
		return resp
	}

	decode := func(resp *http.Response, into any) {
		defer resp.Body.Close()
		Expect(json.NewDecoder(resp.Body).Decode(into)).To(Succeed())
	}

	upload := func(content string) string {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		part, err := mw.CreateFormFile("file", "mols.csv")
		Expect(err).To(BeNil())
		_, _ = part.Write([]byte(content))
		Expect(mw.WriteField("include_scoring", "true")).To(Succeed())
		Expect(mw.Close()).To(Succeed())

		resp, err := http.Post(server.URL+"/api/v1/batch", mw.FormDataContentType(), &buf)
		Expect(err).To(BeNil())
		Expect(resp.StatusCode).To(Equal(http.StatusAccepted))
		var created v1.BatchCreated
		decode(resp, &created)
		Expect(created.Status).To(Equal(model.JobStatusPending))
		return created.JobID
	}

	waitComplete := func(id string) {
		Eventually(func() model.JobStatus {
			resp, err := http.Get(server.URL + "/api/v1/batch/" + id)
			Expect(err).To(BeNil())
			var job model.Job
			decode(resp, &job)
			return job.Status
		}, 5*time.Second, 20*time.Millisecond).Should(Equal(model.JobStatusComplete))
	}

	Context("validate", func() {
		It("validates ethanol", func() {
			resp := postJSON("/api/v1/validate", map[string]any{"molecule": "CCO"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var report jobs.Report
			decode(resp, &report)
			Expect(report.OverallScore).To(BeNumerically(">=", 80))
			Expect(report.MoleculeInfo.MolecularFormula).To(Equal("C2H6O"))
			Expect(report.MoleculeInfo.NumAtoms).To(Equal(3))
			Expect(report.AllChecks).To(HaveLen(11))
		})

		It("returns the parse error under detail", func() {
			resp := postJSON("/api/v1/validate", map[string]any{"molecule": "invalid_smiles_xyz"})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			var body struct {
				Error  string `json:"error"`
				Detail struct {
					Error  string   `json:"error"`
					Errors []string `json:"errors"`
				} `json:"detail"`
			}
			decode(resp, &body)
			Expect(body.Error).NotTo(BeEmpty())
			Expect(body.Detail.Error).NotTo(BeEmpty())
			Expect(body.Detail.Errors).NotTo(BeEmpty())
		})

		It("rejects a body failing the request rules", func() {
			resp := postJSON("/api/v1/validate", map[string]any{"format": "smiles"})
			Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
			resp.Body.Close()

			resp = postJSON("/api/v1/validate", map[string]any{"molecule": "CCO", "checks": []string{"bogus"}})
			Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
			resp.Body.Close()
		})

		It("validates through the high priority queue", func() {
			resp := postJSON("/api/v1/validate/async?timeout=5", map[string]any{"molecule": "CCO"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var report jobs.Report
			decode(resp, &report)
			Expect(report.MoleculeInfo.MolecularFormula).To(Equal("C2H6O"))
		})

		It("rejects an async timeout outside one to sixty seconds", func() {
			for _, timeout := range []string{"0", "0.5", "61", "-3"} {
				resp := postJSON("/api/v1/validate/async?timeout="+timeout, map[string]any{"molecule": "CCO"})
				Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity), "timeout=%s", timeout)
				var body v1.ErrorResponse
				decode(resp, &body)
				Expect(body.Error).To(Equal("timeout must be between 1 and 60 seconds"))
			}

			resp := postJSON("/api/v1/validate/async?timeout=soon", map[string]any{"molecule": "CCO"})
			Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
			resp.Body.Close()
		})

		It("lists checks", func() {
			resp, err := http.Get(server.URL + "/api/v1/checks")
			Expect(err).To(BeNil())
			var byCategory map[string][]service.CheckInfo
			decode(resp, &byCategory)
			total := 0
			for _, infos := range byCategory {
				total += len(infos)
			}
			Expect(total).To(Equal(11))
		})
	})

	Context("alerts and standardize", func() {
		It("answers the alert and standardize endpoints", func() {
			resp := postJSON("/api/v1/alerts/quick-check", map[string]any{"molecule": "CCO"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			resp.Body.Close()

			resp, err := http.Get(server.URL + "/api/v1/alerts/catalogs")
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			resp.Body.Close()

			resp = postJSON("/api/v1/standardize", map[string]any{"molecule": "CC(=O)[O-].[Na+]"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var out standardize.Outcome
			decode(resp, &out)
			Expect(out.Changed).To(BeTrue())
		})
	})

	Context("batch", func() {
		It("runs an uploaded batch and exports the filtered results", func() {
			id := upload(scenarioCSV)
			waitComplete(id)

			resp, err := http.Get(server.URL + "/api/v1/batch/" + id + "/results?page=1&page_size=10")
			Expect(err).To(BeNil())
			var page struct {
				Results    []model.ResultItem `json:"results"`
				Statistics model.Statistics   `json:"statistics"`
			}
			decode(resp, &page)
			Expect(page.Results).To(HaveLen(5))
			Expect(page.Statistics.Errors).To(Equal(1))

			resp, err = http.Get(server.URL + "/api/v1/batch/" + id + "/export?format=tabular-csv&score_min=80&score_max=100")
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("text/csv"))
			Expect(resp.Header.Get("Content-Disposition")).To(ContainSubstring("batch_" + id[:8] + "_"))
			var buf bytes.Buffer
			_, _ = buf.ReadFrom(resp.Body)
			resp.Body.Close()
			Expect(buf.String()).To(HavePrefix("index,name,input_smiles,canonical_smiles,overall_score,"))

			resp = postJSON("/api/v1/batch/"+id+"/export", map[string]any{"format": "json", "indices": []int{999}})
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			resp.Body.Close()
		})

		It("streams a terminal snapshot and closes", func() {
			id := upload(scenarioCSV)
			waitComplete(id)

			url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/ws/batch/" + id
			conn, _, err := websocket.DefaultDialer.Dial(url, nil)
			Expect(err).To(BeNil())
			defer conn.Close()

			var ev events.ProgressEvent
			Expect(conn.ReadJSON(&ev)).To(Succeed())
			Expect(ev.Status).To(Equal(string(model.JobStatusComplete)))
			Expect(ev.Progress).To(Equal(100))
			_, _, err = conn.ReadMessage()
			Expect(err).To(HaveOccurred())
		})

		It("cancels and deletes", func() {
			id := upload(scenarioCSV)
			waitComplete(id)

			resp, err := http.Post(server.URL+"/api/v1/batch/"+id+"/cancel", "application/json", nil)
			Expect(err).To(BeNil())
			var job model.Job
			decode(resp, &job)
			Expect(job.Status).To(Equal(model.JobStatusComplete))

			req, _ := http.NewRequest(http.MethodDelete, server.URL+"/api/v1/batch/"+id, nil)
			resp, err = http.DefaultClient.Do(req)
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))

			resp, err = http.Get(server.URL + "/api/v1/batch/" + id)
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			resp.Body.Close()
		})

		It("reports unknown jobs and bad uploads", func() {
			resp, err := http.Get(server.URL + "/api/v1/batch/nope/stats")
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			resp.Body.Close()

			resp, err = http.Get(server.URL + "/api/v1/ws/batch/nope")
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			resp.Body.Close()

			resp, err = http.Post(server.URL+"/api/v1/batch", "text/plain", strings.NewReader("x"))
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			resp.Body.Close()
		})
	})

	Context("health", func() {
		It("reports both namespaces", func() {
			resp, err := http.Get(server.URL + "/api/v1/health")
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var report service.HealthReport
			decode(resp, &report)
			Expect(report.Redis).To(Equal(map[string]string{"default": "ok", "ratelimit": "ok"}))
		})
	})
})
