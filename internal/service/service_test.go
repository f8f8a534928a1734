package service_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/chemaudit/chemaudit/internal/alerts"
	"github.com/chemaudit/chemaudit/internal/chemkit"
	"github.com/chemaudit/chemaudit/internal/events"
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

var _ = Describe("services", Ordered, func() {
	var (
		mr          *miniredis.Miniredis
		kv          kvstore.Store
		s           store.Store
		producer    *events.EventProducer
		recorder    *usage.Recorder
		queue       *jobs.Queue
		parser      *structure.Parser
		batches     *service.BatchService
		validations *service.ValidationService
		exports     *service.ExportService
		ctx         context.Context
		stopWorker  context.CancelFunc
	)

	BeforeAll(func() {
		var err error
		mr, err = miniredis.Run()
		Expect(err).To(BeNil())
		kv = kvstore.NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test")
		s = store.NewStore(kv, store.Options{Retention: time.Hour, CacheTTL: time.Minute, CacheEnabled: true})
		producer = events.NewEventProducer(events.NewKVWriter(kv))
		tracker := progress.NewTracker(s, producer)
		queue = jobs.NewQueue(kv, 3, 5*time.Millisecond)
		recorder = usage.NewRecorder(kv, time.Hour)

		kit := chemkit.NewBuiltin()
		parser = structure.NewParser(kit, 10000)
		screener, err := alerts.NewScreener(kit)
		Expect(err).To(BeNil())
		processor := jobs.NewProcessor(parser, checks.NewEngine(), screener, s.Cache())
		dispatcher := jobs.NewDispatcher(queue, tracker, 2, 500)

		batches = service.NewBatchService(s, processor, dispatcher, tracker, recorder, service.BatchLimits{MaxFileSize: 1 << 20, MaxBatchSize: 50})
		validations = service.NewValidationService(processor, dispatcher, recorder)
		exports = service.NewExportService(batches, s, export.NewFactory(parser))
		ctx = context.TODO()

		var wctx context.Context
		wctx, stopWorker = context.WithCancel(ctx)
		w := jobs.NewWorker("w-service", jobs.Tiers, queue, processor, s, tracker, jobs.WorkerOptions{WriteBackoff: time.Millisecond})
		go func() { _ = w.Run(wctx) }()
	})

	AfterAll(func() {
		stopWorker()
		Expect(batches.Close(ctx)).To(Succeed())
		Expect(recorder.Close(ctx)).To(Succeed())
		_ = producer.Close()
		_ = s.Close()
		mr.Close()
	})

	waitTerminal := func(id string) *model.Job {
		var job *model.Job
		Eventually(func() bool {
			var err error
			job, err = batches.Get(ctx, id)
			Expect(err).To(BeNil())
			return job.Status.IsTerminal()
		}, 5*time.Second, 10*time.Millisecond).Should(BeTrue())
		return job
	}

	Context("batch", func() {
		It("processes an uploaded file to completion", func() {
			job, err := batches.Create(ctx, service.Upload{Filename: "mols.csv", Data: []byte(scenarioCSV)})
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal(model.JobStatusPending))
			Expect(job.Total).To(Equal(5))
			Expect(job.Queue).To(Equal(jobs.QueueHigh))

			done := waitTerminal(job.ID)
			Expect(done.Status).To(Equal(model.JobStatusComplete))
			Expect(done.Processed).To(Equal(5))
			Expect(done.Success).To(Equal(4))
			Expect(done.Errors).To(Equal(1))

			page, err := batches.Results(ctx, job.ID, service.ResultsQuery{})
			Expect(err).To(BeNil())
			Expect(page.Items).To(HaveLen(5))
			Expect(page.Items[3].Status).To(Equal(model.ItemStatusError))
			Expect(page.Items[3].Error).To(ContainSubstring("Failed to parse SMILES"))
			Expect(page.Statistics.Total).To(Equal(5))

			errorsOnly, err := batches.Results(ctx, job.ID, service.ResultsQuery{Status: model.ItemStatusError})
			Expect(err).To(BeNil())
			Expect(errorsOnly.Items).To(HaveLen(1))

			stats, err := batches.Statistics(ctx, job.ID)
			Expect(err).To(BeNil())
			Expect(stats.Successful).To(Equal(4))
		})

		It("exports only the items within the score range", func() {
			job, err := batches.Create(ctx, service.Upload{Filename: "mols.csv", Data: []byte(scenarioCSV)})
			Expect(err).To(BeNil())
			waitTerminal(job.ID)

			lo, hi := 80, 100
			file, err := exports.Export(ctx, job.ID, export.FormatCSV, service.ResultsQuery{MinScore: &lo, MaxScore: &hi})
			Expect(err).To(BeNil())
			Expect(file.ContentType).To(Equal("text/csv"))
			Expect(file.Filename).To(HavePrefix(fmt.Sprintf("batch_%s_", job.ID[:8])))
			Expect(file.Filename).To(HaveSuffix(".csv"))

			rows, err := csv.NewReader(bytes.NewReader(file.Data)).ReadAll()
			Expect(err).To(BeNil())
			Expect(strings.Join(rows[0][:5], ",")).To(Equal("index,name,input_smiles,canonical_smiles,overall_score"))
			Expect(len(rows)).To(BeNumerically(">", 1))
			for _, row := range rows[1:] {
				score, err := strconv.Atoi(row[4])
				Expect(err).To(BeNil())
				Expect(score).To(BeNumerically(">=", 80))
			}

			again, err := exports.Export(ctx, job.ID, export.FormatCSV, service.ResultsQuery{MinScore: &lo, MaxScore: &hi})
			Expect(err).To(BeNil())
			Expect(again.Data).To(Equal(file.Data))
		})

		It("reports an export matching nothing as not found", func() {
			job, err := batches.Create(ctx, service.Upload{Filename: "mols.csv", Data: []byte(scenarioCSV)})
			Expect(err).To(BeNil())
			waitTerminal(job.ID)

			_, err = exports.Export(ctx, job.ID, export.FormatJSON, service.ResultsQuery{Indices: []int{999}})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrResourceNotFound{}))
		})

		It("rejects oversized and empty uploads", func() {
			_, err := batches.Create(ctx, service.Upload{Filename: "big.csv", Data: make([]byte, 2<<20)})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrFileTooLarge{}))

			var b strings.Builder
			b.WriteString("smiles\n")
			for i := 0; i < 51; i++ {
				b.WriteString("C\n")
			}
			_, err = batches.Create(ctx, service.Upload{Filename: "many.csv", Data: []byte(b.String())})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrBatchTooLarge{}))

			_, err = batches.Create(ctx, service.Upload{Filename: "empty.csv", Data: []byte("smiles\n")})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrFileCorrupted{}))

			_, err = batches.Create(ctx, service.Upload{Filename: "x.csv", Data: []byte("formula\nC\n")})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrFileCorrupted{}))
		})

		It("rejects uploads with unsafe content before creating a job", func() {
			for _, data := range []string{
				"smiles,name\nCCO,<script>alert(1)</script>\n",
				"\x7fELF\x02\x01\x01\x00",
				"smiles\nC\x00C\n",
			} {
				_, err := batches.Create(ctx, service.Upload{Filename: "mols.csv", Data: []byte(data)})
				Expect(err).To(BeAssignableToTypeOf(&service.ErrFileCorrupted{}))
				Expect(err.Error()).To(HavePrefix("Unsafe file content"))
			}
		})

		It("scores items with druglikeness, safety filters and admet", func() {
			job, err := batches.Create(ctx, service.Upload{
				Filename: "mols.csv",
				Data:     []byte("smiles\nCC(=O)Oc1ccccc1C(=O)O\nOc1ccccc1O\n"),
				Options:  model.JobOptions{IncludeScoring: true},
			})
			Expect(err).To(BeNil())
			Expect(waitTerminal(job.ID).Status).To(Equal(model.JobStatusComplete))

			page, err := batches.Results(ctx, job.ID, service.ResultsQuery{})
			Expect(err).To(BeNil())
			Expect(page.Items).To(HaveLen(2))
			aspirin := page.Items[0].Scoring
			Expect(aspirin).NotTo(BeNil())
			Expect(aspirin.Druglikeness.QED).To(BeNumerically(">", 0))
			Expect(aspirin.Druglikeness.LipinskiPassed).To(BeTrue())
			Expect(aspirin.ADMET.SAClassification).To(Equal("easy"))
			Expect(aspirin.ADMET.SolubilityClass).NotTo(BeEmpty())
			Expect(aspirin.SafetyFilters).NotTo(BeNil())

			catechol := page.Items[1].Scoring
			Expect(catechol.SafetyFilters.PAINSPassed).To(BeFalse())
			Expect(catechol.SafetyFilters.AllPassed).To(BeFalse())
		})

		It("rejects unknown checks before creating a job", func() {
			_, err := batches.Create(ctx, service.Upload{
				Filename: "mols.csv",
				Data:     []byte(scenarioCSV),
				Options:  model.JobOptions{Checks: []string{"no_such_check"}},
			})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrValidation{}))
		})

		It("returns a terminal job unchanged on cancel and removes it on delete", func() {
			job, err := batches.Create(ctx, service.Upload{Filename: "mols.csv", Data: []byte(scenarioCSV)})
			Expect(err).To(BeNil())
			waitTerminal(job.ID)

			cancelled, err := batches.Cancel(ctx, job.ID)
			Expect(err).To(BeNil())
			Expect(cancelled.Status).To(Equal(model.JobStatusComplete))

			Expect(batches.Delete(ctx, job.ID)).To(Succeed())
			_, err = batches.Get(ctx, job.ID)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrResourceNotFound{}))
			Expect(batches.Delete(ctx, job.ID)).To(BeAssignableToTypeOf(&service.ErrResourceNotFound{}))
		})

		It("reports unknown jobs as not found", func() {
			_, err := batches.Cancel(ctx, "missing")
			Expect(err).To(BeAssignableToTypeOf(&service.ErrResourceNotFound{}))
			_, err = batches.Results(ctx, "missing", service.ResultsQuery{})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrResourceNotFound{}))
		})
	})

	Context("validation", func() {
		It("validates a structure synchronously", func() {
			report, err := validations.Validate(ctx, jobs.ValidateRequest{Molecule: "CCO"})
			Expect(err).To(BeNil())
			Expect(report.OverallScore).To(BeNumerically(">=", 80))
			Expect(report.MoleculeInfo.MolecularFormula).To(Equal("C2H6O"))
			Expect(report.AllChecks).To(HaveLen(11))
		})

		It("wraps parse failures with their diagnostics", func() {
			_, err := validations.Validate(ctx, jobs.ValidateRequest{Molecule: "invalid_smiles_xyz"})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrParse{}))
			Expect(err.(*service.ErrParse).Errors).NotTo(BeEmpty())
		})

		It("rejects unknown checks", func() {
			_, err := validations.Validate(ctx, jobs.ValidateRequest{Molecule: "CCO", Checks: []string{"bogus"}})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrValidation{}))
		})

		It("validates through a worker", func() {
			report, err := validations.ValidateAsync(ctx, jobs.ValidateRequest{Molecule: "CCO"}, 5*time.Second)
			Expect(err).To(BeNil())
			Expect(report.MoleculeInfo.MolecularFormula).To(Equal("C2H6O"))

			_, err = validations.ValidateAsync(ctx, jobs.ValidateRequest{Molecule: "invalid_smiles_xyz"}, 5*time.Second)
			Expect(err).To(BeAssignableToTypeOf(&service.ErrParse{}))
		})

		It("only waits between one and sixty seconds", func() {
			for _, timeout := range []time.Duration{-time.Second, 500 * time.Millisecond, 61 * time.Second} {
				_, err := validations.ValidateAsync(ctx, jobs.ValidateRequest{Molecule: "CCO"}, timeout)
				Expect(err).To(BeAssignableToTypeOf(&service.ErrValidation{}), "timeout %s", timeout)
			}
			_, err := validations.ValidateAsync(ctx, jobs.ValidateRequest{Molecule: "CCO"}, 0)
			Expect(err).To(BeNil())
		})

		It("lists checks by category", func() {
			total := 0
			for _, infos := range validations.Checks() {
				total += len(infos)
			}
			Expect(total).To(Equal(11))
		})
	})

	Context("alerts and standardization", func() {
		It("screens and standardizes", func() {
			screener, err := alerts.NewScreener(parser.Toolkit())
			Expect(err).To(BeNil())
			alertsSvc := service.NewAlertsService(parser, screener)
			report, err := alertsSvc.Screen(service.AlertsRequest{Molecule: "CCO"})
			Expect(err).To(BeNil())
			ethanol, err := parser.Parse("CCO", structure.Options{})
			Expect(err).To(BeNil())
			Expect(report.CanonicalSMILES).To(Equal(ethanol.CanonicalSMILES))
			Expect(alertsSvc.Catalogs()).NotTo(BeEmpty())

			_, err = alertsSvc.Screen(service.AlertsRequest{Molecule: "CCO", Catalogs: []string{"nope"}})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrValidation{}))

			std := service.NewStandardizeService(parser, standardize.NewPipeline(parser.Toolkit()))
			out, err := std.Standardize(service.StandardizeRequest{Molecule: "CCO.Cl"})
			Expect(err).To(BeNil())
			Expect(out.StandardizedSMILES).To(Equal(ethanol.CanonicalSMILES))
			Expect(std.Steps()).NotTo(BeEmpty())
		})
	})

	Context("export file", func() {
		It("writes in chunks", func() {
			f := &service.ExportFile{Data: bytes.Repeat([]byte("x"), service.ExportChunkSize+10)}
			var buf bytes.Buffer
			flushes := 0
			n, err := f.WriteTo(&buf, func() { flushes++ })
			Expect(err).To(BeNil())
			Expect(n).To(Equal(int64(service.ExportChunkSize + 10)))
			Expect(flushes).To(Equal(2))
		})
	})
})
