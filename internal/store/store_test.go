package store_test

import (
	"context"
	"errors"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/chemaudit/chemaudit/internal/kvstore"
	"github.com/chemaudit/chemaudit/internal/store"
	"github.com/chemaudit/chemaudit/internal/store/model"
	"github.com/chemaudit/chemaudit/internal/validation"
)

func scoredItem(index, score int) model.ResultItem {
	return model.ResultItem{
		Index:      index,
		Input:      "C",
		Status:     model.ItemStatusSuccess,
		Validation: &validation.Outcome{OverallScore: score, Issues: []validation.CheckResult{}, AllChecks: []validation.CheckResult{}},
	}
}

var _ = Describe("store", Ordered, func() {
	var (
		mr  *miniredis.Miniredis
		kv  kvstore.Store
		s   store.Store
		ctx context.Context
	)

	BeforeAll(func() {
		var err error
		mr, err = miniredis.Run()
		Expect(err).To(BeNil())
		kv = kvstore.NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test")
		s = store.NewStore(kv, store.Options{Retention: time.Hour, CacheTTL: time.Minute, CacheEnabled: true})
		ctx = context.TODO()
	})

	AfterAll(func() {
		_ = s.Close()
		mr.Close()
	})

	AfterEach(func() {
		mr.FlushAll()
	})

	Context("job registry", func() {
		It("creates a pending job with retention", func() {
			job, err := s.Jobs().Create(ctx, 5, 100, "high_priority", model.JobOptions{IncludeAlerts: true})
			Expect(err).To(BeNil())
			Expect(job.ID).NotTo(BeEmpty())

			got, err := s.Jobs().Get(ctx, job.ID)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.JobStatusPending))
			Expect(got.Total).To(Equal(5))
			Expect(got.Queue).To(Equal("high_priority"))
			Expect(got.Options.IncludeAlerts).To(BeTrue())
			Expect(mr.TTL(store.JobKey(job.ID))).To(Equal(time.Hour))
		})

		It("returns ErrRecordNotFound for unknown jobs", func() {
			_, err := s.Jobs().Get(ctx, "missing")
			Expect(err).To(MatchError(store.ErrRecordNotFound))
			_, err = s.Jobs().Transition(ctx, "missing", model.JobStatusProcessing, "")
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})

		It("validates transitions", func() {
			job, err := s.Jobs().Create(ctx, 2, 100, "default", model.JobOptions{})
			Expect(err).To(BeNil())

			_, err = s.Jobs().Transition(ctx, job.ID, model.JobStatusComplete, "")
			Expect(errors.Is(err, store.ErrInvalidTransition)).To(BeTrue())

			got, err := s.Jobs().Transition(ctx, job.ID, model.JobStatusProcessing, "")
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.JobStatusProcessing))
			Expect(got.StartedAt).NotTo(BeNil())

			got, err = s.Jobs().Transition(ctx, job.ID, model.JobStatusFailed, "corrupt input")
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.JobStatusFailed))
			Expect(*got.ErrorMessage).To(Equal("corrupt input"))
			Expect(got.CompletedAt).NotTo(BeNil())

			_, err = s.Jobs().Transition(ctx, job.ID, model.JobStatusCancelled, "")
			var terr *store.TransitionError
			Expect(errors.As(err, &terr)).To(BeTrue())
			Expect(terr.From).To(Equal(model.JobStatusFailed))
		})

		It("adds chunk deltas commutatively", func() {
			a, _ := s.Jobs().Create(ctx, 10, 100, "default", model.JobOptions{})
			b, _ := s.Jobs().Create(ctx, 10, 100, "default", model.JobOptions{})
			for _, id := range []string{a.ID, b.ID} {
				_, err := s.Jobs().Transition(ctx, id, model.JobStatusProcessing, "")
				Expect(err).To(BeNil())
			}
			_, _ = s.Jobs().RecordChunk(ctx, a.ID, 0, 1, 1, 0)
			_, _ = s.Jobs().RecordChunk(ctx, a.ID, 1, 2, 1, 1)
			_, _ = s.Jobs().RecordChunk(ctx, b.ID, 1, 2, 1, 1)
			_, _ = s.Jobs().RecordChunk(ctx, b.ID, 0, 1, 1, 0)

			ja, _ := s.Jobs().Get(ctx, a.ID)
			jb, _ := s.Jobs().Get(ctx, b.ID)
			Expect([]int{ja.Processed, ja.Success, ja.Errors}).To(Equal([]int{jb.Processed, jb.Success, jb.Errors}))
			Expect(ja.Processed).To(Equal(3))
		})

		It("counts each chunk once", func() {
			job, _ := s.Jobs().Create(ctx, 200, 100, "default", model.JobOptions{})
			_, err := s.Jobs().Transition(ctx, job.ID, model.JobStatusProcessing, "")
			Expect(err).To(BeNil())

			counted, err := s.Jobs().RecordChunk(ctx, job.ID, 0, 100, 99, 1)
			Expect(err).To(BeNil())
			Expect(counted).To(BeTrue())
			counted, err = s.Jobs().RecordChunk(ctx, job.ID, 0, 100, 99, 1)
			Expect(err).To(BeNil())
			Expect(counted).To(BeFalse())

			got, _ := s.Jobs().Get(ctx, job.ID)
			Expect(got.Processed).To(Equal(100))
			Expect(got.Success + got.Errors).To(Equal(got.Processed))
		})

		It("never mutates a terminal job", func() {
			job, _ := s.Jobs().Create(ctx, 1, 100, "default", model.JobOptions{})
			_, _ = s.Jobs().Transition(ctx, job.ID, model.JobStatusProcessing, "")
			_, err := s.Jobs().RecordChunk(ctx, job.ID, 0, 1, 1, 0)
			Expect(err).To(BeNil())
			done, err := s.Jobs().Transition(ctx, job.ID, model.JobStatusComplete, "")
			Expect(err).To(BeNil())
			Expect(done.Progress).To(Equal(100))
			Expect(*done.EtaSeconds).To(Equal(0))

			Expect(s.Jobs().UpdateProgress(ctx, job.ID, 3, nil)).To(Succeed())
			counted, err := s.Jobs().RecordChunk(ctx, job.ID, 1, 5, 5, 0)
			Expect(err).To(BeNil())
			Expect(counted).To(BeFalse())

			got, _ := s.Jobs().Get(ctx, job.ID)
			Expect(got.Processed).To(Equal(1))
			Expect(got.Progress).To(Equal(100))
		})

		It("stores progress and eta while processing", func() {
			job, _ := s.Jobs().Create(ctx, 4, 100, "default", model.JobOptions{})
			_, _ = s.Jobs().Transition(ctx, job.ID, model.JobStatusProcessing, "")
			eta := 7
			Expect(s.Jobs().UpdateProgress(ctx, job.ID, 50, &eta)).To(Succeed())
			got, _ := s.Jobs().Get(ctx, job.ID)
			Expect(got.Progress).To(Equal(50))
			Expect(*got.EtaSeconds).To(Equal(7))
		})

		It("deletes every key of a job", func() {
			job, _ := s.Jobs().Create(ctx, 1, 100, "default", model.JobOptions{})
			Expect(s.Results().Append(ctx, job.ID, []model.ResultItem{scoredItem(0, 100)})).To(Succeed())
			Expect(s.Jobs().Delete(ctx, job.ID)).To(Succeed())
			Expect(mr.Exists(store.JobKey(job.ID))).To(BeFalse())
			Expect(mr.Exists(store.ResultsKey(job.ID))).To(BeFalse())
			Expect(s.Jobs().Delete(ctx, job.ID)).To(MatchError(store.ErrRecordNotFound))
		})
	})

	Context("results", func() {
		BeforeEach(func() {
			items := []model.ResultItem{
				scoredItem(3, 40),
				scoredItem(0, 100),
				model.ErrorItem(1, "INVALID", "Bad", "Failed to parse SMILES"),
				scoredItem(2, 85),
				scoredItem(4, 80),
			}
			Expect(s.Results().Append(ctx, "job", items)).To(Succeed())
		})

		It("lists items in index order", func() {
			items, err := s.Results().List(ctx, "job", nil)
			Expect(err).To(BeNil())
			Expect(items).To(HaveLen(5))
			for i, item := range items {
				Expect(item.Index).To(Equal(i))
			}
		})

		It("overwrites a rewritten index", func() {
			Expect(s.Results().Append(ctx, "job", []model.ResultItem{scoredItem(3, 95)})).To(Succeed())
			n, err := s.Results().Count(ctx, "job")
			Expect(err).To(BeNil())
			Expect(n).To(Equal(5))
		})

		It("filters by score range", func() {
			items, err := s.Results().List(ctx, "job", store.NewResultQueryFilter().WithMinScore(80).WithMaxScore(100))
			Expect(err).To(BeNil())
			Expect(items).To(HaveLen(3))
			for _, item := range items {
				score, ok := item.Score()
				Expect(ok).To(BeTrue())
				Expect(score).To(BeNumerically(">=", 80))
			}
		})

		It("filters by status and then indices", func() {
			items, err := s.Results().List(ctx, "job", store.NewResultQueryFilter().ByStatus(model.ItemStatusSuccess).ByIndices([]int{1, 2, 9}))
			Expect(err).To(BeNil())
			Expect(items).To(HaveLen(1))
			Expect(items[0].Index).To(Equal(2))
		})

		It("paginates after filtering", func() {
			page, err := s.Results().Page(ctx, "job", store.NewResultQueryFilter().ByStatus(model.ItemStatusSuccess), 2, 3)
			Expect(err).To(BeNil())
			Expect(page.TotalMatching).To(Equal(4))
			Expect(page.TotalPages).To(Equal(2))
			Expect(page.Items).To(HaveLen(1))
			Expect(page.Items[0].Index).To(Equal(4))

			past, err := s.Results().Page(ctx, "job", nil, 5, 3)
			Expect(err).To(BeNil())
			Expect(past.Items).To(BeEmpty())
		})
	})

	Context("cache", func() {
		outcome := &validation.Outcome{OverallScore: 95, Issues: []validation.CheckResult{}, AllChecks: []validation.CheckResult{}}

		It("misses then hits", func() {
			_, err := s.Cache().Get(ctx, "KEY", "all")
			Expect(err).To(MatchError(store.ErrRecordNotFound))
			Expect(s.Cache().Set(ctx, "KEY", "all", outcome)).To(Succeed())
			got, err := s.Cache().Get(ctx, "KEY", "all")
			Expect(err).To(BeNil())
			Expect(got.OverallScore).To(Equal(95))
			Expect(mr.TTL(store.CacheKey("KEY", "all"))).To(Equal(time.Minute))
		})

		It("ignores an empty canonical key", func() {
			Expect(s.Cache().Set(ctx, "", "all", outcome)).To(Succeed())
			Expect(mr.Keys()).To(BeEmpty())
			n, err := s.Cache().Invalidate(ctx, "")
			Expect(err).To(BeNil())
			Expect(n).To(Equal(0))
		})

		It("invalidates every fingerprint of a key", func() {
			Expect(s.Cache().Set(ctx, "KEY", "all", outcome)).To(Succeed())
			Expect(s.Cache().Set(ctx, "KEY", validation.Fingerprint([]string{"valence"}), outcome)).To(Succeed())
			Expect(s.Cache().Set(ctx, "OTHER", "all", outcome)).To(Succeed())
			n, err := s.Cache().Invalidate(ctx, "KEY")
			Expect(err).To(BeNil())
			Expect(n).To(Equal(2))
			Expect(mr.Exists(store.CacheKey("OTHER", "all"))).To(BeTrue())
		})
	})

	Context("statistics", func() {
		It("saves and reads a record", func() {
			_, err := s.Statistics().Get(ctx, "job")
			Expect(err).To(MatchError(store.ErrRecordNotFound))
			stats := model.NewStatistics([]model.ResultItem{scoredItem(0, 91)}, time.Second)
			Expect(s.Statistics().Save(ctx, "job", stats)).To(Succeed())
			got, err := s.Statistics().Get(ctx, "job")
			Expect(err).To(BeNil())
			Expect(got.ScoreDistribution[model.BucketExcellent]).To(Equal(1))
		})
	})
})
