package progress_test

import (
	"context"
	"encoding/json"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/chemaudit/chemaudit/internal/events"
	"github.com/chemaudit/chemaudit/internal/kvstore"
	"github.com/chemaudit/chemaudit/internal/progress"
	"github.com/chemaudit/chemaudit/internal/store"
	"github.com/chemaudit/chemaudit/internal/store/model"
)

func decode(b []byte) events.ProgressEvent {
	var ev events.ProgressEvent
	ExpectWithOffset(1, json.Unmarshal(b, &ev)).To(Succeed())
	return ev
}

func successItems(from, to int) []model.ResultItem {
	items := []model.ResultItem{}
	for i := from; i < to; i++ {
		items = append(items, model.ResultItem{Index: i, Input: "C", Status: model.ItemStatusSuccess})
	}
	return items
}

var _ = Describe("progress", Ordered, func() {
	var (
		mr       *miniredis.Miniredis
		kv       kvstore.Store
		s        store.Store
		producer *events.EventProducer
		tracker  *progress.Tracker
		hub      *progress.Hub
		ctx      context.Context
	)

	BeforeAll(func() {
		var err error
		mr, err = miniredis.Run()
		Expect(err).To(BeNil())
		kv = kvstore.NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test")
		s = store.NewStore(kv, store.Options{Retention: time.Hour, CacheTTL: time.Minute})
		producer = events.NewEventProducer(events.NewKVWriter(kv))
		tracker = progress.NewTracker(s, producer)
		hub = progress.NewHub(kv, s.Jobs())
		ctx = context.TODO()
	})

	AfterAll(func() {
		hub.Close()
		_ = producer.Close()
		_ = s.Close()
		mr.Close()
	})

	Context("helpers", func() {
		It("computes percent and eta", func() {
			Expect(progress.Percent(0, 0)).To(Equal(0))
			Expect(progress.Percent(1, 3)).To(Equal(33))
			Expect(progress.Percent(5, 5)).To(Equal(100))
			Expect(progress.ETA(10*time.Second, 25, 100)).To(Equal(30))
			Expect(progress.ETA(10*time.Second, 0, 100)).To(Equal(990))
		})
	})

	Context("tracker", func() {
		It("completes the job on the last chunk", func() {
			job, err := s.Jobs().Create(ctx, 4, 2, "high_priority", model.JobOptions{})
			Expect(err).To(BeNil())
			_, err = tracker.Start(ctx, job.ID)
			Expect(err).To(BeNil())

			Expect(s.Results().Append(ctx, job.ID, successItems(0, 2))).To(Succeed())
			got, err := tracker.ChunkDone(ctx, job.ID, 0, 2, 2, 0)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.JobStatusProcessing))
			Expect(got.Progress).To(Equal(50))
			Expect(got.EtaSeconds).NotTo(BeNil())

			// redelivered chunk does not count twice
			got, err = tracker.ChunkDone(ctx, job.ID, 0, 2, 2, 0)
			Expect(err).To(BeNil())
			Expect(got.Processed).To(Equal(2))

			Expect(s.Results().Append(ctx, job.ID, successItems(2, 4))).To(Succeed())
			got, err = tracker.ChunkDone(ctx, job.ID, 1, 2, 2, 0)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.JobStatusComplete))
			Expect(got.Progress).To(Equal(100))
			Expect(got.Processed).To(Equal(got.Total))

			stats, err := s.Statistics().Get(ctx, job.ID)
			Expect(err).To(BeNil())
			Expect(stats.Total).To(Equal(4))
			Expect(stats.Successful).To(Equal(4))
		})

		It("completes the job when a counted final chunk is replayed", func() {
			job, err := s.Jobs().Create(ctx, 2, 2, "high_priority", model.JobOptions{})
			Expect(err).To(BeNil())
			_, err = tracker.Start(ctx, job.ID)
			Expect(err).To(BeNil())
			Expect(s.Results().Append(ctx, job.ID, successItems(0, 2))).To(Succeed())

			// counted but never finished
			counted, err := s.Jobs().RecordChunk(ctx, job.ID, 0, 2, 2, 0)
			Expect(err).To(BeNil())
			Expect(counted).To(BeTrue())

			got, err := tracker.ChunkDone(ctx, job.ID, 0, 2, 2, 0)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.JobStatusComplete))
			Expect(got.Processed).To(Equal(2))
			stats, err := s.Statistics().Get(ctx, job.ID)
			Expect(err).To(BeNil())
			Expect(stats.Successful).To(Equal(2))
		})

		It("cancels a pending job through processing", func() {
			job, err := s.Jobs().Create(ctx, 10, 5, "default", model.JobOptions{})
			Expect(err).To(BeNil())

			got, err := tracker.Cancel(ctx, job.ID)
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.JobStatusCancelled))
			Expect(got.StartedAt).NotTo(BeNil())

			again, err := tracker.Cancel(ctx, job.ID)
			Expect(err).To(BeNil())
			Expect(again.Status).To(Equal(model.JobStatusCancelled))

			// a terminal job never moves again
			_, err = tracker.ChunkDone(ctx, job.ID, 0, 5, 5, 0)
			Expect(err).To(BeNil())
			after, err := s.Jobs().Get(ctx, job.ID)
			Expect(err).To(BeNil())
			Expect(after.Processed).To(Equal(0))
		})

		It("keeps the error message of a failed job", func() {
			job, err := s.Jobs().Create(ctx, 3, 5, "default", model.JobOptions{})
			Expect(err).To(BeNil())
			got, err := tracker.Fail(ctx, job.ID, "file corrupted")
			Expect(err).To(BeNil())
			Expect(got.Status).To(Equal(model.JobStatusFailed))
			Expect(*got.ErrorMessage).To(Equal("file corrupted"))
		})
	})

	Context("hub", func() {
		It("sends the snapshot then streams updates to the terminal message", func() {
			job, err := s.Jobs().Create(ctx, 4, 2, "high_priority", model.JobOptions{})
			Expect(err).To(BeNil())
			_, err = tracker.Start(ctx, job.ID)
			Expect(err).To(BeNil())

			sink := progress.NewChannelSink(16)
			sub, err := hub.Connect(ctx, job.ID, sink)
			Expect(err).To(BeNil())
			Expect(sub.Terminal).To(BeFalse())
			Expect(hub.Subscribers(job.ID)).To(Equal(1))

			first := decode(<-sink.C())
			Expect(first.JobID).To(Equal(job.ID))
			Expect(first.Status).To(Equal("processing"))

			Expect(s.Results().Append(ctx, job.ID, successItems(0, 2))).To(Succeed())
			_, err = tracker.ChunkDone(ctx, job.ID, 0, 2, 2, 0)
			Expect(err).To(BeNil())
			Expect(s.Results().Append(ctx, job.ID, successItems(2, 4))).To(Succeed())
			_, err = tracker.ChunkDone(ctx, job.ID, 1, 2, 2, 0)
			Expect(err).To(BeNil())

			var received []events.ProgressEvent
			Eventually(func() bool {
				select {
				case b, ok := <-sink.C():
					if !ok {
						return true
					}
					received = append(received, decode(b))
				case <-time.After(50 * time.Millisecond):
				}
				return false
			}, 5*time.Second).Should(BeTrue())

			Expect(received).NotTo(BeEmpty())
			Expect(received[0].Status).To(Equal("processing"))
			last := received[len(received)-1]
			Expect(last.Status).To(Equal("complete"))
			Expect(last.Progress).To(Equal(100))
			Eventually(func() int { return hub.Subscribers(job.ID) }).Should(Equal(0))
		})

		It("closes right after the snapshot for a terminal job", func() {
			job, err := s.Jobs().Create(ctx, 1, 1, "high_priority", model.JobOptions{})
			Expect(err).To(BeNil())
			_, err = tracker.Cancel(ctx, job.ID)
			Expect(err).To(BeNil())

			sink := progress.NewChannelSink(4)
			sub, err := hub.Connect(ctx, job.ID, sink)
			Expect(err).To(BeNil())
			Expect(sub.Terminal).To(BeTrue())

			Expect(decode(<-sink.C()).Status).To(Equal("cancelled"))
			_, ok := <-sink.C()
			Expect(ok).To(BeFalse())
		})

		It("rejects unknown jobs", func() {
			_, err := hub.Connect(ctx, "missing", progress.NewChannelSink(1))
			Expect(err).To(MatchError(store.ErrRecordNotFound))
		})

		It("prunes sinks that fall behind", func() {
			job, err := s.Jobs().Create(ctx, 100, 1, "high_priority", model.JobOptions{})
			Expect(err).To(BeNil())
			_, err = tracker.Start(ctx, job.ID)
			Expect(err).To(BeNil())

			slow := progress.NewChannelSink(1)
			_, err = hub.Connect(ctx, job.ID, slow)
			Expect(err).To(BeNil())
			for i := 0; i < 3; i++ {
				_, err = tracker.ChunkDone(ctx, job.ID, i, 1, 1, 0)
				Expect(err).To(BeNil())
			}
			Eventually(func() int { return hub.Subscribers(job.ID) }).Should(Equal(0))
		})
	})
})
