package progress

import (
	"errors"
	"sync"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/chemaudit/chemaudit/internal/kvstore"
	"github.com/chemaudit/chemaudit/internal/store"
)

var _ = Describe("hub feeds", func() {
	It("never leaves a sink on a dropped feed", func() {
		mr, err := miniredis.Run()
		Expect(err).To(BeNil())
		defer mr.Close()
		kv := kvstore.NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test")
		h := NewHub(kv, store.NewJobStore(kv, time.Hour, time.Now))
		defer h.Close()

		for i := 0; i < 50; i++ {
			old := h.register("job-1", &handle{sink: NewChannelSink(1)})
			late := &handle{sink: NewChannelSink(1)}

			var wg sync.WaitGroup
			var got *feed
			wg.Add(2)
			go func() {
				defer wg.Done()
				h.drop(old)
			}()
			go func() {
				defer wg.Done()
				got = h.register("job-1", late)
			}()
			wg.Wait()

			h.lock.Lock()
			_, attached := got.handles[late]
			live := h.feeds["job-1"] == got
			h.lock.Unlock()

			if attached {
				Expect(live).To(BeTrue())
				h.drop(got)
			} else {
				Expect(got).To(BeIdenticalTo(old))
			}
			Expect(errors.Is(late.sink.Send([]byte("{}")), ErrSinkClosed)).To(BeTrue())
		}
	})
})
