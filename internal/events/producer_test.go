package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("producer", func() {
	Context("write", func() {
		It("writes in order", func() {
			w := newTestWriter()
			ep := NewEventProducer(w)

			for i := 0; i < 50; i++ {
				Expect(ep.Write("topic1", []byte(fmt.Sprintf("msg%d", i)))).To(Succeed())
			}

			Eventually(w.Count).Should(Equal(50))
			msgs := w.Snapshot()
			for i, m := range msgs {
				Expect(m).To(Equal(fmt.Sprintf("topic1/msg%d", i)))
			}
			Expect(ep.Close()).To(Succeed())
		})

		It("does not block the caller on a slow writer", func() {
			w := newTestWriter()
			w.delay = 50 * time.Millisecond
			ep := NewEventProducer(w)

			start := time.Now()
			for i := 0; i < 10; i++ {
				Expect(ep.Write("slow", []byte("x"))).To(Succeed())
			}
			Expect(time.Since(start)).To(BeNumerically("<", 50*time.Millisecond))
			Expect(ep.Close()).To(Succeed())
			Expect(w.Count()).To(Equal(10))
		})

		It("keeps going after a failed write", func() {
			w := newTestWriter()
			w.failFirst = true
			ep := NewEventProducer(w)

			Expect(ep.Write("t", []byte("lost"))).To(Succeed())
			Expect(ep.Write("t", []byte("kept"))).To(Succeed())

			Eventually(w.Count).Should(Equal(1))
			Expect(w.Snapshot()).To(ConsistOf("t/kept"))
			Expect(ep.Close()).To(Succeed())
		})

		It("rejects writes after close", func() {
			ep := NewEventProducer(newTestWriter())
			Expect(ep.Close()).To(Succeed())
			Expect(ep.Write("t", []byte("late"))).To(MatchError(ErrProducerClosed))
		})
	})
})

type testwriter struct {
	lock      sync.Mutex
	messages  []string
	delay     time.Duration
	failFirst bool
	closed    bool
}

func newTestWriter() *testwriter {
	return &testwriter{messages: []string{}}
}

func (t *testwriter) Write(ctx context.Context, topic string, payload []byte) error {
	if t.delay > 0 {
		time.Sleep(t.delay)
	}
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.failFirst {
		t.failFirst = false
		return errors.New("connection reset")
	}
	t.messages = append(t.messages, topic+"/"+string(payload))
	return nil
}

func (t *testwriter) Close(_ context.Context) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.closed = true
	return nil
}

func (t *testwriter) Count() int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return len(t.messages)
}

func (t *testwriter) Snapshot() []string {
	t.lock.Lock()
	defer t.lock.Unlock()
	return append([]string(nil), t.messages...)
}
