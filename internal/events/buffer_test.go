package events

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("buffer", func() {
	It("counts queued messages on push", func() {
		b := newBuffer()

		Expect(b.PushBack(&message{Topic: "batch:progress:1", Data: []byte("msg1")})).To(Equal(1))
		Expect(b.PushBack(&message{Topic: "batch:progress:1", Data: []byte("msg2")})).To(Equal(2))
		Expect(b.PushBack(&message{Topic: "batch:progress:2", Data: []byte("msg3")})).To(Equal(3))
		Expect(b.Size()).To(Equal(3))
	})

	It("pops in insertion order", func() {
		b := newBuffer()
		for _, d := range []string{"msg1", "msg2", "msg3"} {
			b.PushBack(&message{Topic: "t", Data: []byte(d)})
		}

		for i, want := range []string{"msg1", "msg2", "msg3"} {
			m := b.Pop()
			Expect(m).NotTo(BeNil())
			Expect(string(m.Data)).To(Equal(want))
			Expect(b.Size()).To(Equal(2 - i))
		}
		Expect(b.Pop()).To(BeNil())
	})

	It("keeps order across compaction", func() {
		b := newBuffer()
		for i := 0; i < 200; i++ {
			b.PushBack(&message{Data: []byte(fmt.Sprint(i))})
		}
		for i := 0; i < 150; i++ {
			Expect(string(b.Pop().Data)).To(Equal(fmt.Sprint(i)))
		}
		b.PushBack(&message{Data: []byte("200")})
		Expect(b.Size()).To(Equal(51))
		Expect(string(b.Pop().Data)).To(Equal("150"))
	})

	It("drains everything at once", func() {
		b := newBuffer()
		b.PushBack(&message{Data: []byte("a")})
		b.PushBack(&message{Data: []byte("b")})
		Expect(b.Pop()).NotTo(BeNil())

		drained := b.Drain()
		Expect(drained).To(HaveLen(1))
		Expect(string(drained[0].Data)).To(Equal("b"))
		Expect(b.Size()).To(BeZero())

		b.PushBack(&message{Data: []byte("c")})
		Expect(string(b.Pop().Data)).To(Equal("c"))
	})
})
