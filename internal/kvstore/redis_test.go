package kvstore_test

import (
	"context"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/chemaudit/chemaudit/internal/kvstore"
	"github.com/go-redis/redis/v8"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("redis store", Ordered, func() {
	var (
		mr  *miniredis.Miniredis
		kv  kvstore.Store
		ctx context.Context
	)

	BeforeAll(func() {
		var err error
		mr, err = miniredis.Run()
		Expect(err).To(BeNil())
		kv = kvstore.NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test")
		ctx = context.TODO()
	})

	AfterAll(func() {
		_ = kv.Close()
		mr.Close()
	})

	AfterEach(func() {
		mr.FlushAll()
	})

	Context("strings", func() {
		It("maps a missing key to ErrNil", func() {
			_, err := kv.Get(ctx, "missing")
			Expect(err).To(MatchError(kvstore.ErrNil))
		})

		It("expires values written with SetEX", func() {
			Expect(kv.SetEX(ctx, "k", "v", time.Second)).To(Succeed())
			v, err := kv.Get(ctx, "k")
			Expect(err).To(BeNil())
			Expect(v).To(Equal("v"))

			mr.FastForward(2 * time.Second)
			_, err = kv.Get(ctx, "k")
			Expect(err).To(MatchError(kvstore.ErrNil))
		})

		It("sets the ttl only on the first increment", func() {
			n, err := kv.IncrWithTTL(ctx, "counter", time.Minute)
			Expect(err).To(BeNil())
			Expect(n).To(BeEquivalentTo(1))
			n, err = kv.IncrWithTTL(ctx, "counter", time.Minute)
			Expect(err).To(BeNil())
			Expect(n).To(BeEquivalentTo(2))
			Expect(mr.TTL("counter")).To(Equal(time.Minute))
		})
	})

	Context("hashes and sets", func() {
		It("increments hash fields atomically", func() {
			Expect(kv.HSet(ctx, "h", map[string]string{"a": "1", "b": "x"})).To(Succeed())
			n, err := kv.HIncrBy(ctx, "h", "a", 4)
			Expect(err).To(BeNil())
			Expect(n).To(BeEquivalentTo(5))

			all, err := kv.HGetAll(ctx, "h")
			Expect(err).To(BeNil())
			Expect(all).To(Equal(map[string]string{"a": "5", "b": "x"}))

			_, err = kv.HGet(ctx, "h", "nope")
			Expect(err).To(MatchError(kvstore.ErrNil))
		})

		It("adds and removes members", func() {
			added, err := kv.SAdd(ctx, "s", "1", "2", "2")
			Expect(err).To(BeNil())
			Expect(added).To(BeEquivalentTo(2))
			_, err = kv.SRem(ctx, "s", "1")
			Expect(err).To(BeNil())
			card, err := kv.SCard(ctx, "s")
			Expect(err).To(BeNil())
			Expect(card).To(BeEquivalentTo(1))
		})
	})

	It("scans keys by prefix", func() {
		for _, k := range []string{"validation:A:all", "validation:A:abc", "validation:B:all"} {
			Expect(kv.Set(ctx, k, "1", 0)).To(Succeed())
		}
		keys, err := kv.ScanPrefix(ctx, "validation:A:")
		Expect(err).To(BeNil())
		Expect(keys).To(ConsistOf("validation:A:all", "validation:A:abc"))
	})

	It("moves list elements between lists", func() {
		Expect(kv.LPush(ctx, "q", "t1", "t2")).To(Succeed())
		v, err := kv.RPopLPush(ctx, "q", "processing")
		Expect(err).To(BeNil())
		Expect(v).To(Equal("t1"))
		Expect(kv.LRem(ctx, "processing", 1, "t1")).To(Succeed())
		n, err := kv.LLen(ctx, "processing")
		Expect(err).To(BeNil())
		Expect(n).To(BeZero())

		_, err = kv.RPopLPush(ctx, "empty", "processing")
		Expect(err).To(MatchError(kvstore.ErrNil))
	})

	It("returns ErrNil when BLPop times out", func() {
		_, err := kv.BLPop(ctx, time.Second, "nothing")
		Expect(err).To(MatchError(kvstore.ErrNil))
	})

	It("runs lua scripts", func() {
		script := kvstore.NewScript(`return redis.call("INCRBY", KEYS[1], ARGV[1])`)
		v, err := kv.Eval(ctx, script, []string{"n"}, 3)
		Expect(err).To(BeNil())
		Expect(v).To(BeEquivalentTo(3))
	})

	It("delivers published messages after the subscription is confirmed", func() {
		sub, err := kv.Subscribe(ctx, "batch:progress:1")
		Expect(err).To(BeNil())
		defer sub.Close()

		Expect(kv.Publish(ctx, "batch:progress:1", []byte(`{"status":"processing"}`))).To(Succeed())
		var msg kvstore.Message
		Eventually(sub.Messages()).Should(Receive(&msg))
		Expect(string(msg.Payload)).To(Equal(`{"status":"processing"}`))
	})
})
