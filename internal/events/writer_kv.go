package events

import (
	"context"

	"github.com/chemaudit/chemaudit/internal/kvstore"
)

// KVWriter publishes events on the key/value store pub/sub channels. The topic is the channel.
type KVWriter struct {
	kv kvstore.Store
}

func NewKVWriter(kv kvstore.Store) *KVWriter {
	return &KVWriter{kv: kv}
}

func (w *KVWriter) Write(ctx context.Context, topic string, payload []byte) error {
	return w.kv.Publish(ctx, topic, payload)
}

// Close leaves the store open, it is owned by the caller.
func (w *KVWriter) Close(_ context.Context) error {
	return nil
}
