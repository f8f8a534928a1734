package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrProducerClosed = errors.New("event producer closed")

// Writer is the interface to be implemented by the underlying writer.
type Writer interface {
	Write(ctx context.Context, topic string, payload []byte) error
	Close(ctx context.Context) error
}

// EventProducer is a wrapper around a Writer with the buffer.
// Write never blocks the caller: messages are queued and written in order by a single goroutine.
type EventProducer struct {
	buffer       *buffer
	wakeCh       chan struct{}
	doneCh       chan struct{}
	stoppedCh    chan struct{}
	closeOnce    sync.Once
	writer       Writer
	writeTimeout time.Duration
	closeTimeout time.Duration
}

func NewEventProducer(w Writer, opts ...ProducerOptions) *EventProducer {
	ep := &EventProducer{
		buffer:       newBuffer(),
		wakeCh:       make(chan struct{}, 1),
		doneCh:       make(chan struct{}),
		stoppedCh:    make(chan struct{}),
		writer:       w,
		writeTimeout: 2 * time.Second,
		closeTimeout: 5 * time.Second,
	}

	for _, o := range opts {
		o(ep)
	}

	go ep.run()
	return ep
}

// Write queues payload for topic.
func (ep *EventProducer) Write(topic string, payload []byte) error {
	select {
	case <-ep.doneCh:
		return ErrProducerClosed
	default:
	}

	ep.buffer.PushBack(&message{Topic: topic, Data: payload})

	// unblock the consumer, a pending wake-up is enough
	select {
	case ep.wakeCh <- struct{}{}:
	default:
	}

	return nil
}

// Pending returns the number of queued messages.
func (ep *EventProducer) Pending() int {
	return ep.buffer.Size()
}

// Close flushes the queued messages and closes the writer.
func (ep *EventProducer) Close() error {
	closeCtx, cancel := context.WithTimeout(context.Background(), ep.closeTimeout)
	defer cancel()

	g, ctx := errgroup.WithContext(closeCtx)
	g.Go(func() error {
		ep.closeOnce.Do(func() { close(ep.doneCh) })
		select {
		case <-ep.stoppedCh:
		case <-ctx.Done():
			return ctx.Err()
		}
		return ep.writer.Close(ctx)
	})
	if err := g.Wait(); err != nil {
		zap.S().Named("event_producer").Errorf("event producer closed with error: %s", err)
		return err
	}

	zap.S().Named("event_producer").Info("event producer closed")

	return nil
}

func (ep *EventProducer) run() {
	defer close(ep.stoppedCh)
	for {
		batch := ep.buffer.Drain()
		for _, msg := range batch {
			ep.write(msg)
		}
		if len(batch) > 0 {
			continue
		}
		select {
		case <-ep.wakeCh:
		case <-ep.doneCh:
			// messages queued before close still go out
			for _, msg := range ep.buffer.Drain() {
				ep.write(msg)
			}
			return
		}
	}
}

func (ep *EventProducer) write(msg *message) {
	ctx, cancel := context.WithTimeout(context.Background(), ep.writeTimeout)
	defer cancel()
	if err := ep.writer.Write(ctx, msg.Topic, msg.Data); err != nil {
		zap.S().Named("event_producer").Warnw("failed to send message", "error", err, "topic", msg.Topic)
	}
}
