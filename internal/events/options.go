package events

import "time"

type ProducerOptions func(e *EventProducer)

// WithWriteTimeout bounds every single write to the underlying writer.
func WithWriteTimeout(d time.Duration) ProducerOptions {
	return func(e *EventProducer) {
		e.writeTimeout = d
	}
}

// WithCloseTimeout bounds how long Close waits for the buffer to drain.
func WithCloseTimeout(d time.Duration) ProducerOptions {
	return func(e *EventProducer) {
		e.closeTimeout = d
	}
}
