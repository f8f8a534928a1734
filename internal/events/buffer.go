package events

import "sync"

type message struct {
	Topic string
	Data  []byte
}

// buffer is an unbounded FIFO of pending messages backed by a slice. Popped slots are
// reclaimed once the consumed prefix outgrows the live part.
type buffer struct {
	mu    sync.Mutex
	items []*message
	first int
}

func newBuffer() *buffer {
	return &buffer{}
}

// PushBack appends msg and returns the number of queued messages.
func (b *buffer) PushBack(msg *message) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items = append(b.items, msg)
	return len(b.items) - b.first
}

// Pop removes the oldest message, nil when empty.
func (b *buffer) Pop() *message {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.first == len(b.items) {
		return nil
	}
	msg := b.items[b.first]
	b.items[b.first] = nil
	b.first++
	b.compact()
	return msg
}

// Drain removes and returns every queued message in order.
func (b *buffer) Drain() []*message {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]*message, len(b.items)-b.first)
	copy(out, b.items[b.first:])
	b.items = b.items[:0]
	b.first = 0
	return out
}

func (b *buffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items) - b.first
}

func (b *buffer) compact() {
	live := len(b.items) - b.first
	if live == 0 {
		b.items = b.items[:0]
		b.first = 0
		return
	}
	if b.first > 64 && b.first > live {
		n := copy(b.items, b.items[b.first:])
		clear(b.items[n:])
		b.items = b.items[:n]
		b.first = 0
	}
}
