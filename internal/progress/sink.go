package progress

import (
	"errors"
	"sync"
	"sync/atomic"
)

var ErrSinkFull = errors.New("sink buffer full")
var ErrSinkClosed = errors.New("sink closed")

// Sink receives progress payloads for one streaming client. Send must not block.
type Sink interface {
	Send(payload []byte) error
	Close() error
}

// ChannelSink delivers payloads on a buffered channel.
type ChannelSink struct {
	lock   sync.Mutex
	ch     chan []byte
	closed bool
}

func NewChannelSink(size int) *ChannelSink {
	return &ChannelSink{ch: make(chan []byte, size)}
}

func (s *ChannelSink) C() <-chan []byte {
	return s.ch
}

func (s *ChannelSink) Send(payload []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	select {
	case s.ch <- payload:
		return nil
	default:
		return ErrSinkFull
	}
}

func (s *ChannelSink) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	return nil
}

// handle holds back broadcast messages until the initial snapshot went out.
type handle struct {
	sink    Sink
	lock    sync.Mutex
	primed  bool
	pending [][]byte
	counted atomic.Bool
}

func (h *handle) deliver(payload []byte) error {
	h.lock.Lock()
	defer h.lock.Unlock()
	if !h.primed {
		h.pending = append(h.pending, payload)
		return nil
	}
	return h.sink.Send(payload)
}

// prime sends snapshot followed by everything received while waiting for it.
func (h *handle) prime(snapshot []byte) error {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.primed = true
	if err := h.sink.Send(snapshot); err != nil {
		return err
	}
	for _, p := range h.pending {
		if err := h.sink.Send(p); err != nil {
			return err
		}
	}
	h.pending = nil
	return nil
}
