package progress

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 64
)

// NewUpgrader returns the websocket upgrader for progress streams. Origins are checked by allowed,
// an empty list accepts every origin.
func NewUpgrader(allowed []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowed) == 0 {
				return true
			}
			for _, o := range allowed {
				if o == origin || o == "*" {
					return true
				}
			}
			return false
		},
	}
}

// WebsocketSink writes payloads to a websocket connection from its own goroutine.
type WebsocketSink struct {
	conn   *websocket.Conn
	queue  chan []byte
	lock   sync.Mutex
	closed bool
	done   chan struct{}
}

func NewWebsocketSink(conn *websocket.Conn) *WebsocketSink {
	s := &WebsocketSink{conn: conn, queue: make(chan []byte, sendBufferSize), done: make(chan struct{})}
	go s.writeLoop()
	return s
}

func (s *WebsocketSink) Send(payload []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	select {
	case s.queue <- payload:
		return nil
	default:
		return ErrSinkFull
	}
}

// Close flushes the queued payloads and closes the connection.
func (s *WebsocketSink) Close() error {
	s.lock.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.lock.Unlock()
	<-s.done
	return nil
}

func (s *WebsocketSink) writeLoop() {
	defer close(s.done)
	defer s.conn.Close()
	for payload := range s.queue {
		_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			zap.S().Named("progress_ws").Debugw("websocket write failed", "error", err)
			// keep draining so Close returns
			continue
		}
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// Serve streams the progress of jobID to conn until the job ends or the client goes away.
// A text frame "ping" is answered with "pong".
func Serve(ctx context.Context, hub *Hub, conn *websocket.Conn, jobID string) error {
	sink := NewWebsocketSink(conn)
	sub, err := hub.Connect(ctx, jobID, sink)
	if err != nil {
		_ = sink.Close()
		return err
	}
	if sub.Terminal {
		return nil
	}
	defer sub.Close()

	for {
		if ctx.Err() != nil {
			return nil
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			// client went away or the sink closed the connection after the terminal message
			return nil
		}
		if string(msg) == "ping" {
			_ = sink.Send([]byte("pong"))
		}
	}
}
