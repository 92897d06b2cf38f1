package rpc

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/krugbar/barchain/events"
)

// clientBuffer is the per-client event queue depth. A client that cannot
// keep up is disconnected rather than allowed to stall emission.
const clientBuffer = 64

// eventStream fans emitted events out to connected websocket clients.
// Emission happens synchronously inside transaction execution, so the
// stream only enqueues here and writes from per-client goroutines.
type eventStream struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool
}

type wsClient struct {
	conn *websocket.Conn
	ch   chan events.Event
}

func newEventStream(emitter *events.Emitter) *eventStream {
	s := &eventStream{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Same-origin enforcement is left to the deployment; the RPC
			// bearer token already gates access when configured.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*wsClient]struct{}),
	}
	emitter.SubscribeAll(s.broadcast)
	return s
}

func (s *eventStream) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Debug("websocket upgrade failed")
		return
	}

	c := &wsClient{conn: conn, ch: make(chan events.Event, clientBuffer)}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	go s.writeLoop(c)
	go s.readLoop(c)
}

// writeLoop pushes queued events to the client until its channel closes.
func (s *eventStream) writeLoop(c *wsClient) {
	for ev := range c.ch {
		if err := c.conn.WriteJSON(ev); err != nil {
			s.drop(c)
			return
		}
	}
	_ = c.conn.Close()
}

// readLoop discards client frames; its purpose is to notice disconnects.
func (s *eventStream) readLoop(c *wsClient) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			s.drop(c)
			return
		}
	}
}

func (s *eventStream) broadcast(ev events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.ch <- ev:
		default:
			// Client queue full: disconnect it instead of blocking emission.
			delete(s.clients, c)
			close(c.ch)
		}
	}
}

func (s *eventStream) drop(c *wsClient) {
	s.mu.Lock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.ch)
	}
	s.mu.Unlock()
	_ = c.conn.Close()
}

func (s *eventStream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for c := range s.clients {
		delete(s.clients, c)
		close(c.ch)
	}
}
