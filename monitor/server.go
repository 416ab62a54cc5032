// Package monitor rebroadcasts engine events to websocket clients, an overlay process gets the full compiler log
// without leaving the running host.
package monitor

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/ZenLiuCN/hotswap"
	"github.com/gorilla/websocket"
)

const (
	writeWait = 5 * time.Second
	queueSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Server is an [http.Handler] upgrading requests to websocket connections receiving every event as JSON text
// message. New clients first receive the last build-finished event.
type Server struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	last    []byte
	closed  bool
	debug   bool
}

// New create a Server.
func New(debug bool) *Server {
	return &Server{clients: make(map[*client]struct{}), debug: debug}
}

// Listener returns the listener to subscribe on the engine.
func (s *Server) Listener() hotswap.Listener {
	return s.Publish
}

// Publish broadcast e to all clients, slow clients are disconnected.
func (s *Server) Publish(e hotswap.Event) {
	b, err := json.Marshal(e)
	if err != nil {
		log.Printf("marshal event %s: %v", e.Kind, err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if e.Kind == hotswap.EventBuildFinished {
		s.last = b
	}
	for c := range s.clients {
		select {
		case c.send <- b:
		default:
			log.Printf("monitor client %s too slow, disconnected", c.conn.RemoteAddr())
			s.dropLocked(c)
		}
	}
}

// Clients returns the count of connected clients.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("monitor upgrade failed: %v", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, queueSize)}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	if s.last != nil {
		c.send <- s.last
	}
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	if s.debug {
		log.Printf("monitor client %s connected", conn.RemoteAddr())
	}
	go s.writePump(c)
	go s.readPump(c)
}

// readPump discards client messages until the connection fails.
func (s *Server) readPump(c *client) {
	defer s.drop(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("monitor client error: %v", err)
			}
			return
		}
	}
}

func (s *Server) writePump(c *client) {
	defer c.conn.Close()
	for b := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
			s.drop(c)
			return
		}
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (s *Server) drop(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropLocked(c)
}

func (s *Server) dropLocked(c *client) {
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
		if s.debug {
			log.Printf("monitor client %s disconnected", c.conn.RemoteAddr())
		}
	}
}

// Close disconnects all clients, later connections are refused.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for c := range s.clients {
		s.dropLocked(c)
	}
	return nil
}
