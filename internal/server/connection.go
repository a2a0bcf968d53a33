package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const sendBufferSize = 64

// connection is one live socket with its buffered write pump. All writes go
// through the pump goroutine so concurrent pushes never interleave frames.
type connection struct {
	clientID string
	ws       *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newConnection(clientID string, ws *websocket.Conn) *connection {
	return &connection{
		clientID: clientID,
		ws:       ws,
		send:     make(chan []byte, sendBufferSize),
	}
}

// trySend queues frame for the write pump. A full buffer or a closed
// connection drops the frame; pushes are fire-and-forget, never retried.
func (c *connection) trySend(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *connection) close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()
}

// writePump drains the send buffer onto the socket until the buffer closes
// or a write fails.
func (c *connection) writePump() {
	for frame := range c.send {
		if err := c.ws.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			return
		}
	}
}

// ConnectionManager owns the live socket registry and the known-ids set. A
// client id stays known for the retention window after disconnect, so a
// reconnect within that window restores the same identity. Constructed per
// server instance and passed by reference; there is no global state.
type ConnectionManager struct {
	mu    sync.RWMutex
	live  map[string]*connection
	known *expirable.LRU[string, time.Time]
}

// NewConnectionManager builds a manager whose known-ids survive disconnects
// for the given retention window, bounded to maxKnown entries.
func NewConnectionManager(retention time.Duration, maxKnown int) *ConnectionManager {
	if maxKnown <= 0 {
		maxKnown = 4096
	}
	return &ConnectionManager{
		live:  make(map[string]*connection),
		known: expirable.NewLRU[string, time.Time](maxKnown, nil, retention),
	}
}

// Resolve maps a requested client id to the effective identity. A known id
// is restored as a reconnect; anything else, including an unknown requested
// id, gets a freshly minted one.
func (m *ConnectionManager) Resolve(requestedID string) (clientID string, isReconnect bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if requestedID != "" {
		if _, known := m.known.Get(requestedID); known {
			m.known.Add(requestedID, time.Now())
			return requestedID, true
		}
	}
	clientID = uuid.NewString()
	m.known.Add(clientID, time.Now())
	return clientID, false
}

// Attach registers conn as the live socket for its client id, displacing any
// previous socket for the same identity.
func (m *ConnectionManager) Attach(conn *connection) {
	m.mu.Lock()
	prev := m.live[conn.clientID]
	m.live[conn.clientID] = conn
	m.mu.Unlock()
	if prev != nil && prev != conn {
		prev.close()
	}
}

// Detach removes conn if it is still the registered socket. The client id
// stays in the known set for the retention window.
func (m *ConnectionManager) Detach(conn *connection) {
	m.mu.Lock()
	if m.live[conn.clientID] == conn {
		delete(m.live, conn.clientID)
		m.known.Add(conn.clientID, time.Now())
	}
	m.mu.Unlock()
	conn.close()
}

// Live returns the live connection for clientID, or nil.
func (m *ConnectionManager) Live(clientID string) *connection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.live[clientID]
}

// LiveCount reports how many sockets are currently attached.
func (m *ConnectionManager) LiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.live)
}

// Known reports whether clientID is inside the retention window.
func (m *ConnectionManager) Known(clientID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.known.Get(clientID)
	return ok
}
