package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Conn is one live socket. The registry and dispatcher only see this
// interface, so tests can substitute in-memory fakes.
type Conn interface {
	ID() string
	UserID() string
	Send(v interface{}) error
	Close() error
}

// SocketConn wraps a gorilla websocket connection. gorilla permits a single
// concurrent writer, so all sends go through a mutex.
type SocketConn struct {
	id        string
	createdAt time.Time

	mu     sync.Mutex
	userID string
	sock   *websocket.Conn
}

// NewConn wraps an upgraded socket. The connection starts unauthenticated;
// Bind attaches the user once the handshake succeeds.
func NewConn(sock *websocket.Conn) *SocketConn {
	return &SocketConn{
		id:        uuid.NewString(),
		createdAt: time.Now(),
		sock:      sock,
	}
}

func (c *SocketConn) ID() string { return c.id }

func (c *SocketConn) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// Bind attaches the authenticated user. There is no way back; a connection
// never returns to the unauthenticated state.
func (c *SocketConn) Bind(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.userID == "" {
		c.userID = userID
	}
}

// Send writes one JSON frame.
func (c *SocketConn) Send(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sock.WriteJSON(v)
}

func (c *SocketConn) Close() error {
	return c.sock.Close()
}

// CreatedAt reports when the underlying transport was opened.
func (c *SocketConn) CreatedAt() time.Time { return c.createdAt }
