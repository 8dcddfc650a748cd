// Package wsclient implements the consumer side of the /ws notification
// channel: one controller per authenticated session that keeps a socket
// alive, re-authenticates after every drop, and reconciles its state from
// the REST endpoints rather than trusting pushed frames alone.
package wsclient

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/marcelolino/servicos-conecte-sub004/internal/models"
	"github.com/marcelolino/servicos-conecte-sub004/internal/ws"
	log "github.com/sirupsen/logrus"
)

// State of the controller's connection lifecycle.
type State string

const (
	StateIdle           State = "idle"
	StateConnecting     State = "connecting"
	StateAuthenticating State = "authenticating"
	StateLive           State = "live"
	StateDisconnected   State = "disconnected"
)

const (
	defaultRetryDelay = 3 * time.Second
	defaultMaxJitter  = time.Second
)

type serverFrame struct {
	Type    string          `json:"type"`
	Count   int64           `json:"count"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Controller maintains the notification socket for one session.
//
// Retries use a fixed base delay plus random jitter, unconditionally, for
// as long as a session credential is set. Logout clears the credential,
// closes the socket and cancels any pending retry; a retry timer that
// already fired checks the session generation and becomes a no-op.
type Controller struct {
	baseURL string
	wsURL   string
	httpc   *http.Client

	retryDelay time.Duration
	maxJitter  time.Duration

	onState        func(State)
	onNotification func(models.Notification)
	onUnreadCount  func(int64)
	onChat         func(models.Message)
	onHistory      func([]models.Notification)

	mu         sync.Mutex
	token      string
	state      State
	conn       *websocket.Conn
	retryTimer *time.Timer
	gen        uint64
	unread     int64
}

// Option configures a Controller.
type Option func(*Controller)

func WithRetryDelay(d time.Duration) Option { return func(c *Controller) { c.retryDelay = d } }
func WithMaxJitter(d time.Duration) Option  { return func(c *Controller) { c.maxJitter = d } }
func WithHTTPClient(h *http.Client) Option  { return func(c *Controller) { c.httpc = h } }

func OnStateChange(fn func(State)) Option { return func(c *Controller) { c.onState = fn } }

// OnNotification fires once per notification pushed over the live socket.
// History fetched during reconciliation goes through OnHistory instead, so
// subscribers never mistake a replay for a fresh event.
func OnNotification(fn func(models.Notification)) Option {
	return func(c *Controller) { c.onNotification = fn }
}
func OnUnreadCount(fn func(int64)) Option { return func(c *Controller) { c.onUnreadCount = fn } }
func OnChat(fn func(models.Message)) Option {
	return func(c *Controller) { c.onChat = fn }
}

// OnHistory fires after every successful handshake with the authoritative
// notification list, newest first.
func OnHistory(fn func([]models.Notification)) Option {
	return func(c *Controller) { c.onHistory = fn }
}

// New builds a controller for a backend base URL such as
// "http://localhost:8080". The socket endpoint is derived from it.
func New(baseURL string, opts ...Option) *Controller {
	c := &Controller{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpc:      http.DefaultClient,
		retryDelay: defaultRetryDelay,
		maxJitter:  defaultMaxJitter,
		state:      StateIdle,
	}
	c.wsURL = "ws" + strings.TrimPrefix(c.baseURL, "http") + "/ws"
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins connecting with the given session credential. Calling it
// again replaces the previous session.
func (c *Controller) Start(token string) error {
	if token == "" {
		return fmt.Errorf("session token is required")
	}
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.token = token
	c.cancelRetryLocked()
	old := c.conn
	c.conn = nil
	c.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	go c.connect(gen)
	return nil
}

// Logout deterministically tears the session down: the socket closes, any
// pending retry is cancelled, and the controller returns to Idle.
func (c *Controller) Logout() {
	c.mu.Lock()
	c.gen++
	c.token = ""
	c.cancelRetryLocked()
	old := c.conn
	c.conn = nil
	c.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	c.setState(StateIdle)
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// UnreadCount returns the last reconciled unread count.
func (c *Controller) UnreadCount() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unread
}

func (c *Controller) connect(gen uint64) {
	if !c.sessionValid(gen) {
		return
	}
	c.setState(StateConnecting)

	conn, resp, err := websocket.DefaultDialer.Dial(c.wsURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		log.WithError(err).Info("WebSocket dial failed, will retry")
		c.setState(StateDisconnected)
		c.scheduleRetry(gen)
		return
	}

	c.mu.Lock()
	if gen != c.gen || c.token == "" {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	token := c.token
	c.mu.Unlock()

	c.setState(StateAuthenticating)
	if err := conn.WriteJSON(ws.ClientFrame{Type: ws.FrameAuth, Token: token}); err != nil {
		_ = conn.Close()
		c.setState(StateDisconnected)
		c.scheduleRetry(gen)
		return
	}

	c.readLoop(gen, conn)
}

// readLoop applies frames in receipt order; it is the single goroutine that
// mutates session state, so no further ordering control is needed.
func (c *Controller) readLoop(gen uint64, conn *websocket.Conn) {
	for {
		var frame serverFrame
		if err := conn.ReadJSON(&frame); err != nil {
			_ = conn.Close()
			if !c.sessionValid(gen) {
				return
			}
			c.setState(StateDisconnected)
			c.scheduleRetry(gen)
			return
		}

		switch frame.Type {
		case ws.FrameAuthSuccess:
			// The pushed count alone is never trusted: refetch the
			// authoritative list and count before going live.
			c.reconcile()
			c.setState(StateLive)

		case ws.FrameUnreadCount:
			c.setUnread(frame.Count)

		case ws.FrameNotification:
			var n models.Notification
			if err := json.Unmarshal(frame.Data, &n); err != nil {
				log.WithError(err).Warn("Bad notification frame")
				continue
			}
			if c.onNotification != nil {
				c.onNotification(n)
			}

		case ws.FrameChat:
			var m models.Message
			if err := json.Unmarshal(frame.Data, &m); err != nil {
				log.WithError(err).Warn("Bad chat frame")
				continue
			}
			if c.onChat != nil {
				c.onChat(m)
			}

		case ws.FrameError:
			// The server rejected the credential. Retrying with the same
			// token would loop forever, so drop to Idle until a new Start.
			log.WithField("message", frame.Message).Warn("Session rejected by server")
			_ = conn.Close()
			c.mu.Lock()
			if gen == c.gen {
				c.token = ""
			}
			c.mu.Unlock()
			c.setState(StateIdle)
			return
		}
	}
}

func (c *Controller) scheduleRetry(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.token == "" {
		return
	}

	delay := c.retryDelay
	if c.maxJitter > 0 {
		delay += time.Duration(rand.Int63n(int64(c.maxJitter)))
	}
	c.retryTimer = time.AfterFunc(delay, func() {
		// Guard against a timer that outlived its session.
		if c.sessionValid(gen) {
			c.connect(gen)
		}
	})
}

func (c *Controller) cancelRetryLocked() {
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
}

func (c *Controller) sessionValid(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.gen && c.token != ""
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	cb := c.onState
	c.mu.Unlock()
	if cb != nil {
		cb(s)
	}
}

func (c *Controller) setUnread(n int64) {
	c.mu.Lock()
	c.unread = n
	cb := c.onUnreadCount
	c.mu.Unlock()
	if cb != nil {
		cb(n)
	}
}

// reconcile refetches the authoritative unread count and notification list
// over REST. Best effort: a failed refetch leaves the pushed values in
// place until the next reconnect.
func (c *Controller) reconcile() {
	count, err := c.fetchUnreadCount()
	if err != nil {
		log.WithError(err).Warn("Failed to reconcile unread count")
	} else {
		c.setUnread(count)
	}

	if c.onHistory == nil {
		return
	}
	notifications, err := c.FetchNotifications()
	if err != nil {
		log.WithError(err).Warn("Failed to reconcile notification list")
		return
	}
	c.onHistory(notifications)
}

func (c *Controller) fetchUnreadCount() (int64, error) {
	var out struct {
		Count int64 `json:"count"`
	}
	if err := c.getJSON("/notifications/unread-count", &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// FetchNotifications returns the authoritative list, newest first.
func (c *Controller) FetchNotifications() ([]models.Notification, error) {
	var out []models.Notification
	if err := c.getJSON("/notifications", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Controller) getJSON(path string, out interface{}) error {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
