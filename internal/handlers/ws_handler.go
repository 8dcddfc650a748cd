package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/marcelolino/servicos-conecte-sub004/internal/models"
	"github.com/marcelolino/servicos-conecte-sub004/internal/services"
	"github.com/marcelolino/servicos-conecte-sub004/internal/ws"
	jwtutil "github.com/marcelolino/servicos-conecte-sub004/pkg/jwt"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler serves the single /ws endpoint. Every role connects here; the
// user's identity comes from the auth frame, never from the path.
//
// A new connection must authenticate with its first meaningful frame:
// {"type":"auth","token":"<bearer>"}. On success the server replies with an
// auth_success frame followed by the authoritative unread count. On a bad
// token it sends an error frame and closes. Frames arriving before auth
// that are not auth frames are ignored, tolerating client buffering races.
type WSHandler struct {
	Registry      *ws.Registry
	Notifications *services.NotificationService
	Chat          *services.ChatService
	JWTSecret     string
	// AuthTimeout bounds the wait for the auth frame so idle
	// unauthenticated sockets cannot accumulate.
	AuthTimeout time.Duration
}

func NewWSHandler(registry *ws.Registry, notifications *services.NotificationService, chat *services.ChatService, jwtSecret string, authTimeout time.Duration) *WSHandler {
	return &WSHandler{
		Registry:      registry,
		Notifications: notifications,
		Chat:          chat,
		JWTSecret:     jwtSecret,
		AuthTimeout:   authTimeout,
	}
}

// ServeWS upgrades the connection and runs its lifetime: handshake, then
// the read loop, then registry cleanup on any exit path.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sock, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	c := ws.NewConn(sock)
	defer func() {
		h.Registry.Unregister(c)
		_ = c.Close()
		log.WithField("connID", c.ID()).Info("WebSocket disconnected")
	}()

	claims, ok := h.handshake(sock, c)
	if !ok {
		return
	}

	c.Bind(claims.UserID)
	h.Registry.Register(claims.UserID, c)
	log.WithFields(log.Fields{
		"userID": claims.UserID,
		"connID": c.ID(),
	}).Info("WebSocket authenticated")

	if err := c.Send(ws.AuthSuccessFrame()); err != nil {
		return
	}

	// Fresh count so the client reconciles immediately, even if it missed
	// pushes while offline.
	userID, _ := primitive.ObjectIDFromHex(claims.UserID)
	if count, err := h.Notifications.UnreadCount(r.Context(), userID); err != nil {
		log.WithError(err).Warn("Failed to fetch unread count on handshake")
	} else if err := c.Send(ws.CountFrame(count)); err != nil {
		return
	}

	h.readLoop(r, sock, c, userID)
}

// handshake waits for the auth frame within AuthTimeout. It returns false
// when the connection should be dropped: timeout, transport error, or a
// rejected credential (which gets an explicit error frame first).
func (h *WSHandler) handshake(sock *websocket.Conn, c *ws.SocketConn) (*jwtutil.Claims, bool) {
	_ = sock.SetReadDeadline(time.Now().Add(h.AuthTimeout))
	defer func() { _ = sock.SetReadDeadline(time.Time{}) }()

	for {
		var frame ws.ClientFrame
		if err := sock.ReadJSON(&frame); err != nil {
			log.WithError(err).Info("Connection closed before authentication")
			return nil, false
		}
		if frame.Type != ws.FrameAuth {
			continue
		}

		claims, err := jwtutil.ValidateToken(frame.Token, h.JWTSecret)
		if err != nil {
			log.WithError(err).Warn("WebSocket auth rejected")
			_ = c.Send(ws.ErrorFrame("invalid or expired token"))
			return nil, false
		}
		return claims, true
	}
}

// readLoop handles frames from an authenticated connection until it closes.
// Only chat frames are meaningful; everything else is ignored.
func (h *WSHandler) readLoop(r *http.Request, sock *websocket.Conn, c *ws.SocketConn, userID primitive.ObjectID) {
	for {
		var frame ws.ClientFrame
		if err := sock.ReadJSON(&frame); err != nil {
			return
		}
		if frame.Type != ws.FrameChat {
			continue
		}

		receiverID, err := primitive.ObjectIDFromHex(frame.ReceiverID)
		if err != nil {
			_ = c.Send(ws.ErrorFrame("invalid receiver id"))
			continue
		}

		msg := &models.Message{
			SenderID:   userID,
			ReceiverID: receiverID,
			Text:       frame.Text,
		}
		if frame.BookingID != "" {
			bookingID, err := primitive.ObjectIDFromHex(frame.BookingID)
			if err != nil {
				_ = c.Send(ws.ErrorFrame("invalid booking id"))
				continue
			}
			msg.BookingID = &bookingID
		}

		saved, err := h.Chat.SendMessage(r.Context(), msg)
		if err != nil {
			log.WithError(err).Warn("Failed to handle chat frame")
			_ = c.Send(ws.ErrorFrame("failed to send message"))
			continue
		}
		// Echo back so the sender's other tabs and its own UI converge.
		_ = c.Send(ws.ChatFrame(saved))
	}
}
