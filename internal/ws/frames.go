package ws

import "github.com/marcelolino/servicos-conecte-sub004/internal/models"

// Frame types exchanged over the socket.
const (
	FrameAuth         = "auth"
	FrameAuthSuccess  = "auth_success"
	FrameError        = "error"
	FrameUnreadCount  = "unread_count"
	FrameNotification = "notification"
	FrameChat         = "chat"
)

// ClientFrame is every message a browser may send. The first frame on a new
// socket must be an auth frame; after that only chat frames are meaningful.
type ClientFrame struct {
	Type       string `json:"type"`
	Token      string `json:"token,omitempty"`
	ReceiverID string `json:"receiver_id,omitempty"`
	BookingID  string `json:"booking_id,omitempty"`
	Text       string `json:"text,omitempty"`
}

type ackFrame struct {
	Type string `json:"type"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type countFrame struct {
	Type  string `json:"type"`
	Count int64  `json:"count"`
}

type notificationFrame struct {
	Type string               `json:"type"`
	Data *models.Notification `json:"data"`
}

type chatFrame struct {
	Type string          `json:"type"`
	Data *models.Message `json:"data"`
}

// AuthSuccessFrame acknowledges a completed handshake.
func AuthSuccessFrame() interface{} { return ackFrame{Type: FrameAuthSuccess} }

// ErrorFrame is sent before closing a rejected connection.
func ErrorFrame(msg string) interface{} { return errorFrame{Type: FrameError, Message: msg} }

// CountFrame carries the authoritative unread count.
func CountFrame(count int64) interface{} { return countFrame{Type: FrameUnreadCount, Count: count} }

// NotificationFrame carries one pushed notification.
func NotificationFrame(n *models.Notification) interface{} {
	return notificationFrame{Type: FrameNotification, Data: n}
}

// ChatFrame relays a persisted chat message to the receiver.
func ChatFrame(m *models.Message) interface{} {
	return chatFrame{Type: FrameChat, Data: m}
}
