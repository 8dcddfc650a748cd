package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification type tags.
const (
	NotifGeneric       = "generic"
	NotifNewBooking    = "new_booking"
	NotifBookingStatus = "booking_status"
	NotifChatMessage   = "chat_message"
	NotifOrderEvent    = "order_event"
)

// Notification is a durable per-user event record. The live socket push is a
// latency optimization over this record, never a replacement for it.
type Notification struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID  `bson:"user_id" json:"userId"`
	Type      string              `bson:"type" json:"type"`
	Title     string              `bson:"title" json:"title"`
	Message   string              `bson:"message" json:"message"`
	Read      bool                `bson:"read" json:"isRead"`
	TargetID  *primitive.ObjectID `bson:"target_id,omitempty" json:"relatedId,omitempty"`
	CreatedAt time.Time           `bson:"created_at" json:"createdAt"`
	ExpiresAt time.Time           `bson:"expires_at" json:"-"`
}
