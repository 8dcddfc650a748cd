package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message is a chat message between a client and a provider, optionally
// attached to a booking.
type Message struct {
	ID         primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	SenderID   primitive.ObjectID  `bson:"sender_id" json:"senderId"`
	ReceiverID primitive.ObjectID  `bson:"receiver_id" json:"receiverId"`
	BookingID  *primitive.ObjectID `bson:"booking_id,omitempty" json:"bookingId,omitempty"`
	Text       string              `bson:"text" json:"text"`
	CreatedAt  time.Time           `bson:"created_at" json:"createdAt"`
}
