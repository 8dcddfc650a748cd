package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Booking lifecycle statuses.
const (
	BookingPending   = "pending"
	BookingAccepted  = "accepted"
	BookingDeclined  = "declined"
	BookingCompleted = "completed"
	BookingCancelled = "cancelled"
)

// Booking is a client's reservation of a provider's listing.
type Booking struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ClientID   primitive.ObjectID `bson:"client_id" json:"clientId"`
	ProviderID primitive.ObjectID `bson:"provider_id" json:"providerId"`
	ListingID  primitive.ObjectID `bson:"listing_id" json:"listingId"`
	Date       time.Time          `bson:"date" json:"date"`
	Status     string             `bson:"status" json:"status"`
	Note       string             `bson:"note,omitempty" json:"note,omitempty"`
	CreatedAt  time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updated_at" json:"updatedAt"`
}
