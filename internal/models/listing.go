package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Listing is a service a provider offers on the marketplace.
type Listing struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ProviderID  primitive.ObjectID `bson:"provider_id" json:"providerId"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Category    string             `bson:"category,omitempty" json:"category,omitempty"`
	Price       float64            `bson:"price" json:"price"`
	Active      bool               `bson:"active" json:"active"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updatedAt"`
}
