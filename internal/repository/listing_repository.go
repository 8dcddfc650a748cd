package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/marcelolino/servicos-conecte-sub004/internal/models"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ListingRepository handles database operations for provider listings.
type ListingRepository struct {
	collection *mongo.Collection
}

func NewListingRepository(db *mongo.Database) *ListingRepository {
	return &ListingRepository{collection: db.Collection("listings")}
}

// CreateListing inserts a new listing.
func (r *ListingRepository) CreateListing(ctx context.Context, listing *models.Listing) (*models.Listing, error) {
	listing.CreatedAt = time.Now()
	listing.UpdatedAt = time.Now()

	result, err := r.collection.InsertOne(ctx, listing)
	if err != nil {
		logrus.WithError(err).Error("Failed to insert listing")
		return nil, fmt.Errorf("failed to insert listing: %v", err)
	}
	listing.ID = result.InsertedID.(primitive.ObjectID)
	return listing, nil
}

// GetListingByID retrieves one listing.
func (r *ListingRepository) GetListingByID(ctx context.Context, id primitive.ObjectID) (*models.Listing, error) {
	var listing models.Listing
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&listing)
	if err != nil {
		return nil, fmt.Errorf("failed to find listing: %v", err)
	}
	return &listing, nil
}

// GetActiveListings returns active listings, optionally filtered by category.
func (r *ListingRepository) GetActiveListings(ctx context.Context, category string) ([]models.Listing, error) {
	filter := bson.M{"active": true}
	if category != "" {
		filter["category"] = category
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listings: %v", err)
	}
	defer cursor.Close(ctx)

	var listings []models.Listing
	if err := cursor.All(ctx, &listings); err != nil {
		return nil, fmt.Errorf("failed to decode listings: %v", err)
	}
	return listings, nil
}

// UpdateListing applies a partial update to a listing owned by the provider.
func (r *ListingRepository) UpdateListing(ctx context.Context, id primitive.ObjectID, update bson.M) error {
	update["updated_at"] = time.Now()
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": update})
	if err != nil {
		return fmt.Errorf("failed to update listing: %v", err)
	}
	return nil
}
