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

// BookingRepository handles database operations for bookings.
type BookingRepository struct {
	collection *mongo.Collection
}

func NewBookingRepository(db *mongo.Database) *BookingRepository {
	return &BookingRepository{collection: db.Collection("bookings")}
}

// CreateBooking inserts a new booking.
func (r *BookingRepository) CreateBooking(ctx context.Context, booking *models.Booking) (*models.Booking, error) {
	booking.CreatedAt = time.Now()
	booking.UpdatedAt = time.Now()

	result, err := r.collection.InsertOne(ctx, booking)
	if err != nil {
		logrus.WithError(err).Error("Failed to insert booking")
		return nil, fmt.Errorf("failed to insert booking: %v", err)
	}
	booking.ID = result.InsertedID.(primitive.ObjectID)

	logrus.WithField("bookingID", booking.ID.Hex()).Info("Booking inserted successfully")
	return booking, nil
}

// GetBookingByID retrieves one booking.
func (r *BookingRepository) GetBookingByID(ctx context.Context, id primitive.ObjectID) (*models.Booking, error) {
	var booking models.Booking
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&booking)
	if err != nil {
		return nil, fmt.Errorf("failed to find booking: %v", err)
	}
	return &booking, nil
}

// GetBookingsForUser returns bookings where the user is either side,
// newest first.
func (r *BookingRepository) GetBookingsForUser(ctx context.Context, userID primitive.ObjectID) ([]models.Booking, error) {
	filter := bson.M{
		"$or": []bson.M{
			{"client_id": userID},
			{"provider_id": userID},
		},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bookings: %v", err)
	}
	defer cursor.Close(ctx)

	var bookings []models.Booking
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %v", err)
	}
	return bookings, nil
}

// UpdateBookingStatus sets a booking's status.
func (r *BookingRepository) UpdateBookingStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	update := bson.M{"$set": bson.M{"status": status, "updated_at": time.Now()}}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %v", err)
	}
	return nil
}
