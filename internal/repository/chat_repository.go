package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/marcelolino/servicos-conecte-sub004/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ChatRepository handles database operations for chat messages.
type ChatRepository struct {
	collection *mongo.Collection
}

func NewChatRepository(db *mongo.Database) *ChatRepository {
	return &ChatRepository{collection: db.Collection("messages")}
}

// InsertMessage persists a chat message.
func (r *ChatRepository) InsertMessage(ctx context.Context, msg *models.Message) (*models.Message, error) {
	msg.CreatedAt = time.Now()
	result, err := r.collection.InsertOne(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("failed to insert message: %v", err)
	}
	msg.ID = result.InsertedID.(primitive.ObjectID)
	return msg, nil
}

// GetConversation returns the full message history between two users,
// oldest first.
func (r *ChatRepository) GetConversation(ctx context.Context, userID, otherID primitive.ObjectID) ([]models.Message, error) {
	filter := bson.M{
		"$or": []bson.M{
			{"sender_id": userID, "receiver_id": otherID},
			{"sender_id": otherID, "receiver_id": userID},
		},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch conversation: %v", err)
	}
	defer cursor.Close(ctx)

	var messages []models.Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %v", err)
	}
	return messages, nil
}
