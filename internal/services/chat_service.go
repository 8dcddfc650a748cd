package services

import (
	"context"
	"fmt"

	"github.com/marcelolino/servicos-conecte-sub004/internal/models"
	"github.com/marcelolino/servicos-conecte-sub004/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const chatPreviewLen = 80

// previewText shortens a message body for the notification preview.
// Truncation happens on rune boundaries so accented characters are never
// split mid-sequence.
func previewText(s string) string {
	runes := []rune(s)
	if len(runes) <= chatPreviewLen {
		return s
	}
	return string(runes[:chatPreviewLen]) + "…"
}

// ChatService persists chat messages and hands delivery to the dispatcher.
// The REST endpoint and the socket read loop both funnel through SendMessage.
type ChatService struct {
	repo          *repository.ChatRepository
	notifications *NotificationService
}

func NewChatService(repo *repository.ChatRepository, notifications *NotificationService) *ChatService {
	return &ChatService{repo: repo, notifications: notifications}
}

// SendMessage stores the message, relays it live to the receiver and
// dispatches a chat notification. The message write and the notification
// write are both durable before any push.
func (s *ChatService) SendMessage(ctx context.Context, msg *models.Message) (*models.Message, error) {
	if msg.Text == "" {
		return nil, fmt.Errorf("message text is required")
	}
	if msg.SenderID == msg.ReceiverID {
		return nil, fmt.Errorf("cannot message yourself")
	}

	saved, err := s.repo.InsertMessage(ctx, msg)
	if err != nil {
		return nil, err
	}

	s.notifications.PushChat(saved)

	_, err = s.notifications.Dispatch(ctx, saved.ReceiverID,
		models.NotifChatMessage,
		"Nova mensagem",
		previewText(saved.Text),
		&saved.SenderID,
	)
	if err != nil {
		return nil, fmt.Errorf("message sent but notification failed: %v", err)
	}

	return saved, nil
}

// GetConversation returns the history between the user and another party.
func (s *ChatService) GetConversation(ctx context.Context, userID primitive.ObjectID, otherID string) ([]models.Message, error) {
	other, err := primitive.ObjectIDFromHex(otherID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %v", err)
	}
	return s.repo.GetConversation(ctx, userID, other)
}
