package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/marcelolino/servicos-conecte-sub004/internal/models"
	"github.com/marcelolino/servicos-conecte-sub004/internal/services"
	"github.com/marcelolino/servicos-conecte-sub004/pkg/middleware"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChatHandler exposes the REST side of chat; the socket read loop feeds the
// same service.
type ChatHandler struct {
	Service *services.ChatService
}

func NewChatHandler(service *services.ChatService) *ChatHandler {
	return &ChatHandler{Service: service}
}

// POST /chat
func (h *ChatHandler) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		ReceiverID string `json:"receiverId"`
		BookingID  string `json:"bookingId"`
		Text       string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	receiverID, err := primitive.ObjectIDFromHex(req.ReceiverID)
	if err != nil {
		http.Error(w, "Invalid receiver id", http.StatusBadRequest)
		return
	}
	senderID, _ := primitive.ObjectIDFromHex(claims.UserID)

	msg := &models.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       req.Text,
	}
	if req.BookingID != "" {
		bookingID, err := primitive.ObjectIDFromHex(req.BookingID)
		if err != nil {
			http.Error(w, "Invalid booking id", http.StatusBadRequest)
			return
		}
		msg.BookingID = &bookingID
	}

	saved, err := h.Service.SendMessage(r.Context(), msg)
	if err != nil {
		log.WithError(err).Warn("Failed to send chat message")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(saved)
}

// GET /chat/{userId}
func (h *ChatHandler) GetConversationHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	userID, _ := primitive.ObjectIDFromHex(claims.UserID)
	messages, err := h.Service.GetConversation(r.Context(), userID, mux.Vars(r)["userId"])
	if err != nil {
		log.WithError(err).Warn("Failed to get conversation")
		http.Error(w, "Failed to get conversation", http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(messages)
}
