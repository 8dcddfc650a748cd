package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/marcelolino/servicos-conecte-sub004/internal/models"
	"github.com/marcelolino/servicos-conecte-sub004/internal/services"
	"github.com/marcelolino/servicos-conecte-sub004/pkg/middleware"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BookingHandler handles HTTP requests for bookings.
type BookingHandler struct {
	Service *services.BookingService
}

func NewBookingHandler(service *services.BookingService) *BookingHandler {
	return &BookingHandler{Service: service}
}

// CreateBookingHandler books a listing for the authenticated client.
func (h *BookingHandler) CreateBookingHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		ListingID string    `json:"listingId"`
		Date      time.Time `json:"date"`
		Note      string    `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	listingID, err := primitive.ObjectIDFromHex(req.ListingID)
	if err != nil {
		http.Error(w, "Invalid listing id", http.StatusBadRequest)
		return
	}
	clientID, _ := primitive.ObjectIDFromHex(claims.UserID)

	booking := &models.Booking{
		ListingID: listingID,
		Date:      req.Date,
		Note:      req.Note,
	}
	created, err := h.Service.CreateBooking(r.Context(), clientID, booking)
	if err != nil {
		log.WithError(err).Warn("Failed to create booking")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(created)
}

// GetBookingsHandler returns the caller's bookings.
func (h *BookingHandler) GetBookingsHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	userID, _ := primitive.ObjectIDFromHex(claims.UserID)
	bookings, err := h.Service.GetBookings(r.Context(), userID)
	if err != nil {
		log.WithError(err).Error("Failed to fetch bookings")
		http.Error(w, "Failed to fetch bookings", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(bookings)
}

// GetBookingHandler returns one booking the caller participates in.
func (h *BookingHandler) GetBookingHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	userID, _ := primitive.ObjectIDFromHex(claims.UserID)
	booking, err := h.Service.GetBooking(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Booking not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(booking)
}

// UpdateBookingStatusHandler applies a status transition.
func (h *BookingHandler) UpdateBookingStatusHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	actorID, _ := primitive.ObjectIDFromHex(claims.UserID)
	booking, err := h.Service.UpdateStatus(r.Context(), actorID, mux.Vars(r)["id"], req.Status)
	if err != nil {
		log.WithError(err).Warn("Failed to update booking status")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(booking)
}
