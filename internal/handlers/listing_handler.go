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

// ListingHandler handles HTTP requests for provider listings.
type ListingHandler struct {
	Service *services.ListingService
}

func NewListingHandler(service *services.ListingService) *ListingHandler {
	return &ListingHandler{Service: service}
}

// CreateListingHandler lets a provider publish a listing.
func (h *ListingHandler) CreateListingHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var listing models.Listing
	if err := json.NewDecoder(r.Body).Decode(&listing); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	providerID, _ := primitive.ObjectIDFromHex(claims.UserID)
	created, err := h.Service.CreateListing(r.Context(), providerID, &listing)
	if err != nil {
		log.WithError(err).Warn("Failed to create listing")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(created)
}

// GetListingsHandler returns active listings, optionally by category.
func (h *ListingHandler) GetListingsHandler(w http.ResponseWriter, r *http.Request) {
	listings, err := h.Service.BrowseListings(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		log.WithError(err).Error("Failed to fetch listings")
		http.Error(w, "Failed to fetch listings", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(listings)
}

// GetListingHandler returns one listing by id.
func (h *ListingHandler) GetListingHandler(w http.ResponseWriter, r *http.Request) {
	listing, err := h.Service.GetListing(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Listing not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(listing)
}

// DeactivateListingHandler hides a listing owned by the caller.
func (h *ListingHandler) DeactivateListingHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	providerID, _ := primitive.ObjectIDFromHex(claims.UserID)
	if err := h.Service.DeactivateListing(r.Context(), providerID, mux.Vars(r)["id"]); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Listing deactivated"})
}
