package services

import (
	"context"
	"fmt"

	"github.com/marcelolino/servicos-conecte-sub004/internal/models"
	"github.com/marcelolino/servicos-conecte-sub004/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ListingService encapsulates business logic for provider listings.
type ListingService struct {
	repo *repository.ListingRepository
}

func NewListingService(repo *repository.ListingRepository) *ListingService {
	return &ListingService{repo: repo}
}

// CreateListing creates a listing owned by the given provider.
func (s *ListingService) CreateListing(ctx context.Context, providerID primitive.ObjectID, listing *models.Listing) (*models.Listing, error) {
	if listing.Title == "" || listing.Price <= 0 {
		return nil, fmt.Errorf("listing requires a title and a positive price")
	}
	listing.ProviderID = providerID
	listing.Active = true
	return s.repo.CreateListing(ctx, listing)
}

// GetListing fetches one listing by hex id.
func (s *ListingService) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid listing id: %v", err)
	}
	return s.repo.GetListingByID(ctx, objID)
}

// BrowseListings returns active listings, optionally by category.
func (s *ListingService) BrowseListings(ctx context.Context, category string) ([]models.Listing, error) {
	return s.repo.GetActiveListings(ctx, category)
}

// DeactivateListing hides a listing; only its owner may do so.
func (s *ListingService) DeactivateListing(ctx context.Context, providerID primitive.ObjectID, id string) error {
	listing, err := s.GetListing(ctx, id)
	if err != nil {
		return err
	}
	if listing.ProviderID != providerID {
		return fmt.Errorf("only the owning provider may update a listing")
	}
	return s.repo.UpdateListing(ctx, listing.ID, bson.M{"active": false})
}
