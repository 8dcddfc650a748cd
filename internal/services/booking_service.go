package services

import (
	"context"
	"fmt"

	"github.com/marcelolino/servicos-conecte-sub004/internal/models"
	"github.com/marcelolino/servicos-conecte-sub004/internal/repository"
	"github.com/marcelolino/servicos-conecte-sub004/pkg/email"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Allowed booking status transitions.
var bookingTransitions = map[string][]string{
	models.BookingPending:  {models.BookingAccepted, models.BookingDeclined, models.BookingCancelled},
	models.BookingAccepted: {models.BookingCompleted, models.BookingCancelled},
}

// BookingService encapsulates the booking lifecycle. Every transition
// notifies the party that did not initiate it.
type BookingService struct {
	repo          *repository.BookingRepository
	listingRepo   *repository.ListingRepository
	userRepo      *repository.UserRepository
	notifications *NotificationService
	mailer        *email.Sender
}

func NewBookingService(repo *repository.BookingRepository, listingRepo *repository.ListingRepository, userRepo *repository.UserRepository, notifications *NotificationService, mailer *email.Sender) *BookingService {
	return &BookingService{
		repo:          repo,
		listingRepo:   listingRepo,
		userRepo:      userRepo,
		notifications: notifications,
		mailer:        mailer,
	}
}

// CreateBooking books a listing for a client and notifies the provider.
func (s *BookingService) CreateBooking(ctx context.Context, clientID primitive.ObjectID, booking *models.Booking) (*models.Booking, error) {
	listing, err := s.listingRepo.GetListingByID(ctx, booking.ListingID)
	if err != nil {
		return nil, fmt.Errorf("listing not found: %v", err)
	}
	if !listing.Active {
		return nil, fmt.Errorf("listing is not available for booking")
	}
	if listing.ProviderID == clientID {
		return nil, fmt.Errorf("cannot book your own listing")
	}

	booking.ClientID = clientID
	booking.ProviderID = listing.ProviderID
	booking.Status = models.BookingPending

	created, err := s.repo.CreateBooking(ctx, booking)
	if err != nil {
		return nil, err
	}

	_, err = s.notifications.Dispatch(ctx, listing.ProviderID,
		models.NotifNewBooking,
		"Nova reserva",
		fmt.Sprintf("Você recebeu uma nova reserva para %q.", listing.Title),
		&created.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("booking created but notification failed: %v", err)
	}

	s.sendConfirmationEmail(ctx, clientID, listing.Title)

	logrus.WithFields(logrus.Fields{
		"bookingID":  created.ID.Hex(),
		"clientID":   clientID.Hex(),
		"providerID": listing.ProviderID.Hex(),
	}).Info("Booking created")
	return created, nil
}

// UpdateStatus applies a status transition requested by actorID and
// notifies the counterparty.
func (s *BookingService) UpdateStatus(ctx context.Context, actorID primitive.ObjectID, bookingID, newStatus string) (*models.Booking, error) {
	objID, err := primitive.ObjectIDFromHex(bookingID)
	if err != nil {
		return nil, fmt.Errorf("invalid booking id: %v", err)
	}
	booking, err := s.repo.GetBookingByID(ctx, objID)
	if err != nil {
		return nil, err
	}

	if !transitionAllowed(booking.Status, newStatus) {
		return nil, fmt.Errorf("cannot change booking from %s to %s", booking.Status, newStatus)
	}
	if err := s.checkActor(booking, actorID, newStatus); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateBookingStatus(ctx, objID, newStatus); err != nil {
		return nil, err
	}
	booking.Status = newStatus

	// Notify whichever side did not make the change.
	recipient := booking.ClientID
	if actorID == booking.ClientID {
		recipient = booking.ProviderID
	}
	_, err = s.notifications.Dispatch(ctx, recipient,
		models.NotifBookingStatus,
		statusTitle(newStatus),
		fmt.Sprintf("Sua reserva agora está %s.", statusLabel(newStatus)),
		&booking.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("status updated but notification failed: %v", err)
	}

	logrus.WithFields(logrus.Fields{
		"bookingID": booking.ID.Hex(),
		"status":    newStatus,
	}).Info("Booking status updated")
	return booking, nil
}

// GetBooking fetches one booking, restricted to its participants.
func (s *BookingService) GetBooking(ctx context.Context, userID primitive.ObjectID, id string) (*models.Booking, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid booking id: %v", err)
	}
	booking, err := s.repo.GetBookingByID(ctx, objID)
	if err != nil {
		return nil, err
	}
	if booking.ClientID != userID && booking.ProviderID != userID {
		return nil, fmt.Errorf("booking does not belong to user")
	}
	return booking, nil
}

// GetBookings returns all bookings the user participates in.
func (s *BookingService) GetBookings(ctx context.Context, userID primitive.ObjectID) ([]models.Booking, error) {
	return s.repo.GetBookingsForUser(ctx, userID)
}

func (s *BookingService) checkActor(booking *models.Booking, actorID primitive.ObjectID, newStatus string) error {
	switch newStatus {
	case models.BookingAccepted, models.BookingDeclined:
		if actorID != booking.ProviderID {
			return fmt.Errorf("only the provider may accept or decline")
		}
	case models.BookingCancelled:
		if booking.Status == models.BookingPending && actorID != booking.ClientID {
			return fmt.Errorf("only the client may cancel a pending booking")
		}
		if actorID != booking.ClientID && actorID != booking.ProviderID {
			return fmt.Errorf("booking does not belong to user")
		}
	case models.BookingCompleted:
		if actorID != booking.ClientID && actorID != booking.ProviderID {
			return fmt.Errorf("booking does not belong to user")
		}
	default:
		return fmt.Errorf("unknown booking status %q", newStatus)
	}
	return nil
}

// sendConfirmationEmail is best effort; booking flow never fails on mail.
func (s *BookingService) sendConfirmationEmail(ctx context.Context, clientID primitive.ObjectID, listingTitle string) {
	if s.mailer == nil {
		return
	}
	client, err := s.userRepo.GetUserByID(ctx, clientID)
	if err != nil {
		logrus.WithError(err).Warn("Skipping confirmation email, client lookup failed")
		return
	}
	body := fmt.Sprintf("Olá %s,\n\nSua reserva de %q foi registrada e aguarda confirmação do prestador.", client.Username, listingTitle)
	if err := s.mailer.Send(client.Email, "Reserva registrada", body); err != nil {
		logrus.WithError(err).Warn("Failed to send booking confirmation email")
	}
}

func transitionAllowed(from, to string) bool {
	for _, allowed := range bookingTransitions[from] {
		if to == allowed {
			return true
		}
	}
	return false
}

func statusTitle(status string) string {
	switch status {
	case models.BookingAccepted:
		return "Reserva aceita"
	case models.BookingDeclined:
		return "Reserva recusada"
	case models.BookingCompleted:
		return "Serviço concluído"
	case models.BookingCancelled:
		return "Reserva cancelada"
	default:
		return "Atualização de reserva"
	}
}

func statusLabel(status string) string {
	switch status {
	case models.BookingAccepted:
		return "aceita"
	case models.BookingDeclined:
		return "recusada"
	case models.BookingCompleted:
		return "concluída"
	case models.BookingCancelled:
		return "cancelada"
	default:
		return status
	}
}
