package services

import (
	"context"
	"fmt"

	"github.com/marcelolino/servicos-conecte-sub004/internal/models"
	"github.com/marcelolino/servicos-conecte-sub004/internal/ws"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationStore is the durable side of dispatch.
// *repository.NotificationRepository is the production implementation.
type NotificationStore interface {
	Insert(ctx context.Context, notif *models.Notification) error
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID primitive.ObjectID) (int64, error)
	MarkRead(ctx context.Context, userID, id primitive.ObjectID) error
	MarkAllRead(ctx context.Context, userID primitive.ObjectID) error
	DeleteExpired(ctx context.Context) error
}

// ConnectionRegistry is the live side of dispatch.
// *ws.Registry is the production implementation.
type ConnectionRegistry interface {
	ConnectionsFor(userID string) []ws.Conn
	Unregister(c ws.Conn)
}

// NotificationService persists notifications and fans them out to the
// recipient's live connections. Persistence is the source of truth; the
// push is a latency optimization on top of it.
type NotificationService struct {
	store    NotificationStore
	registry ConnectionRegistry
}

func NewNotificationService(store NotificationStore, registry ConnectionRegistry) *NotificationService {
	return &NotificationService{
		store:    store,
		registry: registry,
	}
}

// Dispatch is the single entry point business logic calls when a
// notification-worthy event occurs. It persists the notification first and
// returns an error only if that write fails; push failures are isolated
// per connection and never reach the caller.
func (s *NotificationService) Dispatch(ctx context.Context, userID primitive.ObjectID, notifType, title, message string, targetID *primitive.ObjectID) (*models.Notification, error) {
	notif := &models.Notification{
		UserID:   userID,
		Type:     notifType,
		Title:    title,
		Message:  message,
		Read:     false,
		TargetID: targetID,
	}
	if err := s.store.Insert(ctx, notif); err != nil {
		return nil, fmt.Errorf("failed to persist notification: %v", err)
	}

	// Recount from storage rather than incrementing in memory, so
	// concurrent dispatches to the same user cannot drift the counter.
	count, countErr := s.store.CountUnread(ctx, userID)
	if countErr != nil {
		logrus.WithError(countErr).WithField("userID", userID.Hex()).
			Warn("Failed to recount unread notifications, skipping count push")
	}

	for _, c := range s.registry.ConnectionsFor(userID.Hex()) {
		if err := c.Send(ws.NotificationFrame(notif)); err != nil {
			s.dropConnection(c, err)
			continue
		}
		if countErr == nil {
			if err := c.Send(ws.CountFrame(count)); err != nil {
				s.dropConnection(c, err)
			}
		}
	}

	return notif, nil
}

// PushUnreadCount recounts and pushes the unread counter to every live
// connection of the user. Used after read-state changes so other open tabs
// update their badge. Best effort.
func (s *NotificationService) PushUnreadCount(ctx context.Context, userID primitive.ObjectID) {
	count, err := s.store.CountUnread(ctx, userID)
	if err != nil {
		logrus.WithError(err).WithField("userID", userID.Hex()).
			Warn("Failed to recount unread notifications")
		return
	}
	for _, c := range s.registry.ConnectionsFor(userID.Hex()) {
		if err := c.Send(ws.CountFrame(count)); err != nil {
			s.dropConnection(c, err)
		}
	}
}

// PushChat relays a persisted chat message to the receiver's connections.
func (s *NotificationService) PushChat(msg *models.Message) {
	for _, c := range s.registry.ConnectionsFor(msg.ReceiverID.Hex()) {
		if err := c.Send(ws.ChatFrame(msg)); err != nil {
			s.dropConnection(c, err)
		}
	}
}

// dropConnection evicts a connection whose send failed. One dead recipient
// must never abort delivery to the rest.
func (s *NotificationService) dropConnection(c ws.Conn, err error) {
	logrus.WithError(err).WithFields(logrus.Fields{
		"userID": c.UserID(),
		"connID": c.ID(),
	}).Warn("Dropping connection after failed push")
	s.registry.Unregister(c)
	_ = c.Close()
}

// ListNotifications returns the user's notifications, newest first.
func (s *NotificationService) ListNotifications(ctx context.Context, userID primitive.ObjectID) ([]models.Notification, error) {
	return s.store.ListByUser(ctx, userID)
}

// UnreadCount returns the authoritative unread count.
func (s *NotificationService) UnreadCount(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return s.store.CountUnread(ctx, userID)
}

// MarkNotificationRead flips one of the user's notifications and refreshes
// the live badge. Only the recipient can acknowledge a notification.
func (s *NotificationService) MarkNotificationRead(ctx context.Context, userID, notifID primitive.ObjectID) error {
	if err := s.store.MarkRead(ctx, userID, notifID); err != nil {
		return err
	}
	s.PushUnreadCount(ctx, userID)
	return nil
}

// MarkAllNotificationsRead flips every unread notification of the user and
// refreshes the live badge.
func (s *NotificationService) MarkAllNotificationsRead(ctx context.Context, userID primitive.ObjectID) error {
	if err := s.store.MarkAllRead(ctx, userID); err != nil {
		return err
	}
	s.PushUnreadCount(ctx, userID)
	return nil
}

// DeleteExpiredNotifications is called by the cron sweep.
func (s *NotificationService) DeleteExpiredNotifications(ctx context.Context) error {
	return s.store.DeleteExpired(ctx)
}
