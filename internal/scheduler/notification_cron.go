package cron

import (
	"context"

	"github.com/marcelolino/servicos-conecte-sub004/internal/services"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// StartNotificationCronJobs runs the periodic maintenance sweeps.
func StartNotificationCronJobs(notificationService *services.NotificationService) *cron.Cron {
	c := cron.New()

	// Retention sweep: drop notifications past their expiry window.
	c.AddFunc("0 3 * * *", func() {
		if err := notificationService.DeleteExpiredNotifications(context.Background()); err != nil {
			logrus.WithError(err).Error("DeleteExpiredNotifications failed")
		}
	})

	c.Start()
	return c
}
