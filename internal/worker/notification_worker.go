package worker

import (
	"github.com/spec-kit/verification-service/internal/events"
	"github.com/spec-kit/verification-service/internal/service"
)

// StartNotificationWorker subscribes the notification handlers to the
// dispatcher.
func StartNotificationWorker(notificationService *service.NotificationService, dispatcher events.Dispatcher) {
	if notificationService == nil || dispatcher == nil {
		return
	}
	notificationService.Register(dispatcher)
}
