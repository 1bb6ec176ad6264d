package worker

import (
	"github.com/spec-kit/triage-service/internal/service"
)

// StartNotificationWorker registers the event handlers that log acknowledgements and
// forward lifecycle events.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}
