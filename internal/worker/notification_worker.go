package worker

import (
	"context"
	"time"

	"github.com/spec-kit/storefront-realtime/internal/events"
	"github.com/spec-kit/storefront-realtime/internal/service"
)

// StartNotificationWorker registers notification handlers and starts the
// bus workers. Handlers run on a context that ignores parent cancellation,
// so events drained at shutdown still reach postgres and the channel layer.
//
// The returned func stops intake and waits up to drainTimeout for queued
// events. Only then is the handler context cancelled.
func StartNotificationWorker(parent context.Context, bus *events.QueueDispatcher, notificationService *service.NotificationService, drainTimeout time.Duration) (stop func()) {
	if notificationService != nil {
		notificationService.RegisterHandlers()
	}
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	bus.Start(ctx)

	return func() {
		defer cancel()
		drained := make(chan struct{})
		go func() {
			bus.Close()
			close(drained)
		}()

		timer := time.NewTimer(drainTimeout)
		defer timer.Stop()
		select {
		case <-drained:
		case <-timer.C:
			cancel()
			<-drained
		}
	}
}
