package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/storefront-realtime/internal/domain"
	"github.com/spec-kit/storefront-realtime/internal/events"
)

// eventPublisher hands domain events to the bus after a write succeeded.
// A publish failure is logged and never returned to the caller.
type eventPublisher struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

func newEventPublisher(dispatcher events.Dispatcher, logger *zap.Logger) eventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return eventPublisher{dispatcher: dispatcher, logger: logger, now: time.Now}
}

func (p eventPublisher) publishEvent(ctx context.Context, event events.Event) {
	if p.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}
	if err := p.dispatcher.Publish(ctx, event); err != nil {
		p.logger.Warn("event not published",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.String("key", event.Key),
			zap.Error(err))
	}
}

func actorOf(user *domain.User) events.Actor {
	if user == nil {
		return events.Actor{}
	}
	return events.Actor{UserID: user.ID, IsStaff: user.IsAdmin()}
}
