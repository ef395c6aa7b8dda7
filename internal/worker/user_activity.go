package worker

import (
	"context"
	"fmt"

	"github.com/jwalitptl/phms-engine/internal/reminder"
	"github.com/jwalitptl/phms-engine/pkg/logger"
	"github.com/jwalitptl/phms-engine/pkg/messaging"
)

const EventUserActive = "user.active"

type UserActivePayload struct {
	UserID string `json:"userId"`
}

type LastUserRecorder interface {
	SetLastActiveUser(ctx context.Context, userID string) error
}

type BulkScheduler interface {
	ScheduleAllForUser(ctx context.Context, userID string) reminder.SyncResult
}

// UserActivityConsumer records sign-ins published by the backend and schedules
// that user's reminders.
type UserActivityConsumer struct {
	broker    messaging.Broker
	channel   string
	users     LastUserRecorder
	scheduler BulkScheduler
	logger    *logger.Logger
}

func NewUserActivityConsumer(broker messaging.Broker, channel string, users LastUserRecorder, scheduler BulkScheduler, log *logger.Logger) *UserActivityConsumer {
	return &UserActivityConsumer{
		broker:    broker,
		channel:   channel,
		users:     users,
		scheduler: scheduler,
		logger:    log.Named("user_activity"),
	}
}

func (c *UserActivityConsumer) Start(ctx context.Context) error {
	return messaging.Consume(ctx, c.broker, c.channel, c.logger, c.Handle)
}

func (c *UserActivityConsumer) Handle(ctx context.Context, msg messaging.Message) error {
	if msg.Type != EventUserActive {
		return nil
	}
	var payload UserActivePayload
	if err := msg.Decode(&payload); err != nil {
		return fmt.Errorf("invalid %s payload: %w", EventUserActive, err)
	}
	if payload.UserID == "" {
		return fmt.Errorf("%s without userId", EventUserActive)
	}

	if err := c.users.SetLastActiveUser(ctx, payload.UserID); err != nil {
		return fmt.Errorf("failed to record last active user: %w", err)
	}
	result := c.scheduler.ScheduleAllForUser(ctx, payload.UserID)
	c.logger.Info("Scheduled reminders for active user",
		"user_id", payload.UserID,
		"timers", result.Timers,
		"failures", result.Failures,
	)
	return nil
}
