package reminder

import (
	"context"

	"github.com/jwalitptl/phms-engine/pkg/logger"
)

// LastUserStore returns the user that was last active on this install.
type LastUserStore interface {
	LastActiveUser(ctx context.Context) (userID string, ok bool, err error)
}

// Recovery re-registers timers after a restart, since registrations do not
// outlive the process.
type Recovery struct {
	scheduler *Scheduler
	users     LastUserStore
	logger    *logger.Logger
}

func NewRecovery(scheduler *Scheduler, users LastUserStore, logger *logger.Logger) *Recovery {
	return &Recovery{
		scheduler: scheduler,
		users:     users,
		logger:    logger.Named("reminder-recovery"),
	}
}

// OnBoot reschedules everything for the last active user. Without a recorded
// user it does nothing.
func (r *Recovery) OnBoot(ctx context.Context) (SyncResult, bool) {
	userID, ok, err := r.users.LastActiveUser(ctx)
	if err != nil {
		r.logger.Error(err, "Failed to read last active user")
		return SyncResult{}, false
	}
	if !ok || userID == "" {
		r.logger.Info("No last active user recorded, skipping reminder recovery")
		return SyncResult{}, false
	}

	r.logger.Info("Rescheduling reminders", "user_id", userID)
	return r.scheduler.ScheduleAllForUser(ctx, userID), true
}
