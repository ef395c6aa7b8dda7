package worker

import (
	"context"
	"time"

	"github.com/jwalitptl/phms-engine/internal/reminder"
	"github.com/jwalitptl/phms-engine/pkg/logger"
)

// Resyncer reschedules the last active user's reminders.
type Resyncer interface {
	OnBoot(ctx context.Context) (reminder.SyncResult, bool)
}

// ReminderRecheckWorker periodically re-runs bulk scheduling so entities edited
// elsewhere pick up fresh timers.
type ReminderRecheckWorker struct {
	resync   Resyncer
	interval time.Duration
	logger   *logger.Logger
}

func NewReminderRecheckWorker(resync Resyncer, interval time.Duration, log *logger.Logger) *ReminderRecheckWorker {
	return &ReminderRecheckWorker{
		resync:   resync,
		interval: interval,
		logger:   log.Named("reminder_recheck"),
	}
}

func (w *ReminderRecheckWorker) Start(ctx context.Context) {
	if w.interval <= 0 {
		w.logger.Info("Reminder recheck disabled")
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.recheck(ctx)
		}
	}
}

func (w *ReminderRecheckWorker) recheck(ctx context.Context) {
	result, ran := w.resync.OnBoot(ctx)
	if !ran {
		return
	}
	w.logger.Info("Reminder recheck complete",
		"user_id", result.UserID,
		"timers", result.Timers,
		"failures", result.Failures,
	)
}
