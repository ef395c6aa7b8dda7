// Package notify delivers reminder notifications and permission prompts.
package notify

import (
	"context"

	"github.com/jwalitptl/phms-engine/internal/model"
	"github.com/jwalitptl/phms-engine/pkg/logger"
	"github.com/jwalitptl/phms-engine/pkg/messaging"
)

const (
	EventNotificationShow   = "notification.show"
	EventExactAlarmRequired = "permission.exact_alarm.request"
)

// LogNotifier writes notifications to the log. Used when no delivery channel
// is configured.
type LogNotifier struct {
	logger *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{logger: log.Named("notifier")}
}

func (n *LogNotifier) Show(_ context.Context, note model.Notification) error {
	n.logger.Info(note.Title,
		"notification_id", note.ID,
		"user_id", note.UserID,
		"channel", string(note.Channel),
		"body", note.Body,
	)
	return nil
}

// BrokerNotifier publishes notifications for a device-side consumer to display.
type BrokerNotifier struct {
	pub messaging.Publisher
}

func NewBrokerNotifier(pub messaging.Publisher) *BrokerNotifier {
	return &BrokerNotifier{pub: pub}
}

func (n *BrokerNotifier) Show(ctx context.Context, note model.Notification) error {
	return n.pub.Publish(ctx, EventNotificationShow, note)
}

// Prompter asks the device to open the exact alarm settings screen.
type Prompter struct {
	pub    messaging.Publisher
	logger *logger.Logger
}

// NewPrompter accepts a nil publisher, in which case the prompt is only logged.
func NewPrompter(pub messaging.Publisher, log *logger.Logger) *Prompter {
	return &Prompter{pub: pub, logger: log.Named("prompter")}
}

func (p *Prompter) RequestExactSchedulingPermission(ctx context.Context) error {
	p.logger.Warn("exact scheduling permission required; asking the user to grant it")
	if p.pub == nil {
		return nil
	}
	return p.pub.Publish(ctx, EventExactAlarmRequired, struct{}{})
}
