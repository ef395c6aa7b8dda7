package notify

import (
	"context"
	"fmt"
	"strconv"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/jwalitptl/phms-engine/internal/model"
	apperrors "github.com/jwalitptl/phms-engine/pkg/errors"
	"github.com/jwalitptl/phms-engine/pkg/logger"
)

// Sender is the part of the FCM client the notifier needs.
type Sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

type TokenStore interface {
	DeviceToken(ctx context.Context, userID string) (string, bool, error)
	DeleteDeviceToken(ctx context.Context, userID string) error
}

// NewFCMClient builds a messaging client from a service account file. An empty
// path uses application default credentials.
func NewFCMClient(ctx context.Context, credentialsFile, projectID string) (*messaging.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	var conf *firebase.Config
	if projectID != "" {
		conf = &firebase.Config{ProjectID: projectID}
	}

	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting Messaging client: %w", err)
	}
	return client, nil
}

type FCMNotifier struct {
	sender Sender
	tokens TokenStore
	logger *logger.Logger
}

func NewFCMNotifier(sender Sender, tokens TokenStore, log *logger.Logger) *FCMNotifier {
	return &FCMNotifier{sender: sender, tokens: tokens, logger: log.Named("fcm")}
}

// Show pushes the notification to the user's registered device. A user with no
// token, or whose token FCM reports as unregistered, gets PermissionDenied.
func (n *FCMNotifier) Show(ctx context.Context, note model.Notification) error {
	token, ok, err := n.tokens.DeviceToken(ctx, note.UserID)
	if err != nil {
		return fmt.Errorf("failed to look up device token: %w", err)
	}
	if !ok {
		return apperrors.PermissionDenied("notification")
	}

	msg := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: note.Title,
			Body:  note.Body,
		},
		Data: map[string]string{
			"notificationId": strconv.FormatInt(note.ID, 10),
			"channel":        string(note.Channel),
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			// Same tag replaces an earlier notification for the same trigger.
			CollapseKey: strconv.FormatInt(note.ID, 10),
			Notification: &messaging.AndroidNotification{
				ChannelID:    string(note.Channel),
				Tag:          strconv.FormatInt(note.ID, 10),
				Priority:     messaging.PriorityHigh,
				DefaultSound: true,
			},
		},
	}

	id, err := n.sender.Send(ctx, msg)
	if err != nil {
		if messaging.IsUnregistered(err) {
			n.logger.Warn("device token no longer registered", "user_id", note.UserID)
			if delErr := n.tokens.DeleteDeviceToken(ctx, note.UserID); delErr != nil {
				n.logger.Error(delErr, "failed to drop stale device token", "user_id", note.UserID)
			}
			return apperrors.PermissionDenied("notification")
		}
		return fmt.Errorf("error sending push: %w", err)
	}

	n.logger.Debug("push sent", "message_id", id, "notification_id", note.ID)
	return nil
}
