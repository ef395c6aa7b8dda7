package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/phms-engine/internal/model"
	apperrors "github.com/jwalitptl/phms-engine/pkg/errors"
	"github.com/jwalitptl/phms-engine/pkg/logger"
)

type published struct {
	eventType string
	payload   interface{}
}

type fakePublisher struct {
	sent []published
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, eventType string, payload interface{}) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, published{eventType, payload})
	return nil
}

type fakeSender struct {
	messages []*messaging.Message
	err      error
}

func (s *fakeSender) Send(_ context.Context, m *messaging.Message) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.messages = append(s.messages, m)
	return "projects/p/messages/1", nil
}

type fakeTokens map[string]string

func (f fakeTokens) DeviceToken(_ context.Context, uid string) (string, bool, error) {
	t, ok := f[uid]
	return t, ok, nil
}

func (f fakeTokens) DeleteDeviceToken(_ context.Context, uid string) error {
	delete(f, uid)
	return nil
}

var testNote = model.Notification{
	ID:      12,
	UserID:  "uid-1",
	Channel: model.ChannelMedications,
	Title:   "Medication Reminder",
	Body:    "Take 500mg of Metformin",
}

func TestLogNotifier(t *testing.T) {
	assert.NoError(t, NewLogNotifier(logger.Nop()).Show(context.Background(), testNote))
}

func TestBrokerNotifier(t *testing.T) {
	pub := &fakePublisher{}
	require.NoError(t, NewBrokerNotifier(pub).Show(context.Background(), testNote))

	require.Len(t, pub.sent, 1)
	assert.Equal(t, EventNotificationShow, pub.sent[0].eventType)
	raw, err := json.Marshal(pub.sent[0].payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":12,"userId":"uid-1","channel":"medication_reminders","title":"Medication Reminder","body":"Take 500mg of Metformin"}`, string(raw))
}

func TestPrompter(t *testing.T) {
	pub := &fakePublisher{}
	require.NoError(t, NewPrompter(pub, logger.Nop()).RequestExactSchedulingPermission(context.Background()))
	require.Len(t, pub.sent, 1)
	assert.Equal(t, EventExactAlarmRequired, pub.sent[0].eventType)

	assert.NoError(t, NewPrompter(nil, logger.Nop()).RequestExactSchedulingPermission(context.Background()))
}

func TestFCMNotifier_Show(t *testing.T) {
	sender := &fakeSender{}
	n := NewFCMNotifier(sender, fakeTokens{"uid-1": "device-token"}, logger.Nop())

	require.NoError(t, n.Show(context.Background(), testNote))
	require.Len(t, sender.messages, 1)
	msg := sender.messages[0]
	assert.Equal(t, "device-token", msg.Token)
	assert.Equal(t, "Medication Reminder", msg.Notification.Title)
	assert.Equal(t, "12", msg.Data["notificationId"])
	assert.Equal(t, "12", msg.Android.Notification.Tag)
	assert.Equal(t, "medication_reminders", msg.Android.Notification.ChannelID)
}

func TestFCMNotifier_NoToken(t *testing.T) {
	sender := &fakeSender{}
	n := NewFCMNotifier(sender, fakeTokens{}, logger.Nop())

	err := n.Show(context.Background(), testNote)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrPermissionDenied))
	assert.Empty(t, sender.messages)
}

func TestFCMNotifier_SendError(t *testing.T) {
	n := NewFCMNotifier(&fakeSender{err: errors.New("quota exceeded")}, fakeTokens{"uid-1": "t"}, logger.Nop())

	err := n.Show(context.Background(), testNote)
	require.Error(t, err)
	assert.False(t, apperrors.HasCode(err, apperrors.ErrPermissionDenied))
}
