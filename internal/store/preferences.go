package store

import (
	"context"
	"errors"
)

const (
	keyLastUser          = "prefs:last_user_uid"
	keyExactAlarmPrompt  = "prefs:exact_alarm_prompted"
	deviceTokenKeyPrefix = "devices:"
)

// PreferenceStore holds per-install state that used to live in process-wide
// maps and shared preferences.
type PreferenceStore struct {
	kv KV
}

func NewPreferenceStore(kv KV) *PreferenceStore {
	return &PreferenceStore{kv: kv}
}

func (p *PreferenceStore) LastActiveUser(ctx context.Context) (string, bool, error) {
	v, err := p.kv.Get(ctx, keyLastUser)
	if errors.Is(err, ErrMiss) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, v != "", nil
}

func (p *PreferenceStore) SetLastActiveUser(ctx context.Context, userID string) error {
	return p.kv.Set(ctx, keyLastUser, userID, 0)
}

func (p *PreferenceStore) ExactAlarmPrompted(ctx context.Context) (bool, error) {
	v, err := p.kv.Get(ctx, keyExactAlarmPrompt)
	if errors.Is(err, ErrMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v == "1", nil
}

func (p *PreferenceStore) MarkExactAlarmPrompted(ctx context.Context) error {
	return p.kv.Set(ctx, keyExactAlarmPrompt, "1", 0)
}

// DeviceToken returns the push token registered for the user.
func (p *PreferenceStore) DeviceToken(ctx context.Context, userID string) (string, bool, error) {
	v, err := p.kv.Get(ctx, deviceTokenKey(userID))
	if errors.Is(err, ErrMiss) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, v != "", nil
}

func (p *PreferenceStore) SetDeviceToken(ctx context.Context, userID, token string) error {
	return p.kv.Set(ctx, deviceTokenKey(userID), token, 0)
}

func (p *PreferenceStore) DeleteDeviceToken(ctx context.Context, userID string) error {
	return p.kv.Delete(ctx, deviceTokenKey(userID))
}

func deviceTokenKey(userID string) string {
	return deviceTokenKeyPrefix + userID + ":token"
}
