package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/phms-engine/internal/model"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisKV) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisKV(client, "phms:")
}

func kvImplementations(t *testing.T) map[string]KV {
	_, redisKV := setupTestRedis(t)
	return map[string]KV{
		"redis":  redisKV,
		"memory": NewMemoryKV(),
	}
}

func TestKV_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	for name, kv := range kvImplementations(t) {
		t.Run(name, func(t *testing.T) {
			_, err := kv.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrMiss)

			require.NoError(t, kv.Set(ctx, "k", "v", 0))
			v, err := kv.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, "v", v)

			require.NoError(t, kv.Delete(ctx, "k"))
			_, err = kv.Get(ctx, "k")
			assert.ErrorIs(t, err, ErrMiss)
		})
	}
}

func TestRedisKV_PrefixAndTTL(t *testing.T) {
	mr, kv := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "session", "abc", time.Minute))
	assert.True(t, mr.Exists("phms:session"))
	assert.Equal(t, time.Minute, mr.TTL("phms:session"))

	mr.FastForward(2 * time.Minute)
	_, err := kv.Get(ctx, "session")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestThresholdStore_DefaultsPerKey(t *testing.T) {
	mr, kv := setupTestRedis(t)
	s := NewThresholdStore(kv)
	ctx := context.Background()

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultThresholds(), got)

	require.NoError(t, mr.Set("phms:thresholds:hr_high", "110"))
	require.NoError(t, mr.Set("phms:thresholds:glucose_low", "not-a-number"))

	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 110.0, got.HRHigh)
	assert.Equal(t, model.DefaultGlucoseLow, got.GlucoseLow)
	assert.Equal(t, model.DefaultHRLow, got.HRLow)
}

func TestThresholdStore_SaveRoundTrip(t *testing.T) {
	mr, kv := setupTestRedis(t)
	s := NewThresholdStore(kv)
	ctx := context.Background()

	want := model.DefaultThresholds()
	want.BPDiaHigh = 88.5
	want.CholesterolLow = 95
	require.NoError(t, s.Save(ctx, want))

	raw, err := mr.Get("phms:thresholds:bp_dia_high")
	require.NoError(t, err)
	assert.Equal(t, "88.5", raw)

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestThresholdStore_ReadErrorFallsBack(t *testing.T) {
	mr, kv := setupTestRedis(t)
	s := NewThresholdStore(kv)
	mr.Close()

	got, err := s.Load(context.Background())
	assert.Error(t, err)
	assert.Equal(t, model.DefaultThresholds(), got)
}

func TestPreferenceStore(t *testing.T) {
	ctx := context.Background()
	p := NewPreferenceStore(NewMemoryKV())

	_, ok, err := p.LastActiveUser(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, p.SetLastActiveUser(ctx, "uid-1"))
	user, ok, err := p.LastActiveUser(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "uid-1", user)

	prompted, err := p.ExactAlarmPrompted(ctx)
	require.NoError(t, err)
	assert.False(t, prompted)
	require.NoError(t, p.MarkExactAlarmPrompted(ctx))
	prompted, err = p.ExactAlarmPrompted(ctx)
	require.NoError(t, err)
	assert.True(t, prompted)

	require.NoError(t, p.SetDeviceToken(ctx, "uid-1", "fcm-token"))
	token, ok, err := p.DeviceToken(ctx, "uid-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "fcm-token", token)

	require.NoError(t, p.DeleteDeviceToken(ctx, "uid-1"))
	_, ok, err = p.DeviceToken(ctx, "uid-1")
	require.NoError(t, err)
	assert.False(t, ok)
}
