package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 8081\n"))
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, 3500*time.Millisecond, cfg.Vitals.Interval)
	assert.Equal(t, 75, cfg.Vitals.HistorySize)
	assert.Equal(t, 15, cfg.Vitals.InitialPoints)
	assert.Equal(t, 12*time.Hour, cfg.Reminders.RecheckInterval)
	assert.Equal(t, RepositoryPostgres, cfg.Repository.Driver)
	assert.Equal(t, NotifierLog, cfg.Notifier.Driver)
	assert.True(t, cfg.Alerts.HasSink("LOG"))
	assert.False(t, cfg.Alerts.HasSink("mqtt"))
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PHMS_SERVER_PORT", "9000")
	t.Setenv("PHMS_VITALS_HISTORY_SIZE", "30")
	t.Setenv("PHMS_ALERTS_SINKS", "log,mqtt")
	t.Setenv("PHMS_REMINDERS_TIMEZONE", "Europe/Berlin")

	cfg, err := Load(writeConfig(t, "server:\n  port: 8081\n"))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 30, cfg.Vitals.HistorySize)
	assert.Equal(t, []string{"log", "mqtt"}, cfg.Alerts.Sinks)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"remote without base url", "repository:\n  driver: remote\n"},
		{"unknown repository", "repository:\n  driver: sqlite\n"},
		{"unknown notifier", "notifier:\n  driver: sms\n"},
		{"bad timezone", "reminders:\n  timezone: Mars/Olympus\n"},
		{"zero history", "vitals:\n  history_size: 0\n"},
		{"zero alert queue", "alerts:\n  queue_size: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "phms", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=phms sslmode=disable", d.DSN())
}
