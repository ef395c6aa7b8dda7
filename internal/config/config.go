package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Repository RepositoryConfig `mapstructure:"repository"`
	Reminders  ReminderConfig   `mapstructure:"reminders"`
	Vitals     VitalsConfig     `mapstructure:"vitals"`
	Notifier   NotifierConfig   `mapstructure:"notifier"`
	Alerts     AlertsConfig     `mapstructure:"alerts"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit" split_words:"true"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	MetricsPort    int           `mapstructure:"metrics_port" split_words:"true"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout" split_words:"true"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" split_words:"true"`
	TimeoutSeconds int           `mapstructure:"timeout_seconds" split_words:"true"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// RedisConfig: an empty URL selects the in-process store.
type RedisConfig struct {
	URL    string `mapstructure:"url"`
	Prefix string `mapstructure:"prefix"`
}

const (
	RepositoryPostgres = "postgres"
	RepositoryRemote   = "remote"
)

type RepositoryConfig struct {
	Driver  string        `mapstructure:"driver"`
	BaseURL string        `mapstructure:"base_url" split_words:"true"`
	Timeout time.Duration `mapstructure:"timeout"`
	Retries int           `mapstructure:"retries"`
	Token   string        `mapstructure:"token"`
}

type ReminderConfig struct {
	Timezone        string        `mapstructure:"timezone"`
	RecheckInterval time.Duration `mapstructure:"recheck_interval" split_words:"true"`
	PromptOnce      bool          `mapstructure:"prompt_once" split_words:"true"`
	ActivityChannel string        `mapstructure:"activity_channel" split_words:"true"`
}

type VitalsConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Interval      time.Duration `mapstructure:"interval"`
	HistorySize   int           `mapstructure:"history_size" split_words:"true"`
	InitialPoints int           `mapstructure:"initial_points" split_words:"true"`
}

const (
	NotifierLog    = "log"
	NotifierBroker = "broker"
	NotifierFCM    = "fcm"
)

type NotifierConfig struct {
	Driver          string `mapstructure:"driver"`
	Channel         string `mapstructure:"channel"`
	CredentialsFile string `mapstructure:"credentials_file" split_words:"true"`
	ProjectID       string `mapstructure:"project_id" split_words:"true"`
}

type AlertsConfig struct {
	Sinks     []string    `mapstructure:"sinks"`
	QueueSize int         `mapstructure:"queue_size" split_words:"true"`
	Channel   string      `mapstructure:"channel"`
	MQTT      MQTTConfig  `mapstructure:"mqtt"`
	Email     EmailConfig `mapstructure:"email"`
}

type MQTTConfig struct {
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client_id" split_words:"true"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Topic    string `mapstructure:"topic"`
	QoS      byte   `mapstructure:"qos"`
}

type EmailConfig struct {
	Host       string        `mapstructure:"host"`
	Port       int           `mapstructure:"port"`
	Username   string        `mapstructure:"username"`
	Password   string        `mapstructure:"password"`
	From       string        `mapstructure:"from"`
	Recipients []string      `mapstructure:"recipients"`
	MinGap     time.Duration `mapstructure:"min_gap" split_words:"true"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" split_words:"true"`
	Burst             int     `mapstructure:"burst"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

const envPrefix = "PHMS"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.timeout_seconds", 30)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "phms")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("redis.prefix", "phms:")

	v.SetDefault("repository.driver", RepositoryPostgres)
	v.SetDefault("repository.timeout", 10*time.Second)
	v.SetDefault("repository.retries", 2)

	v.SetDefault("reminders.timezone", "Local")
	v.SetDefault("reminders.recheck_interval", 12*time.Hour)
	v.SetDefault("reminders.prompt_once", true)
	v.SetDefault("reminders.activity_channel", "user_activity")

	v.SetDefault("vitals.enabled", true)
	v.SetDefault("vitals.interval", 3500*time.Millisecond)
	v.SetDefault("vitals.history_size", 75)
	v.SetDefault("vitals.initial_points", 15)

	v.SetDefault("notifier.driver", NotifierLog)
	v.SetDefault("notifier.channel", "notifications")

	v.SetDefault("alerts.sinks", []string{"log"})
	v.SetDefault("alerts.queue_size", 100)
	v.SetDefault("alerts.channel", "vital_alerts")
	v.SetDefault("alerts.mqtt.client_id", "phms-engine")
	v.SetDefault("alerts.mqtt.topic", "phms/alerts")
	v.SetDefault("alerts.mqtt.qos", 1)
	v.SetDefault("alerts.email.port", 587)
	v.SetDefault("alerts.email.min_gap", 5*time.Minute)

	v.SetDefault("rate_limit.requests_per_second", 20.0)
	v.SetDefault("rate_limit.burst", 40)

	v.SetDefault("log.level", "info")
}

// Load reads config.yaml from path (or ./ and ./config when path is empty),
// then applies PHMS_* environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Repository.Driver {
	case RepositoryPostgres:
	case RepositoryRemote:
		if c.Repository.BaseURL == "" {
			return errors.New("repository.base_url is required for the remote driver")
		}
	default:
		return fmt.Errorf("unknown repository driver %q", c.Repository.Driver)
	}

	switch c.Notifier.Driver {
	case NotifierLog, NotifierBroker, NotifierFCM:
	default:
		return fmt.Errorf("unknown notifier driver %q", c.Notifier.Driver)
	}

	if c.Vitals.Interval <= 0 {
		return errors.New("vitals.interval must be positive")
	}
	if c.Vitals.HistorySize <= 0 {
		return errors.New("vitals.history_size must be positive")
	}
	if c.Alerts.QueueSize <= 0 {
		return errors.New("alerts.queue_size must be positive")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the reminder timezone. "Local" and "" mean the host zone.
func (c *Config) Location() (*time.Location, error) {
	switch c.Reminders.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Reminders.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid reminders.timezone: %w", err)
	}
	return loc, nil
}

// HasSink reports whether the named alert sink is enabled.
func (a AlertsConfig) HasSink(name string) bool {
	for _, s := range a.Sinks {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}
