// Package app builds the engine's object graph from configuration. Both the
// API server and the headless worker start from here.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/jwalitptl/phms-engine/internal/alarm"
	"github.com/jwalitptl/phms-engine/internal/alerting"
	"github.com/jwalitptl/phms-engine/internal/config"
	"github.com/jwalitptl/phms-engine/internal/handler/health"
	"github.com/jwalitptl/phms-engine/internal/model"
	"github.com/jwalitptl/phms-engine/internal/notify"
	"github.com/jwalitptl/phms-engine/internal/reminder"
	"github.com/jwalitptl/phms-engine/internal/repository"
	"github.com/jwalitptl/phms-engine/internal/repository/postgres"
	"github.com/jwalitptl/phms-engine/internal/repository/remote"
	"github.com/jwalitptl/phms-engine/internal/store"
	"github.com/jwalitptl/phms-engine/internal/vitals"
	"github.com/jwalitptl/phms-engine/internal/worker"
	"github.com/jwalitptl/phms-engine/pkg/logger"
	"github.com/jwalitptl/phms-engine/pkg/messaging"
	redisbroker "github.com/jwalitptl/phms-engine/pkg/messaging/redis"
	"github.com/jwalitptl/phms-engine/pkg/metrics"
	pkgworker "github.com/jwalitptl/phms-engine/pkg/worker"
)

const metricsNamespace = "phms"

// App owns every long-lived component. Close releases them in reverse order.
type App struct {
	Config   *config.Config
	Logger   *logger.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Location *time.Location

	Thresholds  *store.ThresholdStore
	Preferences *store.PreferenceStore

	Appointments repository.AppointmentRepository
	Medications  repository.MedicationRepository

	Broker    messaging.Broker
	Alarms    *alarm.Manager
	Scheduler *reminder.Scheduler
	Receiver  *reminder.Receiver
	Recovery  *reminder.Recovery
	Vitals    *vitals.Engine

	alerts  *vitals.FanoutSink
	checks  []health.Check
	closers []func() error
	wg      sync.WaitGroup
}

// NewLogger builds the process logger from the log section.
func NewLogger(cfg config.LogConfig) *logger.Logger {
	return logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		JSON:       !cfg.Pretty,
	})
}

// New connects to the configured backends and wires the engine. On error,
// anything already opened is closed.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a := &App{
		Config:   cfg,
		Logger:   log,
		Registry: reg,
		Metrics:  metrics.NewMetrics(reg, metricsNamespace, ""),
		Location: loc,
	}

	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	kv, redisClient, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	a.Thresholds = store.NewThresholdStore(kv)
	a.Preferences = store.NewPreferenceStore(kv)

	if redisClient != nil {
		a.Broker = redisbroker.NewFromClient(redisClient, a.Logger)
		a.closers = append(a.closers, a.Broker.Close)
	}

	if err := a.openRepositories(ctx); err != nil {
		return err
	}

	notifier, err := a.buildNotifier(ctx)
	if err != nil {
		return err
	}

	a.Receiver = reminder.NewReceiver(a.Appointments, a.Medications, notifier, a.Logger, a.Metrics)
	a.Alarms = alarm.NewManager(func(ctx context.Context, p model.ReminderPayload) {
		a.Receiver.HandleFire(ctx, p)
	}, a.Logger, a.Metrics, alarm.WithLocation(a.Location))
	a.closers = append(a.closers, func() error {
		a.Alarms.Close()
		return nil
	})

	opts := []reminder.Option{reminder.WithLocation(a.Location)}
	if a.Config.Reminders.PromptOnce {
		opts = append(opts, reminder.WithPermissionPrompt(a.Preferences, notify.NewPrompter(a.publisher(a.Config.Notifier.Channel), a.Logger)))
	}
	a.Scheduler = reminder.NewScheduler(a.Alarms, a.Appointments, a.Medications, a.Logger, a.Metrics, opts...)
	a.Recovery = reminder.NewRecovery(a.Scheduler, a.Preferences, a.Logger)

	sink, err := a.buildAlertSink()
	if err != nil {
		return err
	}
	a.alerts = sink

	a.Vitals = vitals.NewEngine(vitals.Config{
		Interval:      a.Config.Vitals.Interval,
		HistorySize:   a.Config.Vitals.HistorySize,
		InitialPoints: a.Config.Vitals.InitialPoints,
	}, a.Thresholds, a.alerts, a.Logger, a.Metrics)
	return nil
}

func (a *App) openStore(ctx context.Context) (store.KV, *redis.Client, error) {
	if a.Config.Redis.URL == "" {
		a.Logger.Warn("No redis url configured, using in-memory store")
		return store.NewMemoryKV(), nil, nil
	}

	opts, err := redis.ParseURL(a.Config.Redis.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	a.closers = append(a.closers, client.Close)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	a.checks = append(a.checks, health.Check{
		Name: "redis",
		Ping: func(ctx context.Context) error { return client.Ping(ctx).Err() },
	})
	return store.NewRedisKV(client, a.Config.Redis.Prefix), client, nil
}

func (a *App) openRepositories(ctx context.Context) error {
	switch a.Config.Repository.Driver {
	case config.RepositoryRemote:
		client := remote.NewClient(remote.Config{
			BaseURL: a.Config.Repository.BaseURL,
			Timeout: a.Config.Repository.Timeout,
			Retries: a.Config.Repository.Retries,
			Token:   a.Config.Repository.Token,
		}, a.Logger, a.Metrics)
		a.Appointments, a.Medications = client, client
	default:
		db, err := postgres.NewDB(ctx, a.Config.Database)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, db.Close)
		a.checks = append(a.checks, dbCheck(db))
		a.Appointments = postgres.NewAppointmentRepository(db)
		a.Medications = postgres.NewMedicationRepository(db)
	}
	return nil
}

func dbCheck(db *sqlx.DB) health.Check {
	return health.Check{Name: "database", Ping: db.PingContext}
}

func (a *App) buildNotifier(ctx context.Context) (reminder.Notifier, error) {
	switch a.Config.Notifier.Driver {
	case config.NotifierBroker:
		if a.Broker == nil {
			return nil, errors.New("notifier driver broker requires redis")
		}
		return notify.NewBrokerNotifier(a.publisher(a.Config.Notifier.Channel)), nil
	case config.NotifierFCM:
		client, err := notify.NewFCMClient(ctx, a.Config.Notifier.CredentialsFile, a.Config.Notifier.ProjectID)
		if err != nil {
			return nil, err
		}
		return notify.NewFCMNotifier(client, a.Preferences, a.Logger), nil
	default:
		return notify.NewLogNotifier(a.Logger), nil
	}
}

// publisher returns nil when there is no broker.
func (a *App) publisher(channel string) messaging.Publisher {
	if a.Broker == nil {
		return nil
	}
	return messaging.NewChannelPublisher(a.Broker, channel)
}

func (a *App) buildAlertSink() (*vitals.FanoutSink, error) {
	alerts := a.Config.Alerts
	sinks := vitals.NewFanoutSink(pkgworker.QueueConfig{
		Size:          alerts.QueueSize,
		RetryAttempts: 3,
		RetryDelay:    time.Second,
	}, a.Logger, a.Metrics)

	if alerts.HasSink("log") {
		sinks.Add(vitals.NewLogSink(a.Logger))
	}
	if alerts.HasSink("broker") {
		if a.Broker == nil {
			return nil, errors.New("alert sink broker requires redis")
		}
		sinks.AddQueued("broker", alerting.NewBrokerSink(a.publisher(alerts.Channel)))
	}
	if alerts.HasSink("mqtt") {
		client, err := alerting.NewMQTTClient(alerts.MQTT)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error {
			client.Disconnect(250)
			return nil
		})
		sinks.AddQueued("mqtt", alerting.NewMQTTSink(client, alerts.MQTT.Topic, alerts.MQTT.QoS))
	}
	if alerts.HasSink("email") {
		if len(alerts.Email.Recipients) == 0 {
			return nil, errors.New("alert sink email requires recipients")
		}
		sinks.AddQueued("email", alerting.NewEmailSink(
			alerting.NewDialer(alerts.Email),
			alerts.Email.From,
			alerts.Email.Recipients,
			alerts.Email.MinGap,
			a.Location,
			a.Logger,
		))
	}

	if sinks.Len() == 0 {
		a.Logger.Warn("No alert sinks enabled, alerts are only counted")
	}
	return sinks, nil
}

// HealthChecks returns readiness checks for the opened backends.
func (a *App) HealthChecks() []health.Check {
	return a.checks
}

// Start launches the background parts: the alert queues, the vitals engine,
// boot recovery, the periodic recheck and the user activity consumer. They
// stop when ctx is cancelled.
func (a *App) Start(ctx context.Context) error {
	a.goRun(func() { a.alerts.Start(ctx) })

	if a.Config.Vitals.Enabled {
		if err := a.Vitals.Start(ctx); err != nil {
			return fmt.Errorf("failed to start vitals engine: %w", err)
		}
	}

	if result, ran := a.Recovery.OnBoot(ctx); ran {
		a.Logger.Info("Boot recovery complete", "user_id", result.UserID, "timers", result.Timers, "failures", result.Failures)
	}

	recheck := worker.NewReminderRecheckWorker(a.Recovery, a.Config.Reminders.RecheckInterval, a.Logger)
	a.goRun(func() { recheck.Start(ctx) })

	if a.Broker != nil {
		consumer := worker.NewUserActivityConsumer(a.Broker, a.Config.Reminders.ActivityChannel, a.Preferences, a.Scheduler, a.Logger)
		a.goRun(func() {
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.Logger.Error(err, "User activity consumer stopped")
			}
		})
	}
	return nil
}

func (a *App) goRun(fn func()) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn()
	}()
}

// Close stops the engine and releases connections. Cancel the Start context
// first so background loops exit.
func (a *App) Close() {
	if a.Vitals != nil {
		a.Vitals.Stop()
	}
	a.wg.Wait()

	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Error(err, "Failed to close resource")
		}
	}
	a.closers = nil
}
