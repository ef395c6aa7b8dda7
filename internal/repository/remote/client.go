// Package remote reads appointments and medications from the PHMS backend REST API.
package remote

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"github.com/jwalitptl/phms-engine/internal/model"
	"github.com/jwalitptl/phms-engine/internal/repository"
	apperrors "github.com/jwalitptl/phms-engine/pkg/errors"
	"github.com/jwalitptl/phms-engine/pkg/logger"
	"github.com/jwalitptl/phms-engine/pkg/metrics"
)

type Config struct {
	BaseURL string
	Timeout time.Duration
	Retries int
	// Token is sent as a bearer token when set.
	Token string
}

// Client implements both entity repositories over HTTP. Calls go through a
// circuit breaker; a 404 is a NotFound and does not count as a failure.
type Client struct {
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
	logger  *logger.Logger
	metrics *metrics.Metrics
}

var (
	_ repository.AppointmentRepository = (*Client)(nil)
	_ repository.MedicationRepository  = (*Client)(nil)
)

func NewClient(cfg Config, log *logger.Logger, m *metrics.Metrics) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		}).
		SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		httpClient.SetAuthToken(cfg.Token)
	}

	log = log.Named("remote_repository")
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "phms-backend",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || apperrors.HasCode(err, apperrors.ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Client{
		http:    httpClient,
		breaker: breaker,
		logger:  log,
		metrics: m,
	}
}

func (c *Client) GetAppointment(ctx context.Context, id int64) (*model.Appointment, error) {
	var appt model.Appointment
	err := c.get(ctx, "get_appointment", "appointment", "/appointments/"+strconv.FormatInt(id, 10), nil, &appt)
	if err != nil {
		return nil, err
	}
	return &appt, nil
}

func (c *Client) ListUpcomingAppointments(ctx context.Context, userID string) ([]*model.Appointment, error) {
	var appts []*model.Appointment
	err := c.get(ctx, "list_appointments", "appointments", "/appointments/upcoming", map[string]string{"userId": userID}, &appts)
	if err != nil {
		return nil, err
	}
	return appts, nil
}

func (c *Client) GetMedication(ctx context.Context, id int64) (*model.Medication, error) {
	var med model.Medication
	err := c.get(ctx, "get_medication", "medication", "/medications/"+strconv.FormatInt(id, 10), nil, &med)
	if err != nil {
		return nil, err
	}
	return &med, nil
}

func (c *Client) ListMedications(ctx context.Context, userID string) ([]*model.Medication, error) {
	var meds []*model.Medication
	err := c.get(ctx, "list_medications", "medications", "/medications", map[string]string{"userId": userID}, &meds)
	if err != nil {
		return nil, err
	}
	return meds, nil
}

func (c *Client) get(ctx context.Context, op, resource, path string, query map[string]string, out interface{}) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		req := c.http.R().SetContext(ctx).SetResult(out)
		if len(query) > 0 {
			req.SetQueryParams(query)
		}

		resp, err := req.Get(path)
		if err != nil {
			return nil, fmt.Errorf("failed to call %s: %w", path, err)
		}

		switch {
		case resp.StatusCode() == http.StatusNotFound:
			return nil, apperrors.NotFound(resource, nil)
		case resp.IsError():
			return nil, fmt.Errorf("%s returned status %d", path, resp.StatusCode())
		}
		return nil, nil
	})

	c.observe(op, err)
	if err != nil {
		if !apperrors.HasCode(err, apperrors.ErrNotFound) {
			c.logger.Error(err, "backend request failed", "operation", op)
		}
		return err
	}
	return nil
}

func (c *Client) observe(op string, err error) {
	if c.metrics == nil {
		return
	}
	status := "ok"
	switch {
	case apperrors.HasCode(err, apperrors.ErrNotFound):
		status = "not_found"
	case err != nil:
		status = "error"
	}
	c.metrics.RepositoryRequests.WithLabelValues(op, status).Inc()
}
