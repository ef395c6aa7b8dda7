package alerting

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/phms-engine/internal/config"
	"github.com/jwalitptl/phms-engine/internal/model"
	"github.com/jwalitptl/phms-engine/pkg/logger"
)

// Mailer sends composed messages. *gomail.Dialer satisfies it.
type Mailer interface {
	DialAndSend(m ...*gomail.Message) error
}

func NewDialer(cfg config.EmailConfig) *gomail.Dialer {
	return gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
}

// EmailSink mails emergency contacts. Repeats of the same alert name inside
// minGap are suppressed.
type EmailSink struct {
	mailer     Mailer
	from       string
	recipients []string
	minGap     time.Duration
	loc        *time.Location
	logger     *logger.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewEmailSink(mailer Mailer, from string, recipients []string, minGap time.Duration, loc *time.Location, log *logger.Logger) *EmailSink {
	if loc == nil {
		loc = time.Local
	}
	return &EmailSink{
		mailer:     mailer,
		from:       from,
		recipients: recipients,
		minGap:     minGap,
		loc:        loc,
		logger:     log.Named("email_sink"),
		limiters:   make(map[string]*rate.Limiter),
	}
}

// limiter returns the vital's limiter, or nil when suppression is off.
func (s *EmailSink) limiter(name string) *rate.Limiter {
	if s.minGap <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[name]
	if !ok {
		l = rate.NewLimiter(rate.Every(s.minGap), 1)
		s.limiters[name] = l
	}
	return l
}

// Publish sends one email per alert. The vital's slot is only used up once the
// mail went out, so a failed send can be retried right away.
func (s *EmailSink) Publish(_ context.Context, a model.VitalAlert) error {
	if len(s.recipients) == 0 {
		return nil
	}
	l := s.limiter(a.VitalName)
	if l != nil && l.Tokens() < 1 {
		s.logger.Debug("alert email suppressed", "vital", a.VitalName)
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", s.recipients...)
	m.SetHeader("Subject", "Health alert: "+a.VitalName)
	m.SetBody("text/plain", alertBody(a, s.loc))

	if err := s.mailer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}
	if l != nil {
		l.Allow()
	}
	return nil
}

func alertBody(a model.VitalAlert, loc *time.Location) string {
	direction := "below"
	if a.IsHigh {
		direction = "above"
	}
	at := time.UnixMilli(a.TimestampMs).In(loc).Format("2006-01-02 15:04:05")

	var b strings.Builder
	fmt.Fprintf(&b, "%s reading of %.1f is %s the limit of %.1f.\n", a.VitalName, a.Value, direction, a.Threshold)
	fmt.Fprintf(&b, "Measured at %s.\n", at)
	b.WriteString("Please check on the patient.\n")
	return b.String()
}
