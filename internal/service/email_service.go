package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/content"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/notifications"
	"inkwell/internal/observability"
	"inkwell/internal/repository"

	"github.com/wneessen/go-mail"
	"golang.org/x/time/rate"
)

const (
	smtpTimeout          = 30 * time.Second
	defaultEmailPerSec   = 2.0
	emailLimiterBurst    = 5
	relatedTypeComment   = "Comment"
	relatedTypeEmailTest = "SiteSettings"
)

// MailConfig is the resolved SMTP configuration for one send.
type MailConfig struct {
	Enabled  bool
	Host     string
	Port     int
	UseTLS   bool
	UseSSL   bool
	Username string
	Password string
	From     string
}

// OutgoingMail is a message ready for a transport.
type OutgoingMail struct {
	From    string
	To      []string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers mail. Tests replace the SMTP implementation.
type Sender interface {
	Send(ctx context.Context, cfg MailConfig, msg OutgoingMail) error
}

// SMTPSender delivers mail over SMTP.
type SMTPSender struct{}

// Send dials the configured server and submits msg.
func (SMTPSender) Send(ctx context.Context, cfg MailConfig, msg OutgoingMail) error {
	m := mail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return fmt.Errorf("from address: %w", err)
	}
	if err := m.To(msg.To...); err != nil {
		return fmt.Errorf("recipient address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}

	opts := []mail.Option{mail.WithTimeout(smtpTimeout)}
	switch {
	case cfg.UseSSL:
		opts = append(opts, mail.WithSSL())
	case cfg.UseTLS:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	// port last so the TLS options above cannot override it
	opts = append(opts, mail.WithPort(cfg.Port))

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, m)
}

// Message is a notification to send to one or more recipients.
type Message struct {
	Subject          string
	Text             string
	HTML             string
	Recipients       []string
	NotificationType string
	RelatedType      string
	RelatedID        *uint
}

// EmailService sends best-effort mail and records every attempt in the
// email log. Sends run in background goroutines without retries.
type EmailService struct {
	settings repository.SettingsRepository
	logs     repository.EmailLogRepository
	sender   Sender
	env      MailConfig
	limiter  *rate.Limiter
	events   EventPublisher
	wg       sync.WaitGroup
	now      func() time.Time
}

// NewEmailService builds the service. cfg supplies the fallback SMTP
// settings used when site settings do not enable mail.
func NewEmailService(
	settings repository.SettingsRepository,
	logs repository.EmailLogRepository,
	sender Sender,
	cfg *config.Config,
	events EventPublisher,
) *EmailService {
	if sender == nil {
		sender = SMTPSender{}
	}
	perSec := defaultEmailPerSec
	var env MailConfig
	if cfg != nil {
		env = MailConfig{
			Enabled:  strings.TrimSpace(cfg.EmailHost) != "",
			Host:     cfg.EmailHost,
			Port:     cfg.EmailPort,
			UseTLS:   cfg.EmailUseTLS,
			UseSSL:   cfg.EmailUseSSL,
			Username: cfg.EmailHostUser,
			Password: cfg.EmailHostPassword,
			From:     cfg.DefaultFromEmail,
		}
		if env.From == "" {
			env.From = cfg.EmailHostUser
		}
		if cfg.EmailRatePerSecond > 0 {
			perSec = cfg.EmailRatePerSecond
		}
	}
	return &EmailService{
		settings: settings,
		logs:     logs,
		sender:   sender,
		env:      env,
		limiter:  rate.NewLimiter(rate.Limit(perSec), emailLimiterBurst),
		events:   events,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ResolveConfig prefers mail settings stored in site settings and falls
// back to the environment.
func (s *EmailService) ResolveConfig(ctx context.Context) MailConfig {
	if s.settings != nil {
		st, err := s.settings.Get(ctx)
		if err != nil {
			middleware.Logger.WarnContext(ctx, "load email settings failed", "error", err)
		} else if st.EnableEmailNotification && strings.TrimSpace(st.EmailHost) != "" {
			from := st.EmailFrom
			if from == "" {
				from = st.EmailHostUser
			}
			return MailConfig{
				Enabled:  true,
				Host:     st.EmailHost,
				Port:     st.EmailPort,
				UseTLS:   st.EmailUseTLS,
				UseSSL:   st.EmailUseSSL,
				Username: st.EmailHostUser,
				Password: st.EmailHostPassword,
				From:     from,
			}
		}
	}
	return s.env
}

func validRecipients(in []string) []string {
	out := make([]string, 0, len(in))
	for _, r := range in {
		r = strings.TrimSpace(r)
		if r != "" && strings.Contains(r, "@") {
			out = append(out, r)
		}
	}
	return out
}

// prepare filters recipients, resolves config and writes pending log rows.
// It returns nil logs when nothing should be sent.
func (s *EmailService) prepare(ctx context.Context, msg Message) (MailConfig, []string, []models.EmailLog, error) {
	recipients := validRecipients(msg.Recipients)
	if len(recipients) == 0 {
		return MailConfig{}, nil, nil, nil
	}
	cfg := s.ResolveConfig(ctx)
	if !cfg.Enabled {
		middleware.Logger.InfoContext(ctx, "email notification is disabled", "type", msg.NotificationType)
		return cfg, nil, nil, nil
	}

	logs := make([]models.EmailLog, 0, len(recipients))
	for _, r := range recipients {
		entry := models.EmailLog{
			Recipient:         r,
			Subject:           content.Truncate(msg.Subject, 200),
			Message:           content.Truncate(msg.Text, models.EmailLogMessageLimit),
			Status:            models.EmailStatusPending,
			NotificationType:  msg.NotificationType,
			RelatedObjectID:   msg.RelatedID,
			RelatedObjectType: msg.RelatedType,
		}
		if err := s.logs.Create(ctx, &entry); err != nil {
			return cfg, nil, nil, err
		}
		logs = append(logs, entry)
	}
	return cfg, recipients, logs, nil
}

// Send queues msg for background delivery. It reports whether a send was
// started; false means no valid recipient, mail disabled, or the log could
// not be written.
func (s *EmailService) Send(ctx context.Context, msg Message) bool {
	cfg, recipients, logs, err := s.prepare(ctx, msg)
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "create email log failed", "error", err)
		return false
	}
	if logs == nil {
		return false
	}

	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				middleware.Logger.Error("panic while sending email",
					"panic", r, "stack", string(debug.Stack()))
				s.finish(bg, msg, logs, fmt.Errorf("panic: %v", r))
			}
		}()
		s.finish(bg, msg, logs, s.deliver(bg, cfg, recipients, msg))
	}()
	return true
}

// SendNow delivers msg synchronously and returns the resulting log rows.
func (s *EmailService) SendNow(ctx context.Context, msg Message) ([]models.EmailLog, error) {
	if len(validRecipients(msg.Recipients)) == 0 {
		return nil, models.NewFieldValidationError("recipient", "a valid email address is required")
	}
	cfg, recipients, logs, err := s.prepare(ctx, msg)
	if err != nil {
		return nil, err
	}
	if logs == nil {
		return nil, models.NewValidationError("Email is not configured")
	}
	s.finish(ctx, msg, logs, s.deliver(ctx, cfg, recipients, msg))

	out := make([]models.EmailLog, 0, len(logs))
	for _, l := range logs {
		fresh, err := s.logs.GetByID(ctx, l.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, *fresh)
	}
	return out, nil
}

func (s *EmailService) deliver(ctx context.Context, cfg MailConfig, recipients []string, msg Message) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	return s.sender.Send(ctx, cfg, OutgoingMail{
		From:    cfg.From,
		To:      recipients,
		Subject: msg.Subject,
		Text:    msg.Text,
		HTML:    msg.HTML,
	})
}

// finish records the outcome on every log row of the send.
func (s *EmailService) finish(ctx context.Context, msg Message, logs []models.EmailLog, sendErr error) {
	if sendErr == nil {
		at := s.now()
		for _, l := range logs {
			if err := s.logs.MarkSent(ctx, l.ID, at); err != nil {
				middleware.Logger.ErrorContext(ctx, "mark email sent failed", "log_id", l.ID, "error", err)
			}
		}
		observability.EmailsSent.WithLabelValues(msg.NotificationType, models.EmailStatusSuccess).Add(float64(len(logs)))
		middleware.Logger.InfoContext(ctx, "email sent", "type", msg.NotificationType, "recipients", len(logs))
		return
	}

	reason := content.Truncate(sendErr.Error(), models.EmailLogMessageLimit)
	for _, l := range logs {
		if err := s.logs.MarkFailed(ctx, l.ID, reason); err != nil {
			middleware.Logger.ErrorContext(ctx, "mark email failed failed", "log_id", l.ID, "error", err)
		}
	}
	observability.EmailsSent.WithLabelValues(msg.NotificationType, models.EmailStatusFailed).Add(float64(len(logs)))
	middleware.Logger.ErrorContext(ctx, "email send failed", "type", msg.NotificationType, "error", sendErr)
	publishEvent(ctx, s.events, notifications.EventEmailFailed, map[string]any{
		"type": msg.NotificationType, "subject": msg.Subject, "error": reason,
	})
}

// Wait blocks until every background send has finished or ctx ends.
func (s *EmailService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Join(errors.New("email sends still in flight"), ctx.Err())
	}
}

// Logs lists email log rows, newest first.
func (s *EmailService) Logs(ctx context.Context, status string, limit, offset int) ([]models.EmailLog, int64, error) {
	switch status {
	case "", models.EmailStatusPending, models.EmailStatusSuccess, models.EmailStatusFailed:
	default:
		return nil, 0, models.NewFieldValidationError("status", "status must be pending, success or failed")
	}
	return s.logs.List(ctx, status, limit, offset)
}

func (s *EmailService) Log(ctx context.Context, id uint) (*models.EmailLog, error) {
	return s.logs.GetByID(ctx, id)
}

// SendTest sends a configuration check message synchronously.
func (s *EmailService) SendTest(ctx context.Context, recipient, siteName string) ([]models.EmailLog, error) {
	if len(validRecipients([]string{recipient})) == 0 {
		return nil, models.NewFieldValidationError("recipient", "a valid email address is required")
	}
	id := uint(models.SiteSettingsID)
	return s.SendNow(ctx, Message{
		Subject:          fmt.Sprintf("[%s] Test email", siteName),
		Text:             fmt.Sprintf("This is a test message from %s. Email delivery is working.", siteName),
		Recipients:       []string{recipient},
		NotificationType: models.NotifyTest,
		RelatedType:      relatedTypeEmailTest,
		RelatedID:        &id,
	})
}
