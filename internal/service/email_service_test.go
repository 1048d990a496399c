package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/models"
	"inkwell/internal/notifications"
	"inkwell/internal/repository"
	"inkwell/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEmailService(t *testing.T, cfg *config.Config, sender Sender) (*EmailService, repository.SettingsRepository, *recordingEvents) {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	settings := repository.NewSettingsRepository(db)
	events := &recordingEvents{}
	return NewEmailService(settings, repository.NewEmailLogRepository(db), sender, cfg, events), settings, events
}

func smtpEnv() *config.Config {
	return &config.Config{EmailHost: "smtp.test", EmailPort: 587, EmailHostUser: "mailer@example.com", EmailRatePerSecond: 1000}
}

func TestEmailService_SendRecordsSuccess(t *testing.T) {
	sender := &recordingSender{}
	svc, _, _ := newTestEmailService(t, smtpEnv(), sender)
	ctx := context.Background()

	started := svc.Send(ctx, Message{
		Subject:          "Hello",
		Text:             strings.Repeat("a", 800),
		Recipients:       []string{"one@example.com", "not-an-address", " "},
		NotificationType: models.NotifyNewComment,
	})
	require.True(t, started)
	require.NoError(t, svc.Wait(ctx))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, []string{"one@example.com"}, sender.sent[0].To)
	assert.Equal(t, "mailer@example.com", sender.sent[0].From)

	logs, total, err := svc.Logs(ctx, models.EmailStatusSuccess, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, logs, 1)
	assert.NotNil(t, logs[0].SentAt)
	assert.Len(t, []rune(logs[0].Message), models.EmailLogMessageLimit)
}

func TestEmailService_SendRecordsFailure(t *testing.T) {
	sender := &recordingSender{err: errSMTPDown}
	svc, _, events := newTestEmailService(t, smtpEnv(), sender)
	ctx := context.Background()

	require.True(t, svc.Send(ctx, Message{Subject: "Hi", Recipients: []string{"a@example.com", "b@example.com"}, NotificationType: models.NotifyCommentReply}))
	require.NoError(t, svc.Wait(ctx))

	logs, total, err := svc.Logs(ctx, models.EmailStatusFailed, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	for _, l := range logs {
		assert.Contains(t, l.ErrorMessage, "connection refused")
		assert.Nil(t, l.SentAt)
	}
	assert.Contains(t, events.seen(), notifications.EventEmailFailed)
}

func TestEmailService_DisabledSkipsSend(t *testing.T) {
	sender := &recordingSender{}
	svc, _, _ := newTestEmailService(t, &config.Config{}, sender)
	ctx := context.Background()

	assert.False(t, svc.Send(ctx, Message{Subject: "x", Recipients: []string{"a@example.com"}}))
	assert.False(t, svc.Send(ctx, Message{Subject: "x"}))
	require.NoError(t, svc.Wait(ctx))
	assert.Empty(t, sender.sent)

	_, total, err := svc.Logs(ctx, "", 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)

	_, err = svc.SendTest(ctx, "admin@example.com", "Blog")
	assertAppError(t, err, models.CodeValidation)
}

func TestEmailService_SiteSettingsOverrideEnvironment(t *testing.T) {
	svc, settings, _ := newTestEmailService(t, smtpEnv(), &recordingSender{})
	ctx := context.Background()

	st, err := settings.Get(ctx)
	require.NoError(t, err)
	st.EnableEmailNotification = true
	st.EmailHost = "mail.blog.example.com"
	st.EmailPort = 465
	st.EmailUseTLS = false
	st.EmailUseSSL = true
	st.EmailFrom = "noreply@blog.example.com"
	require.NoError(t, settings.Save(ctx, st))

	cfg := svc.ResolveConfig(ctx)
	assert.Equal(t, "mail.blog.example.com", cfg.Host)
	assert.True(t, cfg.UseSSL)
	assert.Equal(t, "noreply@blog.example.com", cfg.From)
}

func TestEmailService_SendTest(t *testing.T) {
	sender := &recordingSender{}
	svc, _, _ := newTestEmailService(t, smtpEnv(), sender)
	ctx := context.Background()

	_, err := svc.SendTest(ctx, "nope", "Blog")
	assertFieldError(t, err, "recipient")

	logs, err := svc.SendTest(ctx, "admin@example.com", "Blog")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.EmailStatusSuccess, logs[0].Status)
	assert.Equal(t, models.NotifyTest, logs[0].NotificationType)
	assert.Equal(t, "[Blog] Test email", sender.sent[0].Subject)

	one, err := svc.Log(ctx, logs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", one.Recipient)

	_, _, err = svc.Logs(ctx, "bounced", 10, 0)
	assertFieldError(t, err, "status")
}

// blockingSender holds every send until release is closed.
type blockingSender struct{ release chan struct{} }

func (b blockingSender) Send(ctx context.Context, _ MailConfig, _ OutgoingMail) error {
	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestEmailService_WaitHonoursDeadline(t *testing.T) {
	sender := blockingSender{release: make(chan struct{})}
	svc, _, _ := newTestEmailService(t, smtpEnv(), sender)

	require.True(t, svc.Send(context.Background(), Message{Subject: "slow", Recipients: []string{"a@example.com"}}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, svc.Wait(ctx))

	close(sender.release)
	require.NoError(t, svc.Wait(context.Background()))
}
