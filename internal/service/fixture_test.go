package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"inkwell/internal/config"
	"inkwell/internal/featureflags"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// recordingSender captures outgoing mail instead of talking SMTP.
type recordingSender struct {
	mu   sync.Mutex
	sent []OutgoingMail
	err  error
}

func (r *recordingSender) Send(_ context.Context, _ MailConfig, msg OutgoingMail) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingSender) recipients() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, m := range r.sent {
		out = append(out, m.To...)
	}
	return out
}

// recordingEvents captures published events.
type recordingEvents struct {
	mu    sync.Mutex
	types []string
}

func (r *recordingEvents) PublishEvent(_ context.Context, eventType string, _ any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, eventType)
	return nil
}

func (r *recordingEvents) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.types...)
}

type fixture struct {
	db       *gorm.DB
	sender   *recordingSender
	events   *recordingEvents
	settings *SettingsService
	email    *EmailService
	posts    *PostService
	taxonomy *TaxonomyService
	comments *CommentService
	moments  *MomentService
	albums   *AlbumService
	users    *UserService
	feeds    *FeedService
}

// newFixture wires every service over one SQLite database. SMTP is enabled
// through the environment config and delivered to a recordingSender.
func newFixture(t *testing.T, flags string) *fixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)

	postRepo := repository.NewPostRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	tagRepo := repository.NewTagRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	momentRepo := repository.NewMomentRepository(db)
	albumRepo := repository.NewAlbumRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	f := &fixture{db: db, sender: &recordingSender{}, events: &recordingEvents{}}
	manager := featureflags.NewManager(flags)
	cfg := &config.Config{EmailHost: "smtp.test", EmailPort: 587, DefaultFromEmail: "blog@example.com", EmailRatePerSecond: 1000}

	f.settings = NewSettingsService(settingsRepo, repository.NewNavigationRepository(db), nil)
	f.email = NewEmailService(settingsRepo, repository.NewEmailLogRepository(db), f.sender, cfg, f.events)
	notifier := NewNotificationService(f.email, f.settings, "https://blog.example.com")
	f.posts = NewPostService(postRepo, categoryRepo, tagRepo, commentRepo, f.events, manager)
	f.taxonomy = NewTaxonomyService(categoryRepo, tagRepo)
	f.comments = NewCommentService(commentRepo, postRepo, momentRepo, albumRepo, notifier, f.events, manager)
	f.moments = NewMomentService(momentRepo, f.events)
	f.albums = NewAlbumService(albumRepo)
	f.users = NewUserService(repository.NewUserRepository(db))
	f.feeds = NewFeedService(postRepo, categoryRepo, commentRepo, momentRepo, albumRepo, f.settings, "https://blog.example.com")
	return f
}

// drainMail waits for background sends to finish.
func (f *fixture) drainMail(t *testing.T) {
	t.Helper()
	require.NoError(t, f.email.Wait(context.Background()))
}

func staffViewer(u *models.User) Viewer { return Viewer{UserID: u.ID, IsStaff: true} }

func userViewer(u *models.User) Viewer { return Viewer{UserID: u.ID} }

func ptr[T any](v T) *T { return &v }

func assertAppError(t *testing.T, err error, code string) *models.AppError {
	t.Helper()
	require.Error(t, err)
	appErr, ok := models.AsAppError(err)
	require.True(t, ok, "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
	return appErr
}

func assertFieldError(t *testing.T, err error, field string) {
	t.Helper()
	appErr := assertAppError(t, err, models.CodeValidation)
	assert.Contains(t, appErr.Fields, field)
}

var errSMTPDown = errors.New("dial tcp: connection refused")
