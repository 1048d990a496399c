package repository

import (
	"context"
	"time"

	"inkwell/internal/models"

	"gorm.io/gorm"
)

// EmailLogRepository records outgoing mail and its delivery outcome.
type EmailLogRepository interface {
	Create(ctx context.Context, log *models.EmailLog) error
	MarkSent(ctx context.Context, id uint, at time.Time) error
	MarkFailed(ctx context.Context, id uint, reason string) error
	GetByID(ctx context.Context, id uint) (*models.EmailLog, error)
	List(ctx context.Context, status string, limit, offset int) ([]models.EmailLog, int64, error)
}

type emailLogRepository struct {
	db *gorm.DB
}

// NewEmailLogRepository returns a new EmailLogRepository implementation.
func NewEmailLogRepository(db *gorm.DB) EmailLogRepository {
	return &emailLogRepository{db: db}
}

func (r *emailLogRepository) Create(ctx context.Context, log *models.EmailLog) error {
	if log.Status == "" {
		log.Status = models.EmailStatusPending
	}
	if err := r.db.WithContext(ctx).Create(log).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *emailLogRepository) MarkSent(ctx context.Context, id uint, at time.Time) error {
	return r.mark(ctx, id, map[string]any{
		"status":  models.EmailStatusSuccess,
		"sent_at": at,
	})
}

func (r *emailLogRepository) MarkFailed(ctx context.Context, id uint, reason string) error {
	return r.mark(ctx, id, map[string]any{
		"status":        models.EmailStatusFailed,
		"error_message": reason,
	})
}

func (r *emailLogRepository) mark(ctx context.Context, id uint, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.EmailLog{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Email log", id)
	}
	return nil
}

func (r *emailLogRepository) GetByID(ctx context.Context, id uint) (*models.EmailLog, error) {
	var log models.EmailLog
	if err := r.db.WithContext(ctx).First(&log, id).Error; err != nil {
		return nil, lookupError(err, "Email log", id)
	}
	return &log, nil
}

func (r *emailLogRepository) List(ctx context.Context, status string, limit, offset int) ([]models.EmailLog, int64, error) {
	scope := func(q *gorm.DB) *gorm.DB {
		if status != "" {
			q = q.Where("status = ?", status)
		}
		return q
	}
	var total int64
	if err := scope(readDB(r.db).WithContext(ctx).Model(&models.EmailLog{})).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	var logs []models.EmailLog
	if err := scope(readDB(r.db).WithContext(ctx)).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&logs).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return logs, total, nil
}
