package repository

import (
	"context"
	"time"

	"resellerportal/internal/model"
	"resellerportal/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationRepository is the outbox store
type NotificationRepository interface {
	Enqueue(ctx context.Context, n *model.Notification) error
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]model.Notification, error)
	MarkSent(ctx context.Context, id uuid.UUID, now time.Time) error
	MarkRetry(ctx context.Context, id uuid.UUID, attempts int, next time.Time, lastErr string) error
	MarkDead(ctx context.Context, id uuid.UUID, attempts int, lastErr string) error
	RecoverStale(ctx context.Context, lockedBefore time.Time) (int64, error)
	List(ctx context.Context, status string, paging pagination.Params) ([]model.Notification, int64, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Enqueue(ctx context.Context, n *model.Notification) error {
	return GetDB(ctx, r.db).Create(n).Error
}

// ClaimDue moves due pending rows to sending. Each row is claimed with its own
// conditional update, so two dispatchers never claim the same row.
func (r *notificationRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]model.Notification, error) {
	db := GetDB(ctx, r.db)

	var candidates []uuid.UUID
	if err := db.Model(&model.Notification{}).
		Where("status = ? AND next_attempt_at <= ?", model.NotificationPending, now).
		Order("next_attempt_at asc").
		Limit(limit).
		Pluck("id", &candidates).Error; err != nil {
		return nil, err
	}

	claimed := make([]uuid.UUID, 0, len(candidates))
	for _, id := range candidates {
		result := db.Model(&model.Notification{}).
			Where("id = ? AND status = ?", id, model.NotificationPending).
			Updates(map[string]interface{}{
				"status":     model.NotificationSending,
				"locked_at":  now,
				"updated_at": now,
			})
		if result.Error != nil {
			return nil, result.Error
		}
		if result.RowsAffected == 1 {
			claimed = append(claimed, id)
		}
	}
	if len(claimed) == 0 {
		return nil, nil
	}

	var rows []model.Notification
	if err := db.Where("id IN ?", claimed).Order("next_attempt_at asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *notificationRepository) MarkSent(ctx context.Context, id uuid.UUID, now time.Time) error {
	return GetDB(ctx, r.db).Model(&model.Notification{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":        model.NotificationSent,
		"attempt_count": gorm.Expr("attempt_count + 1"),
		"sent_at":       now,
		"locked_at":     nil,
		"last_error":    "",
	}).Error
}

func (r *notificationRepository) MarkRetry(ctx context.Context, id uuid.UUID, attempts int, next time.Time, lastErr string) error {
	return GetDB(ctx, r.db).Model(&model.Notification{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":          model.NotificationPending,
		"attempt_count":   attempts,
		"next_attempt_at": next,
		"locked_at":       nil,
		"last_error":      lastErr,
	}).Error
}

func (r *notificationRepository) MarkDead(ctx context.Context, id uuid.UUID, attempts int, lastErr string) error {
	return GetDB(ctx, r.db).Model(&model.Notification{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":        model.NotificationDead,
		"attempt_count": attempts,
		"locked_at":     nil,
		"last_error":    lastErr,
	}).Error
}

// RecoverStale returns rows left in sending by a crashed dispatcher to pending.
func (r *notificationRepository) RecoverStale(ctx context.Context, lockedBefore time.Time) (int64, error) {
	result := GetDB(ctx, r.db).Model(&model.Notification{}).
		Where("status = ? AND locked_at < ?", model.NotificationSending, lockedBefore).
		Updates(map[string]interface{}{
			"status":    model.NotificationPending,
			"locked_at": nil,
		})
	return result.RowsAffected, result.Error
}

func (r *notificationRepository) List(ctx context.Context, status string, paging pagination.Params) ([]model.Notification, int64, error) {
	var rows []model.Notification
	var total int64

	query := GetDB(ctx, r.db).Model(&model.Notification{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Order("created_at desc").Scopes(paging.Paginate).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *notificationRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Total  int64
	}
	if err := GetDB(ctx, r.db).Model(&model.Notification{}).
		Select("status, COUNT(*) as total").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}
