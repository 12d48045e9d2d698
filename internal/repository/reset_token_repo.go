package repository

import (
	"context"
	"time"

	"resellerportal/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ResetTokenRepository interface {
	Create(ctx context.Context, token *model.PasswordResetToken) error
	FindByToken(ctx context.Context, token string) (*model.PasswordResetToken, error)
	Consume(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	ConsumeOutstanding(ctx context.Context, accountID uuid.UUID, now time.Time) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type resetTokenRepository struct {
	db *gorm.DB
}

func NewResetTokenRepository(db *gorm.DB) ResetTokenRepository {
	return &resetTokenRepository{db: db}
}

func (r *resetTokenRepository) Create(ctx context.Context, token *model.PasswordResetToken) error {
	return GetDB(ctx, r.db).Create(token).Error
}

func (r *resetTokenRepository) FindByToken(ctx context.Context, token string) (*model.PasswordResetToken, error) {
	var t model.PasswordResetToken
	if err := GetDB(ctx, r.db).First(&t, "token = ?", token).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// Consume flips consumed on an unexpired token; false means another request won.
func (r *resetTokenRepository) Consume(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	result := GetDB(ctx, r.db).Model(&model.PasswordResetToken{}).
		Where("id = ? AND consumed = ? AND expires_at > ?", id, false, now).
		Updates(map[string]interface{}{"consumed": true, "consumed_at": now})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ConsumeOutstanding retires every live token of an account so only the newest link works.
func (r *resetTokenRepository) ConsumeOutstanding(ctx context.Context, accountID uuid.UUID, now time.Time) error {
	return GetDB(ctx, r.db).Model(&model.PasswordResetToken{}).
		Where("account_id = ? AND consumed = ?", accountID, false).
		Updates(map[string]interface{}{"consumed": true, "consumed_at": now}).Error
}

func (r *resetTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result := GetDB(ctx, r.db).Where("expires_at <= ?", before).Delete(&model.PasswordResetToken{})
	return result.RowsAffected, result.Error
}
