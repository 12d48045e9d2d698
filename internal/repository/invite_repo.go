package repository

import (
	"context"
	"strings"
	"time"

	"resellerportal/internal/model"
	"resellerportal/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InviteTarget identifies the account an invite provisions.
type InviteTarget struct {
	Email       string
	AccountKind string
	LegacyRole  string
	RoleID      *uuid.UUID
}

type InviteRepository interface {
	Create(ctx context.Context, invite *model.Invite) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Invite, error)
	FindByToken(ctx context.Context, token string) (*model.Invite, error)
	FindActive(ctx context.Context, target InviteTarget, now time.Time) (*model.Invite, error)
	ListPending(ctx context.Context, paging pagination.Params) ([]model.Invite, int64, error)
	Consume(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	AttachAccount(ctx context.Context, id uuid.UUID, accountID uuid.UUID) error
	Extend(ctx context.Context, id uuid.UUID, expiresAt time.Time) (bool, error)
	DeleteUnconsumed(ctx context.Context, id uuid.UUID) (bool, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type inviteRepository struct {
	db *gorm.DB
}

func NewInviteRepository(db *gorm.DB) InviteRepository {
	return &inviteRepository{db: db}
}

func (r *inviteRepository) Create(ctx context.Context, invite *model.Invite) error {
	return GetDB(ctx, r.db).Create(invite).Error
}

func (r *inviteRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Invite, error) {
	var invite model.Invite
	if err := GetDB(ctx, r.db).First(&invite, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &invite, nil
}

func (r *inviteRepository) FindByToken(ctx context.Context, token string) (*model.Invite, error) {
	var invite model.Invite
	if err := GetDB(ctx, r.db).First(&invite, "token = ?", token).Error; err != nil {
		return nil, err
	}
	return &invite, nil
}

// FindActive returns an unconsumed, unexpired invite for the same email and role target.
func (r *inviteRepository) FindActive(ctx context.Context, target InviteTarget, now time.Time) (*model.Invite, error) {
	query := GetDB(ctx, r.db).
		Where("email = ? AND account_kind = ? AND consumed = ? AND expires_at > ?",
			strings.ToLower(target.Email), target.AccountKind, false, now)
	if target.RoleID != nil {
		query = query.Where("role_id = ?", *target.RoleID)
	} else {
		query = query.Where("role_id IS NULL AND legacy_role = ?", target.LegacyRole)
	}

	var invite model.Invite
	if err := query.First(&invite).Error; err != nil {
		return nil, err
	}
	return &invite, nil
}

func (r *inviteRepository) ListPending(ctx context.Context, paging pagination.Params) ([]model.Invite, int64, error) {
	var invites []model.Invite
	var total int64

	query := GetDB(ctx, r.db).Model(&model.Invite{}).Where("consumed = ?", false)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Order("created_at desc").Scopes(paging.Paginate).Find(&invites).Error; err != nil {
		return nil, 0, err
	}
	return invites, total, nil
}

// Consume is the compare-and-swap on the consumed flag. Exactly one caller can
// observe true for a given invite.
func (r *inviteRepository) Consume(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	result := GetDB(ctx, r.db).Model(&model.Invite{}).
		Where("id = ? AND consumed = ? AND expires_at > ?", id, false, now).
		Updates(map[string]interface{}{
			"consumed":    true,
			"consumed_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *inviteRepository) AttachAccount(ctx context.Context, id uuid.UUID, accountID uuid.UUID) error {
	return GetDB(ctx, r.db).Model(&model.Invite{}).Where("id = ?", id).Update("account_id", accountID).Error
}

func (r *inviteRepository) Extend(ctx context.Context, id uuid.UUID, expiresAt time.Time) (bool, error) {
	result := GetDB(ctx, r.db).Model(&model.Invite{}).
		Where("id = ? AND consumed = ?", id, false).
		Update("expires_at", expiresAt)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *inviteRepository) DeleteUnconsumed(ctx context.Context, id uuid.UUID) (bool, error) {
	result := GetDB(ctx, r.db).Where("id = ? AND consumed = ?", id, false).Delete(&model.Invite{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *inviteRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result := GetDB(ctx, r.db).Where("consumed = ? AND expires_at <= ?", false, before).Delete(&model.Invite{})
	return result.RowsAffected, result.Error
}
