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

// AccountFilter narrows account listings
type AccountFilter struct {
	Kind   string
	Search string
	Paging pagination.Params
}

// AccountRepository defines data access for Admin and Reseller accounts
type AccountRepository interface {
	Create(ctx context.Context, account *model.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Account, error)
	GetByEmail(ctx context.Context, email string) (*model.Account, error)
	GetByLogin(ctx context.Context, identifier string) (*model.Account, error)
	Taken(ctx context.Context, username, email string) (usernameTaken bool, emailTaken bool, err error)
	List(ctx context.Context, filter AccountFilter) ([]model.Account, int64, error)
	Update(ctx context.Context, account *model.Account) error
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string, mustChange, firstLogin bool) error
	TouchLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	CountByKind(ctx context.Context, kind string) (int64, error)
}

type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository returns a new instance of AccountRepository
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(ctx context.Context, account *model.Account) error {
	return GetDB(ctx, r.db).Omit("Role").Create(account).Error
}

func (r *accountRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	var account model.Account
	if err := GetDB(ctx, r.db).First(&account, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	var account model.Account
	if err := GetDB(ctx, r.db).First(&account, "email = ?", strings.ToLower(email)).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// GetByLogin matches either the username or the email address.
func (r *accountRepository) GetByLogin(ctx context.Context, identifier string) (*model.Account, error) {
	var account model.Account
	if err := GetDB(ctx, r.db).
		Where("username = ? OR email = ?", identifier, strings.ToLower(identifier)).
		First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) Taken(ctx context.Context, username, email string) (bool, bool, error) {
	db := GetDB(ctx, r.db)
	var byUsername, byEmail int64
	if err := db.Model(&model.Account{}).Where("username = ?", username).Count(&byUsername).Error; err != nil {
		return false, false, err
	}
	if err := db.Model(&model.Account{}).Where("email = ?", strings.ToLower(email)).Count(&byEmail).Error; err != nil {
		return false, false, err
	}
	return byUsername > 0, byEmail > 0, nil
}

func (r *accountRepository) List(ctx context.Context, filter AccountFilter) ([]model.Account, int64, error) {
	var accounts []model.Account
	var total int64

	query := GetDB(ctx, r.db).Model(&model.Account{})
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if filter.Search != "" {
		like := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(username) LIKE ? OR LOWER(email) LIKE ? OR LOWER(company) LIKE ?", like, like, like)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Preload("Role").Order("created_at desc").Scopes(filter.Paging.Paginate).Find(&accounts).Error; err != nil {
		return nil, 0, err
	}

	return accounts, total, nil
}

func (r *accountRepository) Update(ctx context.Context, account *model.Account) error {
	return GetDB(ctx, r.db).Omit("Role").Save(account).Error
}

func (r *accountRepository) UpdatePassword(ctx context.Context, id uuid.UUID, hash string, mustChange, firstLogin bool) error {
	return GetDB(ctx, r.db).Model(&model.Account{}).Where("id = ?", id).Updates(map[string]interface{}{
		"password_hash":        hash,
		"must_change_password": mustChange,
		"first_login":          firstLogin,
	}).Error
}

func (r *accountRepository) TouchLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return GetDB(ctx, r.db).Model(&model.Account{}).Where("id = ?", id).Update("last_login_at", at).Error
}

func (r *accountRepository) CountByKind(ctx context.Context, kind string) (int64, error) {
	var total int64
	err := GetDB(ctx, r.db).Model(&model.Account{}).Where("kind = ?", kind).Count(&total).Error
	return total, err
}
