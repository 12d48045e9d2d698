package repository

import (
	"context"

	"resellerportal/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RoleRepository interface {
	Create(ctx context.Context, role *model.Role) error
	Update(ctx context.Context, role *model.Role) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Role, error)
	FindByName(ctx context.Context, name string) (*model.Role, error)
	ListAll(ctx context.Context) ([]model.Role, error)
	CountAccounts(ctx context.Context, id uuid.UUID) (int64, error)
	DeleteIfUnreferenced(ctx context.Context, id uuid.UUID) (bool, error)
}

type roleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &roleRepository{db: db}
}

func (r *roleRepository) Create(ctx context.Context, role *model.Role) error {
	return GetDB(ctx, r.db).Create(role).Error
}

// Update never touches the name column; role names are immutable.
func (r *roleRepository) Update(ctx context.Context, role *model.Role) error {
	return GetDB(ctx, r.db).Model(&model.Role{}).Where("id = ?", role.ID).Updates(map[string]interface{}{
		"display_name": role.DisplayName,
		"permissions":  role.Permissions,
		"is_active":    role.IsActive,
	}).Error
}

func (r *roleRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Role, error) {
	var role model.Role
	if err := GetDB(ctx, r.db).First(&role, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) FindByName(ctx context.Context, name string) (*model.Role, error) {
	var role model.Role
	if err := GetDB(ctx, r.db).Where("name = ?", name).First(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) ListAll(ctx context.Context) ([]model.Role, error) {
	var roles []model.Role
	if err := GetDB(ctx, r.db).Order("name asc").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *roleRepository) CountAccounts(ctx context.Context, id uuid.UUID) (int64, error) {
	var total int64
	err := GetDB(ctx, r.db).Model(&model.Account{}).Where("role_id = ?", id).Count(&total).Error
	return total, err
}

// DeleteIfUnreferenced deletes the role in a single statement guarded by a
// NOT EXISTS over accounts. It reports false when nothing was deleted, either
// because the role is referenced or because it does not exist.
func (r *roleRepository) DeleteIfUnreferenced(ctx context.Context, id uuid.UUID) (bool, error) {
	db := GetDB(ctx, r.db)
	referencing := db.Session(&gorm.Session{NewDB: true}).
		Model(&model.Account{}).Select("1").Where("role_id = ?", id)

	result := db.Where("id = ? AND NOT EXISTS (?)", id, referencing).Delete(&model.Role{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
