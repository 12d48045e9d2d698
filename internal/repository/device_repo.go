package repository

import (
	"context"
	"strings"

	"resellerportal/internal/model"
	"resellerportal/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DeviceRepository interface {
	Create(ctx context.Context, device *model.Device) error
	Update(ctx context.Context, device *model.Device) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Device, error)
	FindBySKU(ctx context.Context, sku string) (*model.Device, error)
	List(ctx context.Context, paging pagination.Params, search, status string) ([]model.Device, int64, error)
	SetStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error)
}

type deviceRepository struct {
	db *gorm.DB
}

func NewDeviceRepository(db *gorm.DB) DeviceRepository {
	return &deviceRepository{db: db}
}

func (r *deviceRepository) Create(ctx context.Context, device *model.Device) error {
	return GetDB(ctx, r.db).Create(device).Error
}

func (r *deviceRepository) Update(ctx context.Context, device *model.Device) error {
	return GetDB(ctx, r.db).Save(device).Error
}

func (r *deviceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Device{}).Error
}

func (r *deviceRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Device, error) {
	var device model.Device
	if err := GetDB(ctx, r.db).First(&device, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &device, nil
}

func (r *deviceRepository) FindBySKU(ctx context.Context, sku string) (*model.Device, error) {
	var device model.Device
	if err := GetDB(ctx, r.db).Where("sku = ?", sku).First(&device).Error; err != nil {
		return nil, err
	}
	return &device, nil
}

func (r *deviceRepository) List(ctx context.Context, paging pagination.Params, search, status string) ([]model.Device, int64, error) {
	var devices []model.Device
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Device{})
	if search != "" {
		like := "%" + strings.ToLower(search) + "%"
		db = db.Where("LOWER(name) LIKE ? OR LOWER(sku) LIKE ?", like, like)
	}
	if status != "" {
		db = db.Where("status = ?", status)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Order("created_at desc").Scopes(paging.Paginate).Find(&devices).Error; err != nil {
		return nil, 0, err
	}

	return devices, total, nil
}

// SetStatus moves a device between catalog states only from the expected one.
func (r *deviceRepository) SetStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	result := GetDB(ctx, r.db).Model(&model.Device{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
