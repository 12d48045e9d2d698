package repository

import (
	"context"

	"resellerportal/internal/model"
	"resellerportal/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AssignmentFilter narrows assignment listings
type AssignmentFilter struct {
	Status     string
	ResellerID *uuid.UUID
	Paging     pagination.Params
}

type AssignmentRepository interface {
	Create(ctx context.Context, assignment *model.DeviceAssignment) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.DeviceAssignment, error)
	List(ctx context.Context, filter AssignmentFilter) ([]model.DeviceAssignment, int64, error)
	Transition(ctx context.Context, id uuid.UUID, fromStatus string, fromVersion int, updates map[string]interface{}) (bool, error)
}

type assignmentRepository struct {
	db *gorm.DB
}

func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) Create(ctx context.Context, assignment *model.DeviceAssignment) error {
	return GetDB(ctx, r.db).Omit("Device", "Reseller").Create(assignment).Error
}

func (r *assignmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.DeviceAssignment, error) {
	var assignment model.DeviceAssignment
	if err := GetDB(ctx, r.db).
		Preload("Device").
		Preload("Reseller").
		First(&assignment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *assignmentRepository) List(ctx context.Context, filter AssignmentFilter) ([]model.DeviceAssignment, int64, error) {
	var assignments []model.DeviceAssignment
	var total int64

	query := GetDB(ctx, r.db).Model(&model.DeviceAssignment{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.ResellerID != nil {
		query = query.Where("reseller_id = ?", *filter.ResellerID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Preload("Device").Preload("Reseller").
		Order("created_at desc").Scopes(filter.Paging.Paginate).
		Find(&assignments).Error; err != nil {
		return nil, 0, err
	}
	return assignments, total, nil
}

// Transition applies updates only if the row is still at fromStatus and
// fromVersion, and bumps the version. A false result means a concurrent
// request already moved the assignment. Callers stamp updated_at.
func (r *assignmentRepository) Transition(ctx context.Context, id uuid.UUID, fromStatus string, fromVersion int, updates map[string]interface{}) (bool, error) {
	updates["version"] = gorm.Expr("version + 1")

	result := GetDB(ctx, r.db).Model(&model.DeviceAssignment{}).
		Where("id = ? AND status = ? AND version = ?", id, fromStatus, fromVersion).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
