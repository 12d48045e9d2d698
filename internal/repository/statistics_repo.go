package repository

import (
	"context"
	"fmt"
	"time"

	"resellerportal/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AssignmentTotals is the aggregate of assignments created within a range
type AssignmentTotals struct {
	AssignedCount int64
	ReceivedCount int64
	SoldCount     int64
	TotalSales    decimal.Decimal
	TotalMinimum  decimal.Decimal
	TotalProfit   decimal.Decimal
}

type StatisticsRepository interface {
	GetAssignmentTotals(ctx context.Context, resellerID *uuid.UUID, start, end time.Time) (*AssignmentTotals, error)
	GetTopResellers(ctx context.Context, start, end time.Time, limit int) ([]model.ResellerRanking, error)
}

type statisticsRepository struct {
	db *gorm.DB
}

func NewStatisticsRepository(db *gorm.DB) StatisticsRepository {
	return &statisticsRepository{db: db}
}

func (r *statisticsRepository) GetAssignmentTotals(ctx context.Context, resellerID *uuid.UUID, start, end time.Time) (*AssignmentTotals, error) {
	var counts []struct {
		Status string
		Total  int64
	}
	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("created_at >= ? AND created_at <= ?", start, end)
		if resellerID != nil {
			db = db.Where("reseller_id = ?", *resellerID)
		}
		return db
	}

	if err := GetDB(ctx, r.db).Model(&model.DeviceAssignment{}).Scopes(scope).
		Select("status, COUNT(*) as total").
		Group("status").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("failed to count assignments: %w", err)
	}

	totals := &AssignmentTotals{}
	for _, c := range counts {
		switch c.Status {
		case model.AssignmentStatusAssigned:
			totals.AssignedCount = c.Total
		case model.AssignmentStatusReceived:
			totals.ReceivedCount = c.Total
		case model.AssignmentStatusSold:
			totals.SoldCount = c.Total
		}
	}

	var sums struct {
		Sales   string
		Minimum string
		Profit  string
	}
	if err := GetDB(ctx, r.db).Model(&model.DeviceAssignment{}).Scopes(scope).
		Where("status = ?", model.AssignmentStatusSold).
		Select("CAST(COALESCE(SUM(actual_sale_price), 0) AS TEXT) as sales, " +
			"CAST(COALESCE(SUM(minimum_price), 0) AS TEXT) as minimum, " +
			"CAST(COALESCE(SUM(profit), 0) AS TEXT) as profit").
		Scan(&sums).Error; err != nil {
		return nil, fmt.Errorf("failed to sum sales: %w", err)
	}

	totals.TotalSales = parseDecimal(sums.Sales)
	totals.TotalMinimum = parseDecimal(sums.Minimum)
	totals.TotalProfit = parseDecimal(sums.Profit)
	return totals, nil
}

func (r *statisticsRepository) GetTopResellers(ctx context.Context, start, end time.Time, limit int) ([]model.ResellerRanking, error) {
	var rows []struct {
		ResellerID  string
		Username    string
		Company     string
		SoldCount   int64
		TotalProfit string
	}
	if err := GetDB(ctx, r.db).Table("device_assignments").
		Select("accounts.id as reseller_id, accounts.username as username, accounts.company as company, " +
			"COUNT(device_assignments.id) as sold_count, CAST(COALESCE(SUM(device_assignments.profit), 0) AS TEXT) as total_profit").
		Joins("JOIN accounts ON accounts.id = device_assignments.reseller_id").
		Where("device_assignments.status = ? AND device_assignments.created_at >= ? AND device_assignments.created_at <= ?",
			model.AssignmentStatusSold, start, end).
		Group("accounts.id, accounts.username, accounts.company").
		Order("sold_count DESC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query top resellers: %w", err)
	}

	rankings := make([]model.ResellerRanking, 0, len(rows))
	for _, row := range rows {
		rankings = append(rankings, model.ResellerRanking{
			ResellerID:  row.ResellerID,
			Username:    row.Username,
			Company:     row.Company,
			SoldCount:   row.SoldCount,
			TotalProfit: parseDecimal(row.TotalProfit),
		})
	}
	return rankings, nil
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
