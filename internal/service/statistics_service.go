package service

import (
	"context"
	"fmt"
	"time"

	"resellerportal/internal/apperr"
	"resellerportal/internal/authz"
	"resellerportal/internal/model"
	"resellerportal/internal/repository"

	"github.com/google/uuid"
)

const topResellerLimit = 5

type StatisticsService interface {
	GetStatistics(ctx context.Context, p *authz.Principal, startDate, endDate time.Time) (model.StatisticsResponse, error)
	GetMyStatistics(ctx context.Context, p *authz.Principal, startDate, endDate time.Time) (model.StatisticsResponse, error)
}

type statisticsService struct {
	repo repository.StatisticsRepository
}

func NewStatisticsService(repo repository.StatisticsRepository) StatisticsService {
	return &statisticsService{repo: repo}
}

// GetStatistics aggregates portal-wide assignment counts and sale totals for a time range
func (s *statisticsService) GetStatistics(ctx context.Context, p *authz.Principal, startDate, endDate time.Time) (model.StatisticsResponse, error) {
	if err := authz.Require(p, authz.SystemStatistics); err != nil {
		return model.StatisticsResponse{}, err
	}
	response, err := s.totals(ctx, nil, startDate, endDate)
	if err != nil {
		return response, err
	}

	top, err := s.repo.GetTopResellers(ctx, startDate, endDate, topResellerLimit)
	if err != nil {
		return response, err
	}
	response.TopResellers = top
	return response, nil
}

// GetMyStatistics is the reseller dashboard: the same totals limited to the caller
func (s *statisticsService) GetMyStatistics(ctx context.Context, p *authz.Principal, startDate, endDate time.Time) (model.StatisticsResponse, error) {
	if p == nil {
		return model.StatisticsResponse{}, apperr.Unauthenticated("authentication required")
	}
	if !p.IsReseller() || !p.IsActive {
		return model.StatisticsResponse{}, apperr.Forbidden("only resellers have personal statistics")
	}
	return s.totals(ctx, &p.AccountID, startDate, endDate)
}

func (s *statisticsService) totals(ctx context.Context, resellerID *uuid.UUID, startDate, endDate time.Time) (model.StatisticsResponse, error) {
	response := model.StatisticsResponse{TimeRangeStartDate: startDate, TimeRangeEndDate: endDate}
	if endDate.Before(startDate) {
		return response, apperr.Validation("end date must not be before start date")
	}

	totals, err := s.repo.GetAssignmentTotals(ctx, resellerID, startDate, endDate)
	if err != nil {
		return response, fmt.Errorf("failed to compute statistics: %w", err)
	}
	response.AssignedCount = totals.AssignedCount
	response.ReceivedCount = totals.ReceivedCount
	response.SoldCount = totals.SoldCount
	response.TotalSales = totals.TotalSales
	response.TotalMinimum = totals.TotalMinimum
	response.TotalProfit = totals.TotalProfit
	return response, nil
}
