package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// StatisticsResponse aggregates assignment counts and sale totals for a time range
type StatisticsResponse struct {
	AssignedCount      int64             `json:"assignedCount"`
	ReceivedCount      int64             `json:"receivedCount"`
	SoldCount          int64             `json:"soldCount"`
	TotalSales         decimal.Decimal   `json:"totalSales"`
	TotalMinimum       decimal.Decimal   `json:"totalMinimum"`
	TotalProfit        decimal.Decimal   `json:"totalProfit"`
	TopResellers       []ResellerRanking `json:"topResellers,omitempty"`
	TimeRangeStartDate time.Time         `json:"timeRangeStartDate"`
	TimeRangeEndDate   time.Time         `json:"timeRangeEndDate"`
}

// ResellerRanking ranks resellers by profit generated in the range
type ResellerRanking struct {
	ResellerID  string          `json:"resellerId"`
	Username    string          `json:"username"`
	Company     string          `json:"company"`
	SoldCount   int64           `json:"soldCount"`
	TotalProfit decimal.Decimal `json:"totalProfit"`
}
