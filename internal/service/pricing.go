package service

import (
	"context"

	"resellerportal/internal/apperr"
	"resellerportal/internal/authz"

	"github.com/shopspring/decimal"
)

// maxMoney is the first value a decimal(12,2) column cannot hold.
var maxMoney = decimal.New(1, 10)

// checkMoney rejects amounts that a decimal(12,2) column would round or overflow.
func checkMoney(v decimal.Decimal, what string) error {
	if !v.Equal(v.Truncate(2)) {
		return apperr.Validation("%s must have at most 2 decimal places", what)
	}
	if v.Abs().GreaterThanOrEqual(maxMoney) {
		return apperr.Validation("%s is too large", what)
	}
	return nil
}

// ComputeProfit returns salePrice - minimumPrice. A sale below the minimum is
// rejected, never clamped.
func ComputeProfit(minimumPrice, salePrice decimal.Decimal) (decimal.Decimal, error) {
	if salePrice.IsNegative() || salePrice.IsZero() {
		return decimal.Zero, apperr.Validation("sale price must be greater than zero")
	}
	if salePrice.LessThan(minimumPrice) {
		return decimal.Zero, apperr.Validation("sale price %s is below the minimum price %s", salePrice.StringFixed(2), minimumPrice.StringFixed(2))
	}
	return salePrice.Sub(minimumPrice), nil
}

type PriceCalculationRequest struct {
	MinimumPrice decimal.Decimal `json:"minimumPrice"`
	SalePrice    decimal.Decimal `json:"salePrice"`
}

type PriceCalculationResponse struct {
	MinimumPrice  decimal.Decimal `json:"minimumPrice"`
	SalePrice     decimal.Decimal `json:"salePrice"`
	Profit        decimal.Decimal `json:"profit"`
	MarginPercent decimal.Decimal `json:"marginPercent"`
}

type ToolService interface {
	CalculatePrice(ctx context.Context, p *authz.Principal, req PriceCalculationRequest) (*PriceCalculationResponse, error)
}

type toolService struct{}

func NewToolService() ToolService {
	return &toolService{}
}

// CalculatePrice previews what report-sale would record for a given price.
func (s *toolService) CalculatePrice(_ context.Context, p *authz.Principal, req PriceCalculationRequest) (*PriceCalculationResponse, error) {
	if err := authz.Require(p, authz.ToolsPriceCalculator); err != nil {
		return nil, err
	}
	if req.MinimumPrice.IsNegative() {
		return nil, apperr.Validation("minimum price cannot be negative")
	}

	profit, err := ComputeProfit(req.MinimumPrice, req.SalePrice)
	if err != nil {
		return nil, err
	}

	return &PriceCalculationResponse{
		MinimumPrice:  req.MinimumPrice,
		SalePrice:     req.SalePrice,
		Profit:        profit,
		MarginPercent: profit.Div(req.SalePrice).Mul(decimal.NewFromInt(100)).Round(2),
	}, nil
}
