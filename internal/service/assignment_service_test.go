package service

import (
	"context"
	"testing"
	"time"

	"resellerportal/internal/apperr"
	"resellerportal/internal/authz"
	"resellerportal/internal/model"
	"resellerportal/pkg/pagination"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type assignmentFixture struct {
	env      *testEnv
	svc      *assignmentService
	admin    *authz.Principal
	adminAcc *model.Account
	reseller *authz.Principal
	device   *model.Device
}

func newAssignmentFixture(t *testing.T) *assignmentFixture {
	t.Helper()
	env := newTestEnv(t)
	adminAcc := env.superAdmin(t)
	svc := NewAssignmentService(env.assignments, env.devices, env.accounts, env.audits, env.tx, env.outbox,
		env.metrics, "https://www.dhl.com/track?id=%s").(*assignmentService)
	svc.now = fixedClock(testNow)

	return &assignmentFixture{
		env:      env,
		svc:      svc,
		admin:    env.principal(t, adminAcc),
		adminAcc: adminAcc,
		reseller: env.principal(t, env.reseller(t, "shop1")),
		device:   env.createDevice(t, "SKU-1"),
	}
}

// received creates an assignment at minimumPrice and walks it to received.
func (f *assignmentFixture) received(t *testing.T, minimumPrice int64) *AssignmentResponse {
	t.Helper()
	ctx := context.Background()

	created, err := f.svc.Create(ctx, f.admin, CreateAssignmentRequest{
		DeviceID:     f.device.ID,
		ResellerID:   f.reseller.AccountID,
		MinimumPrice: decimal.NewFromInt(minimumPrice),
	})
	require.NoError(t, err)
	_, err = f.svc.ApproveShipping(ctx, f.admin, created.ID, ApproveShippingRequest{Notes: "ok"})
	require.NoError(t, err)
	got, err := f.svc.ConfirmReceipt(ctx, f.reseller, created.ID, ConfirmReceiptRequest{Condition: "Good"})
	require.NoError(t, err)
	return got
}

func (f *assignmentFixture) deviceStatus(t *testing.T) string {
	t.Helper()
	device, err := f.env.devices.FindByID(context.Background(), f.device.ID)
	require.NoError(t, err)
	return device.Status
}

func TestAssignmentService_FullLifecycle(t *testing.T) {
	f := newAssignmentFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, f.admin, CreateAssignmentRequest{
		DeviceID:     f.device.ID,
		ResellerID:   f.reseller.AccountID,
		MinimumPrice: decimal.NewFromInt(300),
		Notes:        "handle with care",
	})
	require.NoError(t, err)
	assert.Equal(t, model.AssignmentStatusAssigned, created.Status)
	assert.Equal(t, model.ShippingPendingApproval, created.ShippingStatus)
	assert.Equal(t, 1, created.Version)
	assert.Equal(t, model.DeviceStatusAssigned, f.deviceStatus(t))
	require.NotNil(t, created.Device)
	assert.Equal(t, "SKU-1", created.Device.SKU)

	_, err = f.svc.ConfirmReceipt(ctx, f.reseller, created.ID, ConfirmReceiptRequest{})
	assert.True(t, apperr.Is(err, apperr.KindState), "receipt before approval: %v", err)

	approved, err := f.svc.ApproveShipping(ctx, f.admin, created.ID, ApproveShippingRequest{})
	require.NoError(t, err)
	assert.Equal(t, model.ShippingApproved, approved.ShippingStatus)
	assert.Equal(t, 2, approved.Version)

	shipped, err := f.svc.Ship(ctx, f.admin, created.ID, ShipAssignmentRequest{
		Method:           "DHL",
		TrackingNumber:   "JD 0146",
		RecipientAddress: "Main St 1",
		EstimatedDays:    3,
	})
	require.NoError(t, err)
	require.NotNil(t, shipped.Shipping)
	assert.Equal(t, "https://www.dhl.com/track?id=JD+0146", shipped.Shipping.TrackingURL)
	require.NotNil(t, shipped.Shipping.EstimatedDelivery)
	assert.True(t, shipped.Shipping.EstimatedDelivery.Equal(testNow.AddDate(0, 0, 3)))

	received, err := f.svc.ConfirmReceipt(ctx, f.reseller, created.ID, ConfirmReceiptRequest{Condition: "excellent"})
	require.NoError(t, err)
	assert.Equal(t, model.AssignmentStatusReceived, received.Status)
	assert.Equal(t, model.ShippingDelivered, received.ShippingStatus)

	sold, err := f.svc.ReportSale(ctx, f.reseller, created.ID, ReportSaleRequest{SalePrice: decimal.NewFromInt(320)})
	require.NoError(t, err)
	assert.Equal(t, model.AssignmentStatusSold, sold.Status)
	assert.Equal(t, model.DeviceStatusSold, f.deviceStatus(t))

	reversed, err := f.svc.ReverseSale(ctx, f.reseller, created.ID, ReverseSaleRequest{Reason: "buyer returned it"})
	require.NoError(t, err)
	assert.Equal(t, model.AssignmentStatusReceived, reversed.Status)
	assert.Nil(t, reversed.ActualSalePrice)
	assert.Nil(t, reversed.Profit)
	assert.Nil(t, reversed.SoldAt)
	assert.Equal(t, "buyer returned it", reversed.ReversalReason)
	assert.Equal(t, model.DeviceStatusAssigned, f.deviceStatus(t))

	resold, err := f.svc.ReportSale(ctx, f.reseller, created.ID, ReportSaleRequest{SalePrice: decimal.NewFromInt(310)})
	require.NoError(t, err)
	assert.Equal(t, model.AssignmentStatusSold, resold.Status)
	require.NotNil(t, resold.Profit)
	assert.True(t, resold.Profit.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, 7, resold.Version)

	var audits int64
	require.NoError(t, f.env.db.Model(&model.AuditLog{}).Where("entity_id = ?", created.ID).Count(&audits).Error)
	assert.Equal(t, int64(7), audits)

	var queued int64
	require.NoError(t, f.env.db.Model(&model.Notification{}).Where("event LIKE ?", "assignment.%").Count(&queued).Error)
	assert.Equal(t, int64(7), queued)
}

func TestAssignmentService_ReportSaleProfitAndPayload(t *testing.T) {
	f := newAssignmentFixture(t)
	received := f.received(t, 300)

	sold, err := f.svc.ReportSale(context.Background(), f.reseller, received.ID, ReportSaleRequest{SalePrice: decimal.NewFromInt(350)})
	require.NoError(t, err)
	require.NotNil(t, sold.Profit)
	assert.True(t, sold.Profit.Equal(decimal.NewFromInt(50)), sold.Profit.String())

	rows := f.env.outboxRows(t, model.EventAssignmentSold)
	require.Len(t, rows, 1)
	assert.Equal(t, f.adminAcc.Email, rows[0].RecipientEmail)
	payload := decodePayload(t, rows[0])
	assert.Equal(t, "300", payload["minimumPrice"])
	assert.Equal(t, "350", payload["salePrice"])
	assert.Equal(t, "50", payload["profit"])
}

func TestAssignmentService_SaleAtMinimumHasZeroProfit(t *testing.T) {
	f := newAssignmentFixture(t)
	received := f.received(t, 300)

	sold, err := f.svc.ReportSale(context.Background(), f.reseller, received.ID, ReportSaleRequest{SalePrice: decimal.NewFromInt(300)})
	require.NoError(t, err)
	require.NotNil(t, sold.Profit)
	assert.True(t, sold.Profit.IsZero())
}

func TestAssignmentService_SaleBelowMinimumIsRejected(t *testing.T) {
	f := newAssignmentFixture(t)
	received := f.received(t, 300)

	_, err := f.svc.ReportSale(context.Background(), f.reseller, received.ID, ReportSaleRequest{SalePrice: decimal.NewFromInt(299)})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, model.DeviceStatusAssigned, f.deviceStatus(t))
}

func TestAssignmentService_RejectsPricesBeyondColumnScale(t *testing.T) {
	f := newAssignmentFixture(t)
	ctx := context.Background()

	for _, price := range []string{"300.005", "10000000000"} {
		_, err := f.svc.Create(ctx, f.admin, CreateAssignmentRequest{
			DeviceID:     f.device.ID,
			ResellerID:   f.reseller.AccountID,
			MinimumPrice: decimal.RequireFromString(price),
		})
		assert.True(t, apperr.Is(err, apperr.KindValidation), price)
	}
	assert.Equal(t, model.DeviceStatusAvailable, f.deviceStatus(t))

	received := f.received(t, 300)
	_, err := f.svc.ReportSale(ctx, f.reseller, received.ID, ReportSaleRequest{SalePrice: decimal.RequireFromString("350.001")})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, model.DeviceStatusAssigned, f.deviceStatus(t))

	sold, err := f.svc.ReportSale(ctx, f.reseller, received.ID, ReportSaleRequest{SalePrice: decimal.RequireFromString("350.10")})
	require.NoError(t, err)
	assert.True(t, sold.Profit.Equal(decimal.RequireFromString("50.1")), sold.Profit.String())
}

func TestAssignmentService_TransitionsUseServiceClock(t *testing.T) {
	f := newAssignmentFixture(t)
	ctx := context.Background()
	received := f.received(t, 300)

	row, err := f.env.assignments.FindByID(ctx, uuid.MustParse(received.ID))
	require.NoError(t, err)
	assert.True(t, row.UpdatedAt.Equal(testNow), row.UpdatedAt.String())

	later := testNow.Add(90 * time.Minute)
	f.svc.now = fixedClock(later)
	_, err = f.svc.ReportSale(ctx, f.reseller, received.ID, ReportSaleRequest{SalePrice: decimal.NewFromInt(320)})
	require.NoError(t, err)

	row, err = f.env.assignments.FindByID(ctx, uuid.MustParse(received.ID))
	require.NoError(t, err)
	assert.True(t, row.UpdatedAt.Equal(later), row.UpdatedAt.String())
	require.NotNil(t, row.SoldAt)
	assert.True(t, row.SoldAt.Equal(later))
}

func TestAssignmentService_IllegalTransitions(t *testing.T) {
	f := newAssignmentFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, f.admin, CreateAssignmentRequest{
		DeviceID:     f.device.ID,
		ResellerID:   f.reseller.AccountID,
		MinimumPrice: decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	_, err = f.svc.ReportSale(ctx, f.reseller, created.ID, ReportSaleRequest{SalePrice: decimal.NewFromInt(150)})
	assert.True(t, apperr.Is(err, apperr.KindState), "assigned to sold: %v", err)

	_, err = f.svc.ReverseSale(ctx, f.reseller, created.ID, ReverseSaleRequest{Reason: "no sale happened"})
	assert.True(t, apperr.Is(err, apperr.KindState))

	_, err = f.svc.Ship(ctx, f.admin, created.ID, ShipAssignmentRequest{Method: "courier", RecipientAddress: "x"})
	assert.True(t, apperr.Is(err, apperr.KindState), "ship before approval: %v", err)

	_, err = f.svc.ApproveShipping(ctx, f.admin, created.ID, ApproveShippingRequest{})
	require.NoError(t, err)
	_, err = f.svc.ApproveShipping(ctx, f.admin, created.ID, ApproveShippingRequest{})
	assert.True(t, apperr.Is(err, apperr.KindState))

	_, err = f.svc.ConfirmReceipt(ctx, f.reseller, created.ID, ConfirmReceiptRequest{})
	require.NoError(t, err)
	_, err = f.svc.ConfirmReceipt(ctx, f.reseller, created.ID, ConfirmReceiptRequest{})
	assert.True(t, apperr.Is(err, apperr.KindState), "double confirm: %v", err)
}

func TestAssignmentService_ReversalReasonLength(t *testing.T) {
	f := newAssignmentFixture(t)
	ctx := context.Background()
	received := f.received(t, 100)

	_, err := f.svc.ReportSale(ctx, f.reseller, received.ID, ReportSaleRequest{SalePrice: decimal.NewFromInt(120)})
	require.NoError(t, err)

	_, err = f.svc.ReverseSale(ctx, f.reseller, received.ID, ReverseSaleRequest{Reason: "123456789"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.svc.ReverseSale(ctx, f.reseller, received.ID, ReverseSaleRequest{Reason: "   short   "})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	reversed, err := f.svc.ReverseSale(ctx, f.reseller, received.ID, ReverseSaleRequest{Reason: "1234567890"})
	require.NoError(t, err)
	assert.Equal(t, model.AssignmentStatusReceived, reversed.Status)
}

func TestAssignmentService_OwnershipAndPermissions(t *testing.T) {
	f := newAssignmentFixture(t)
	ctx := context.Background()
	other := f.env.principal(t, f.env.reseller(t, "shop2"))
	viewer := f.env.principal(t, f.env.createAccount(t, model.AccountKindAdmin, "viewer", model.LegacyRoleViewer, nil))

	_, err := f.svc.Create(ctx, viewer, CreateAssignmentRequest{
		DeviceID:     f.device.ID,
		ResellerID:   f.reseller.AccountID,
		MinimumPrice: decimal.NewFromInt(100),
	})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	received := f.received(t, 100)

	_, err = f.svc.ReportSale(ctx, other, received.ID, ReportSaleRequest{SalePrice: decimal.NewFromInt(150)})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	_, err = f.svc.Get(ctx, other, received.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	_, err = f.svc.ReportSale(ctx, f.admin, received.ID, ReportSaleRequest{SalePrice: decimal.NewFromInt(150)})
	assert.True(t, apperr.Is(err, apperr.KindForbidden), "admins cannot act as the reseller")

	got, err := f.svc.Get(ctx, viewer, received.ID)
	require.NoError(t, err)
	assert.Equal(t, received.ID, got.ID)

	mine, total, err := f.svc.ListMine(ctx, f.reseller, "", pagination.New(1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, mine, 1)

	_, total, err = f.svc.ListMine(ctx, other, "", pagination.New(1, 10))
	require.NoError(t, err)
	assert.Zero(t, total)

	_, _, err = f.svc.List(ctx, other, AssignmentFilter{})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestAssignmentService_CreateGuards(t *testing.T) {
	f := newAssignmentFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.admin, CreateAssignmentRequest{DeviceID: f.device.ID, ResellerID: f.reseller.AccountID})
	assert.True(t, apperr.Is(err, apperr.KindValidation), "zero minimum price")

	_, err = f.svc.Create(ctx, f.admin, CreateAssignmentRequest{
		DeviceID:     f.device.ID,
		ResellerID:   f.admin.AccountID,
		MinimumPrice: decimal.NewFromInt(100),
	})
	assert.True(t, apperr.Is(err, apperr.KindValidation), "admin target")

	_, err = f.svc.Create(ctx, f.admin, CreateAssignmentRequest{
		DeviceID:     f.device.ID,
		ResellerID:   f.reseller.AccountID,
		MinimumPrice: decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, f.admin, CreateAssignmentRequest{
		DeviceID:     f.device.ID,
		ResellerID:   f.reseller.AccountID,
		MinimumPrice: decimal.NewFromInt(100),
	})
	assert.True(t, apperr.Is(err, apperr.KindState), "device already assigned")
}

func TestAssignmentService_ShippingValidation(t *testing.T) {
	f := newAssignmentFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, f.admin, CreateAssignmentRequest{
		DeviceID:     f.device.ID,
		ResellerID:   f.reseller.AccountID,
		MinimumPrice: decimal.NewFromInt(100),
	})
	require.NoError(t, err)
	_, err = f.svc.ApproveShipping(ctx, f.admin, created.ID, ApproveShippingRequest{})
	require.NoError(t, err)

	cases := map[string]ShipAssignmentRequest{
		"unknown method":       {Method: "drone", RecipientAddress: "x"},
		"dhl without tracking": {Method: "dhl", RecipientAddress: "x"},
		"missing address":      {Method: "courier"},
		"negative days":        {Method: "courier", RecipientAddress: "x", EstimatedDays: -1},
	}
	for name, req := range cases {
		_, err := f.svc.Ship(ctx, f.admin, created.ID, req)
		assert.True(t, apperr.Is(err, apperr.KindValidation), name)
	}

	shipped, err := f.svc.Ship(ctx, f.admin, created.ID, ShipAssignmentRequest{Method: "pickup"})
	require.NoError(t, err)
	assert.Equal(t, model.ShippingShipped, shipped.ShippingStatus)
	assert.Empty(t, shipped.Shipping.TrackingURL)

	rows := f.env.outboxRows(t, model.EventAssignmentShipped)
	require.Len(t, rows, 1)
	assert.Equal(t, "shop1@example.com", rows[0].RecipientEmail)
	require.NotNil(t, rows[0].RecipientAccountID)
	assert.Equal(t, f.reseller.AccountID, *rows[0].RecipientAccountID)
}

func TestAssignmentService_StaleVersionIsRejected(t *testing.T) {
	f := newAssignmentFixture(t)
	ctx := context.Background()
	received := f.received(t, 100)

	stale, err := f.env.assignments.FindByID(ctx, uuid.MustParse(received.ID))
	require.NoError(t, err)

	_, err = f.svc.ReportSale(ctx, f.reseller, received.ID, ReportSaleRequest{SalePrice: decimal.NewFromInt(120)})
	require.NoError(t, err)

	_, err = f.svc.apply(ctx, f.reseller, stale, transition{
		name:    "report_sale",
		action:  model.ActionReportSale,
		event:   model.EventAssignmentSold,
		updates: map[string]interface{}{"status": model.AssignmentStatusSold},
	})
	assert.True(t, apperr.Is(err, apperr.KindState))
	assert.Len(t, f.env.outboxRows(t, model.EventAssignmentSold), 1)
}

func TestComputeProfit(t *testing.T) {
	profit, err := ComputeProfit(decimal.NewFromInt(300), decimal.NewFromInt(350))
	require.NoError(t, err)
	assert.True(t, profit.Equal(decimal.NewFromInt(50)))

	_, err = ComputeProfit(decimal.NewFromInt(300), decimal.Zero)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = ComputeProfit(decimal.NewFromInt(300), decimal.NewFromFloat(299.99))
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestToolService_CalculatePrice(t *testing.T) {
	env := newTestEnv(t)
	svc := NewToolService()
	ctx := context.Background()

	_, err := svc.CalculatePrice(ctx, env.principal(t, env.reseller(t, "shop")), PriceCalculationRequest{
		MinimumPrice: decimal.NewFromInt(100), SalePrice: decimal.NewFromInt(125),
	})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	res, err := svc.CalculatePrice(ctx, env.principal(t, env.superAdmin(t)), PriceCalculationRequest{
		MinimumPrice: decimal.NewFromInt(100), SalePrice: decimal.NewFromInt(125),
	})
	require.NoError(t, err)
	assert.True(t, res.Profit.Equal(decimal.NewFromInt(25)))
	assert.True(t, res.MarginPercent.Equal(decimal.NewFromInt(20)))
}
