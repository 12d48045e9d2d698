package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"resellerportal/internal/apperr"
	"resellerportal/internal/authz"
	"resellerportal/internal/metrics"
	"resellerportal/internal/model"
	"resellerportal/internal/notification"
	"resellerportal/internal/repository"
	"resellerportal/pkg/pagination"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const minReversalReasonLength = 10

// --- DTOs ---

type CreateAssignmentRequest struct {
	DeviceID     uuid.UUID       `json:"deviceId" binding:"required"`
	ResellerID   uuid.UUID       `json:"resellerId" binding:"required"`
	MinimumPrice decimal.Decimal `json:"minimumPrice"`
	Notes        string          `json:"notes"`
}

type ApproveShippingRequest struct {
	Notes string `json:"notes"`
}

type ShipAssignmentRequest struct {
	Method           string `json:"method" binding:"required"`
	TrackingNumber   string `json:"trackingNumber"`
	RecipientAddress string `json:"recipientAddress"`
	EstimatedDays    int    `json:"estimatedDays"`
}

// ConfirmReceiptRequest serves both confirm-receipt and confirm-delivery;
// the condition rating is optional.
type ConfirmReceiptRequest struct {
	Notes     string `json:"notes"`
	Condition string `json:"condition"`
	Issues    string `json:"issues"`
}

type ReportSaleRequest struct {
	SalePrice decimal.Decimal `json:"salePrice"`
	Notes     string          `json:"notes"`
}

type ReverseSaleRequest struct {
	Reason string `json:"reason"`
}

type AssignmentFilter struct {
	Status     string
	ResellerID string
	Paging     pagination.Params
}

type DeviceSummary struct {
	ID    string `json:"id"`
	SKU   string `json:"sku"`
	Name  string `json:"name"`
	Brand string `json:"brand,omitempty"`
	Model string `json:"model,omitempty"`
	IMEI  string `json:"imei,omitempty"`
}

type ResellerSummary struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Company     string `json:"company,omitempty"`
}

type AssignmentResponse struct {
	ID                string              `json:"id"`
	Device            *DeviceSummary      `json:"device"`
	Reseller          *ResellerSummary    `json:"reseller"`
	MinimumPrice      decimal.Decimal     `json:"minimumPrice"`
	Status            string              `json:"status"`
	ShippingStatus    string              `json:"shippingStatus"`
	Shipping          *model.ShippingInfo `json:"shipping"`
	ActualSalePrice   *decimal.Decimal    `json:"actualSalePrice"`
	Profit            *decimal.Decimal    `json:"profit"`
	SaleNotes         string              `json:"saleNotes,omitempty"`
	Notes             string              `json:"notes,omitempty"`
	ApprovalNotes     string              `json:"approvalNotes,omitempty"`
	ReceiptNotes      string              `json:"receiptNotes,omitempty"`
	ReceivedCondition string              `json:"receivedCondition,omitempty"`
	ReceivedIssues    string              `json:"receivedIssues,omitempty"`
	ReversalReason    string              `json:"reversalReason,omitempty"`
	ApprovedAt        *time.Time          `json:"approvedAt"`
	ReceivedAt        *time.Time          `json:"receivedAt"`
	SoldAt            *time.Time          `json:"soldAt"`
	ReversedAt        *time.Time          `json:"reversedAt"`
	Version           int                 `json:"version"`
	CreatedAt         time.Time           `json:"createdAt"`
	UpdatedAt         time.Time           `json:"updatedAt"`
}

// --- Interface ---

type AssignmentService interface {
	Create(ctx context.Context, p *authz.Principal, req CreateAssignmentRequest) (*AssignmentResponse, error)
	Get(ctx context.Context, p *authz.Principal, id string) (*AssignmentResponse, error)
	List(ctx context.Context, p *authz.Principal, filter AssignmentFilter) ([]AssignmentResponse, int64, error)
	ListMine(ctx context.Context, p *authz.Principal, status string, paging pagination.Params) ([]AssignmentResponse, int64, error)
	ApproveShipping(ctx context.Context, p *authz.Principal, id string, req ApproveShippingRequest) (*AssignmentResponse, error)
	Ship(ctx context.Context, p *authz.Principal, id string, req ShipAssignmentRequest) (*AssignmentResponse, error)
	ConfirmReceipt(ctx context.Context, p *authz.Principal, id string, req ConfirmReceiptRequest) (*AssignmentResponse, error)
	ReportSale(ctx context.Context, p *authz.Principal, id string, req ReportSaleRequest) (*AssignmentResponse, error)
	ReverseSale(ctx context.Context, p *authz.Principal, id string, req ReverseSaleRequest) (*AssignmentResponse, error)
}

type assignmentService struct {
	assignmentRepo repository.AssignmentRepository
	deviceRepo     repository.DeviceRepository
	accountRepo    repository.AccountRepository
	auditRepo      repository.AuditRepository
	txManager      repository.TransactionManager
	notifier       Notifier
	metrics        *metrics.Metrics
	trackingURL    string
	now            func() time.Time
}

func NewAssignmentService(
	assignmentRepo repository.AssignmentRepository,
	deviceRepo repository.DeviceRepository,
	accountRepo repository.AccountRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	notifier Notifier,
	m *metrics.Metrics,
	trackingURL string,
) AssignmentService {
	return &assignmentService{
		assignmentRepo: assignmentRepo,
		deviceRepo:     deviceRepo,
		accountRepo:    accountRepo,
		auditRepo:      auditRepo,
		txManager:      txManager,
		notifier:       notifier,
		metrics:        m,
		trackingURL:    trackingURL,
		now:            time.Now,
	}
}

// transition describes one guarded state change. The update only applies if
// the row still has the status and version that the guards were checked against.
type transition struct {
	name        string
	action      string
	event       string
	subject     string
	notifyAdmin bool
	updates     map[string]interface{}
	deviceFrom  string
	deviceTo    string
	details     map[string]interface{}
}

// --- Implementation ---

func (s *assignmentService) Create(ctx context.Context, p *authz.Principal, req CreateAssignmentRequest) (*AssignmentResponse, error) {
	if err := s.requireAdmin(p); err != nil {
		return nil, err
	}
	if !req.MinimumPrice.IsPositive() {
		return nil, apperr.Validation("minimum price must be greater than zero")
	}
	if err := checkMoney(req.MinimumPrice, "minimum price"); err != nil {
		return nil, err
	}

	device, err := s.deviceRepo.FindByID(ctx, req.DeviceID)
	if err != nil {
		return nil, notFound(err, "device")
	}
	if device.Status != model.DeviceStatusAvailable {
		return nil, apperr.State("device '%s' is %s, not available", device.SKU, device.Status)
	}
	reseller, err := s.accountRepo.GetByID(ctx, req.ResellerID)
	if err != nil {
		return nil, notFound(err, "reseller")
	}
	if !reseller.IsReseller() {
		return nil, apperr.Validation("assignments can only target reseller accounts")
	}
	if !reseller.IsActive {
		return nil, apperr.Validation("reseller '%s' is inactive", reseller.Username)
	}

	assignment := &model.DeviceAssignment{
		DeviceID:       device.ID,
		ResellerID:     reseller.ID,
		MinimumPrice:   req.MinimumPrice,
		Status:         model.AssignmentStatusAssigned,
		ShippingStatus: model.ShippingPendingApproval,
		Notes:          strings.TrimSpace(req.Notes),
		CreatedBy:      p.AccountID,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		ok, err := s.deviceRepo.SetStatus(txCtx, device.ID, model.DeviceStatusAvailable, model.DeviceStatusAssigned)
		if err != nil {
			return fmt.Errorf("failed to reserve device: %w", err)
		}
		if !ok {
			return apperr.State("device '%s' is no longer available", device.SKU)
		}
		if err := s.assignmentRepo.Create(txCtx, assignment); err != nil {
			return fmt.Errorf("failed to create assignment: %w", err)
		}
		if err := writeAudit(txCtx, s.auditRepo, actorID(p), model.ActionCreateAssignment, assignment.ID.String(), device.Name,
			map[string]interface{}{"resellerId": reseller.ID, "minimumPrice": req.MinimumPrice}); err != nil {
			return err
		}

		assignment.Device = device
		assignment.Reseller = reseller
		payload := s.basePayload(assignment)
		payload["notes"] = assignment.Notes
		return s.notifier.Enqueue(txCtx, notification.Message{
			Event:              model.EventAssignmentCreated,
			RecipientEmail:     reseller.Email,
			RecipientAccountID: &reseller.ID,
			Subject:            "A device has been assigned to you",
			Payload:            payload,
		})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.AssignmentTransitions.WithLabelValues("create").Inc()

	return s.reload(ctx, assignment.ID)
}

func (s *assignmentService) Get(ctx context.Context, p *authz.Principal, id string) (*AssignmentResponse, error) {
	assignment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.IsReseller() {
		if err := requireOwner(p, assignment); err != nil {
			return nil, err
		}
	} else if err := authz.Require(p, authz.ResellersView); err != nil {
		return nil, err
	}

	resp := toAssignmentResponse(assignment)
	return &resp, nil
}

func (s *assignmentService) List(ctx context.Context, p *authz.Principal, filter AssignmentFilter) ([]AssignmentResponse, int64, error) {
	if err := authz.Require(p, authz.ResellersView); err != nil {
		return nil, 0, err
	}
	repoFilter := repository.AssignmentFilter{Status: filter.Status, Paging: filter.Paging}
	if filter.ResellerID != "" {
		resellerID, err := parseID(filter.ResellerID, "reseller")
		if err != nil {
			return nil, 0, err
		}
		repoFilter.ResellerID = &resellerID
	}
	return s.list(ctx, repoFilter)
}

func (s *assignmentService) ListMine(ctx context.Context, p *authz.Principal, status string, paging pagination.Params) ([]AssignmentResponse, int64, error) {
	if !p.IsReseller() || !p.IsActive {
		return nil, 0, apperr.Forbidden("only resellers have their own assignments")
	}
	return s.list(ctx, repository.AssignmentFilter{Status: status, ResellerID: &p.AccountID, Paging: paging})
}

func (s *assignmentService) list(ctx context.Context, filter repository.AssignmentFilter) ([]AssignmentResponse, int64, error) {
	assignments, total, err := s.assignmentRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch assignments: %w", err)
	}
	res := make([]AssignmentResponse, 0, len(assignments))
	for i := range assignments {
		res = append(res, toAssignmentResponse(&assignments[i]))
	}
	return res, total, nil
}

// ApproveShipping makes an assignment actionable for the reseller.
func (s *assignmentService) ApproveShipping(ctx context.Context, p *authz.Principal, id string, req ApproveShippingRequest) (*AssignmentResponse, error) {
	if err := s.requireAdmin(p); err != nil {
		return nil, err
	}
	assignment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if assignment.Status != model.AssignmentStatusAssigned || assignment.ShippingStatus != model.ShippingPendingApproval {
		return nil, apperr.State("shipping can only be approved while pending approval (status %s, shipping %s)",
			assignment.Status, assignment.ShippingStatus)
	}

	now := s.now()
	notes := strings.TrimSpace(req.Notes)
	return s.apply(ctx, p, assignment, transition{
		name:    "approve_shipping",
		action:  model.ActionApproveShipping,
		event:   model.EventAssignmentApproved,
		subject: "Your device shipment has been approved",
		updates: map[string]interface{}{
			"shipping_status": model.ShippingApproved,
			"approval_notes":  notes,
			"approved_by":     p.AccountID,
			"approved_at":     now,
		},
		details: map[string]interface{}{"notes": notes},
	})
}

// Ship records shipping details on an approved assignment.
func (s *assignmentService) Ship(ctx context.Context, p *authz.Principal, id string, req ShipAssignmentRequest) (*AssignmentResponse, error) {
	if err := s.requireAdmin(p); err != nil {
		return nil, err
	}
	assignment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if assignment.Status != model.AssignmentStatusAssigned || assignment.ShippingStatus != model.ShippingApproved {
		return nil, apperr.State("only approved assignments can be shipped (status %s, shipping %s)",
			assignment.Status, assignment.ShippingStatus)
	}

	shipping, err := s.shippingInfo(req)
	if err != nil {
		return nil, err
	}

	return s.apply(ctx, p, assignment, transition{
		name:    "ship",
		action:  model.ActionShipAssignment,
		event:   model.EventAssignmentShipped,
		subject: "Your device is on its way",
		updates: map[string]interface{}{
			"shipping_status":             model.ShippingShipped,
			"shipping_method":             shipping.Method,
			"shipping_tracking_number":    shipping.TrackingNumber,
			"shipping_tracking_url":       shipping.TrackingURL,
			"shipping_recipient_address":  shipping.RecipientAddress,
			"shipping_estimated_delivery": shipping.EstimatedDelivery,
			"shipping_shipped_at":         shipping.ShippedAt,
		},
		details: map[string]interface{}{"shipping": shipping},
	})
}

func (s *assignmentService) shippingInfo(req ShipAssignmentRequest) (model.ShippingInfo, error) {
	method := strings.ToLower(strings.TrimSpace(req.Method))
	switch method {
	case model.ShippingMethodDHL, model.ShippingMethodCourier, model.ShippingMethodPickup, model.ShippingMethodOther:
	default:
		return model.ShippingInfo{}, apperr.Validation("shipping method must be one of dhl, courier, pickup, other")
	}

	tracking := strings.TrimSpace(req.TrackingNumber)
	if method == model.ShippingMethodDHL && tracking == "" {
		return model.ShippingInfo{}, apperr.Validation("a tracking number is required for dhl shipments")
	}
	address := strings.TrimSpace(req.RecipientAddress)
	if method != model.ShippingMethodPickup && address == "" {
		return model.ShippingInfo{}, apperr.Validation("recipient address is required")
	}
	if req.EstimatedDays < 0 {
		return model.ShippingInfo{}, apperr.Validation("estimated days cannot be negative")
	}

	shippedAt := s.now()
	info := model.ShippingInfo{
		Method:           method,
		TrackingNumber:   tracking,
		RecipientAddress: address,
		ShippedAt:        &shippedAt,
	}
	if method == model.ShippingMethodDHL {
		info.TrackingURL = fmt.Sprintf(s.trackingURL, url.QueryEscape(tracking))
	}
	if req.EstimatedDays > 0 {
		eta := shippedAt.AddDate(0, 0, req.EstimatedDays)
		info.EstimatedDelivery = &eta
	}
	return info, nil
}

// ConfirmReceipt moves assigned to received. Re-confirming is a StateError.
func (s *assignmentService) ConfirmReceipt(ctx context.Context, p *authz.Principal, id string, req ConfirmReceiptRequest) (*AssignmentResponse, error) {
	assignment, err := s.loadOwned(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if assignment.Status != model.AssignmentStatusAssigned {
		return nil, apperr.State("receipt can only be confirmed for assigned devices (current status %s)", assignment.Status)
	}
	if assignment.ShippingStatus != model.ShippingApproved && assignment.ShippingStatus != model.ShippingShipped {
		return nil, apperr.State("this assignment is still awaiting shipping approval")
	}

	condition := strings.ToLower(strings.TrimSpace(req.Condition))
	switch condition {
	case "", model.ConditionExcellent, model.ConditionGood, model.ConditionFair, model.ConditionPoor:
	default:
		return nil, apperr.Validation("condition must be one of excellent, good, fair, poor")
	}

	now := s.now()
	notes := strings.TrimSpace(req.Notes)
	issues := strings.TrimSpace(req.Issues)
	return s.apply(ctx, p, assignment, transition{
		name:        "confirm_receipt",
		action:      model.ActionConfirmReceipt,
		event:       model.EventAssignmentReceived,
		subject:     "A reseller confirmed receipt of a device",
		notifyAdmin: true,
		updates: map[string]interface{}{
			"status":             model.AssignmentStatusReceived,
			"shipping_status":    model.ShippingDelivered,
			"receipt_notes":      notes,
			"received_condition": condition,
			"received_issues":    issues,
			"received_at":        now,
		},
		details: map[string]interface{}{"notes": notes, "condition": condition, "issues": issues},
	})
}

// ReportSale records the end-buyer price and the profit above the minimum.
func (s *assignmentService) ReportSale(ctx context.Context, p *authz.Principal, id string, req ReportSaleRequest) (*AssignmentResponse, error) {
	assignment, err := s.loadOwned(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if assignment.Status != model.AssignmentStatusReceived {
		return nil, apperr.State("a sale can only be reported for received devices (current status %s)", assignment.Status)
	}

	if err := checkMoney(req.SalePrice, "sale price"); err != nil {
		return nil, err
	}
	profit, err := ComputeProfit(assignment.MinimumPrice, req.SalePrice)
	if err != nil {
		return nil, err
	}

	now := s.now()
	notes := strings.TrimSpace(req.Notes)
	return s.apply(ctx, p, assignment, transition{
		name:        "report_sale",
		action:      model.ActionReportSale,
		event:       model.EventAssignmentSold,
		subject:     "A reseller reported a sale",
		notifyAdmin: true,
		updates: map[string]interface{}{
			"status":            model.AssignmentStatusSold,
			"actual_sale_price": decimal.NewNullDecimal(req.SalePrice),
			"profit":            decimal.NewNullDecimal(profit),
			"sale_notes":        notes,
			"sold_at":           now,
		},
		deviceFrom: model.DeviceStatusAssigned,
		deviceTo:   model.DeviceStatusSold,
		details: map[string]interface{}{
			"salePrice":    req.SalePrice,
			"minimumPrice": assignment.MinimumPrice,
			"profit":       profit,
			"notes":        notes,
		},
	})
}

// ReverseSale undoes a reported sale and clears the price and profit.
func (s *assignmentService) ReverseSale(ctx context.Context, p *authz.Principal, id string, req ReverseSaleRequest) (*AssignmentResponse, error) {
	assignment, err := s.loadOwned(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if assignment.Status != model.AssignmentStatusSold {
		return nil, apperr.State("only sold devices can have their sale reversed (current status %s)", assignment.Status)
	}

	reason := strings.TrimSpace(req.Reason)
	if utf8.RuneCountInString(reason) < minReversalReasonLength {
		return nil, apperr.Validation("reversal reason must be at least %d characters", minReversalReasonLength)
	}

	now := s.now()
	return s.apply(ctx, p, assignment, transition{
		name:        "reverse_sale",
		action:      model.ActionReverseSale,
		event:       model.EventAssignmentSaleReverse,
		subject:     "A reseller reversed a sale",
		notifyAdmin: true,
		updates: map[string]interface{}{
			"status":            model.AssignmentStatusReceived,
			"actual_sale_price": decimal.NullDecimal{},
			"profit":            decimal.NullDecimal{},
			"sold_at":           nil,
			"reversal_reason":   reason,
			"reversed_at":       now,
		},
		deviceFrom: model.DeviceStatusSold,
		deviceTo:   model.DeviceStatusAssigned,
		details: map[string]interface{}{
			"reason":            reason,
			"previousSalePrice": assignment.ActualSalePrice,
			"previousProfit":    assignment.Profit,
		},
	})
}

// apply commits a transition together with its audit row and exactly one
// outbox notification. Delivery happens later and cannot undo the commit.
func (s *assignmentService) apply(ctx context.Context, p *authz.Principal, a *model.DeviceAssignment, t transition) (*AssignmentResponse, error) {
	t.updates["updated_at"] = s.now()
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		ok, err := s.assignmentRepo.Transition(txCtx, a.ID, a.Status, a.Version, t.updates)
		if err != nil {
			return fmt.Errorf("failed to update assignment: %w", err)
		}
		if !ok {
			return apperr.State("assignment was changed by another request, reload and try again")
		}

		if t.deviceTo != "" {
			ok, err := s.deviceRepo.SetStatus(txCtx, a.DeviceID, t.deviceFrom, t.deviceTo)
			if err != nil {
				return fmt.Errorf("failed to update device status: %w", err)
			}
			if !ok {
				return apperr.State("device is not %s", t.deviceFrom)
			}
		}

		if err := writeAudit(txCtx, s.auditRepo, actorID(p), t.action, a.ID.String(), deviceName(a), t.details); err != nil {
			return err
		}

		updated, err := s.assignmentRepo.FindByID(txCtx, a.ID)
		if err != nil {
			return fmt.Errorf("failed to reload assignment: %w", err)
		}
		*a = *updated

		msg, err := s.message(txCtx, a, t)
		if err != nil {
			return err
		}
		return s.notifier.Enqueue(txCtx, msg)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.AssignmentTransitions.WithLabelValues(t.name).Inc()

	resp := toAssignmentResponse(a)
	return &resp, nil
}

// message addresses the reseller for admin actions and the assigning admin for reseller actions.
func (s *assignmentService) message(ctx context.Context, a *model.DeviceAssignment, t transition) (notification.Message, error) {
	msg := notification.Message{Event: t.event, Subject: t.subject, Payload: s.basePayload(a)}
	payload := msg.Payload.(map[string]interface{})
	for k, v := range t.details {
		payload[k] = v
	}

	if !t.notifyAdmin {
		msg.RecipientAccountID = &a.ResellerID
		if a.Reseller != nil {
			msg.RecipientEmail = a.Reseller.Email
		}
		return msg, nil
	}

	msg.RecipientAccountID = &a.CreatedBy
	admin, err := s.accountRepo.GetByID(ctx, a.CreatedBy)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return msg, fmt.Errorf("failed to load assigning admin: %w", err)
	}
	if admin != nil {
		msg.RecipientEmail = admin.Email
	}
	return msg, nil
}

func (s *assignmentService) basePayload(a *model.DeviceAssignment) map[string]interface{} {
	payload := map[string]interface{}{
		"assignmentId":   a.ID,
		"deviceId":       a.DeviceID,
		"deviceName":     deviceName(a),
		"resellerId":     a.ResellerID,
		"status":         a.Status,
		"shippingStatus": a.ShippingStatus,
		"minimumPrice":   a.MinimumPrice,
	}
	if a.Reseller != nil {
		payload["resellerUsername"] = a.Reseller.Username
	}
	if a.Status == model.AssignmentStatusSold && a.ActualSalePrice.Valid {
		payload["salePrice"] = a.ActualSalePrice.Decimal
		payload["profit"] = a.Profit.Decimal
	}
	if a.Shipping.Method != "" {
		payload["shipping"] = a.Shipping
	}
	return payload
}

func (s *assignmentService) requireAdmin(p *authz.Principal) error {
	if err := authz.Require(p, authz.ResellersAssign); err != nil {
		return err
	}
	if !p.IsAdmin() {
		return apperr.Forbidden("only admins can manage shipments")
	}
	return nil
}

func (s *assignmentService) load(ctx context.Context, id string) (*model.DeviceAssignment, error) {
	assignmentID, err := parseID(id, "assignment")
	if err != nil {
		return nil, err
	}
	assignment, err := s.assignmentRepo.FindByID(ctx, assignmentID)
	if err != nil {
		return nil, notFound(err, "assignment")
	}
	return assignment, nil
}

func (s *assignmentService) loadOwned(ctx context.Context, p *authz.Principal, id string) (*model.DeviceAssignment, error) {
	if p == nil {
		return nil, apperr.Unauthenticated("authentication required")
	}
	assignment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(p, assignment); err != nil {
		return nil, err
	}
	return assignment, nil
}

func (s *assignmentService) reload(ctx context.Context, id uuid.UUID) (*AssignmentResponse, error) {
	assignment, err := s.assignmentRepo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "assignment")
	}
	resp := toAssignmentResponse(assignment)
	return &resp, nil
}

func requireOwner(p *authz.Principal, a *model.DeviceAssignment) error {
	if p == nil {
		return apperr.Unauthenticated("authentication required")
	}
	if !p.IsActive || !p.IsReseller() || a.ResellerID != p.AccountID {
		return apperr.Forbidden("this assignment belongs to another reseller")
	}
	return nil
}

func deviceName(a *model.DeviceAssignment) string {
	if a.Device != nil {
		return a.Device.Name
	}
	return ""
}

func toAssignmentResponse(a *model.DeviceAssignment) AssignmentResponse {
	resp := AssignmentResponse{
		ID:                a.ID.String(),
		MinimumPrice:      a.MinimumPrice,
		Status:            a.Status,
		ShippingStatus:    a.ShippingStatus,
		SaleNotes:         a.SaleNotes,
		Notes:             a.Notes,
		ApprovalNotes:     a.ApprovalNotes,
		ReceiptNotes:      a.ReceiptNotes,
		ReceivedCondition: a.ReceivedCondition,
		ReceivedIssues:    a.ReceivedIssues,
		ReversalReason:    a.ReversalReason,
		ApprovedAt:        a.ApprovedAt,
		ReceivedAt:        a.ReceivedAt,
		SoldAt:            a.SoldAt,
		ReversedAt:        a.ReversedAt,
		Version:           a.Version,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
	if a.Device != nil {
		resp.Device = &DeviceSummary{
			ID:    a.Device.ID.String(),
			SKU:   a.Device.SKU,
			Name:  a.Device.Name,
			Brand: a.Device.Brand,
			Model: a.Device.Model,
			IMEI:  a.Device.IMEI,
		}
	}
	if a.Reseller != nil {
		resp.Reseller = &ResellerSummary{
			ID:          a.Reseller.ID.String(),
			Username:    a.Reseller.Username,
			DisplayName: a.Reseller.DisplayName,
			Company:     a.Reseller.Company,
		}
	}
	if a.Shipping.Method != "" {
		shipping := a.Shipping
		resp.Shipping = &shipping
	}
	if a.ActualSalePrice.Valid {
		price := a.ActualSalePrice.Decimal
		resp.ActualSalePrice = &price
	}
	if a.Profit.Valid {
		profit := a.Profit.Decimal
		resp.Profit = &profit
	}
	return resp
}
