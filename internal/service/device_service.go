package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"resellerportal/internal/apperr"
	"resellerportal/internal/authz"
	"resellerportal/internal/model"
	"resellerportal/internal/repository"
	"resellerportal/pkg/pagination"

	"github.com/shopspring/decimal"
)

// DTOs
type CreateDeviceRequest struct {
	SKU           string          `json:"sku" binding:"required"`
	Name          string          `json:"name" binding:"required"`
	Brand         string          `json:"brand"`
	Model         string          `json:"model"`
	IMEI          string          `json:"imei"`
	Condition     string          `json:"condition"`
	PurchasePrice decimal.Decimal `json:"purchasePrice"`
}

type UpdateDeviceRequest struct {
	SKU           string          `json:"sku" binding:"required"`
	Name          string          `json:"name" binding:"required"`
	Brand         string          `json:"brand"`
	Model         string          `json:"model"`
	IMEI          string          `json:"imei"`
	Condition     string          `json:"condition"`
	PurchasePrice decimal.Decimal `json:"purchasePrice"`
}

type DeviceResponse struct {
	ID            string          `json:"id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Brand         string          `json:"brand"`
	Model         string          `json:"model"`
	IMEI          string          `json:"imei,omitempty"`
	Condition     string          `json:"condition"`
	PurchasePrice decimal.Decimal `json:"purchasePrice"`
	Status        string          `json:"status"`
}

// CatalogEvent is pushed to connected admins when the catalog changes
type CatalogEvent struct {
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data"`
}

// CatalogPublisher is satisfied by the websocket hub.
type CatalogPublisher interface {
	BroadcastToAdmins(message []byte)
}

type DeviceService interface {
	GetDevices(ctx context.Context, p *authz.Principal, paging pagination.Params, search, status string) ([]DeviceResponse, int64, error)
	GetDevice(ctx context.Context, p *authz.Principal, id string) (DeviceResponse, error)
	CreateDevice(ctx context.Context, p *authz.Principal, req CreateDeviceRequest) (DeviceResponse, error)
	UpdateDevice(ctx context.Context, p *authz.Principal, id string, req UpdateDeviceRequest) (DeviceResponse, error)
	DeleteDevice(ctx context.Context, p *authz.Principal, id string) error
}

type deviceService struct {
	deviceRepo repository.DeviceRepository
	auditRepo  repository.AuditRepository
	txManager  repository.TransactionManager
	hub        CatalogPublisher
}

func NewDeviceService(
	deviceRepo repository.DeviceRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	hub CatalogPublisher,
) DeviceService {
	return &deviceService{
		deviceRepo: deviceRepo,
		auditRepo:  auditRepo,
		txManager:  txManager,
		hub:        hub,
	}
}

func (s *deviceService) GetDevices(ctx context.Context, p *authz.Principal, paging pagination.Params, search, status string) ([]DeviceResponse, int64, error) {
	if err := authz.Require(p, authz.DevicesView); err != nil {
		return nil, 0, err
	}
	devices, total, err := s.deviceRepo.List(ctx, paging, strings.TrimSpace(search), status)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch devices: %w", err)
	}

	res := make([]DeviceResponse, 0, len(devices))
	for i := range devices {
		res = append(res, toDeviceResponse(&devices[i]))
	}
	return res, total, nil
}

func (s *deviceService) GetDevice(ctx context.Context, p *authz.Principal, id string) (DeviceResponse, error) {
	if err := authz.Require(p, authz.DevicesView); err != nil {
		return DeviceResponse{}, err
	}
	device, err := s.find(ctx, id)
	if err != nil {
		return DeviceResponse{}, err
	}
	return toDeviceResponse(device), nil
}

func (s *deviceService) CreateDevice(ctx context.Context, p *authz.Principal, req CreateDeviceRequest) (DeviceResponse, error) {
	if err := authz.Require(p, authz.DevicesCreate); err != nil {
		return DeviceResponse{}, err
	}
	device := model.Device{Status: model.DeviceStatusAvailable}
	if err := applyDeviceFields(&device, req.SKU, req.Name, req.Brand, req.Model, req.IMEI, req.Condition, req.PurchasePrice); err != nil {
		return DeviceResponse{}, err
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.deviceRepo.Create(txCtx, &device); err != nil {
			if isDuplicate(err) {
				return apperr.Conflict("device with sku '%s' already exists", device.SKU)
			}
			return fmt.Errorf("failed to create device: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, actorID(p), model.ActionCreateDevice, device.ID.String(), device.Name, req)
	})
	if err != nil {
		return DeviceResponse{}, err
	}

	s.publish("device_created", &device)
	return toDeviceResponse(&device), nil
}

func (s *deviceService) UpdateDevice(ctx context.Context, p *authz.Principal, id string, req UpdateDeviceRequest) (DeviceResponse, error) {
	if err := authz.Require(p, authz.DevicesEdit); err != nil {
		return DeviceResponse{}, err
	}
	device, err := s.find(ctx, id)
	if err != nil {
		return DeviceResponse{}, err
	}
	if err := applyDeviceFields(device, req.SKU, req.Name, req.Brand, req.Model, req.IMEI, req.Condition, req.PurchasePrice); err != nil {
		return DeviceResponse{}, err
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.deviceRepo.Update(txCtx, device); err != nil {
			if isDuplicate(err) {
				return apperr.Conflict("device with sku '%s' already exists", device.SKU)
			}
			return fmt.Errorf("failed to update device: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, actorID(p), model.ActionUpdateDevice, device.ID.String(), device.Name, req)
	})
	if err != nil {
		return DeviceResponse{}, err
	}

	s.publish("device_updated", device)
	return toDeviceResponse(device), nil
}

// DeleteDevice only removes devices that are not out with a reseller.
func (s *deviceService) DeleteDevice(ctx context.Context, p *authz.Principal, id string) error {
	if err := authz.Require(p, authz.DevicesDelete); err != nil {
		return err
	}
	device, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if device.Status == model.DeviceStatusAssigned {
		return apperr.State("device '%s' is assigned to a reseller", device.SKU)
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.deviceRepo.Delete(txCtx, device.ID); err != nil {
			return fmt.Errorf("failed to delete device: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, actorID(p), model.ActionDeleteDevice, device.ID.String(), device.Name,
			map[string]interface{}{"deleted": true, "sku": device.SKU})
	})
	if err != nil {
		return err
	}

	s.publish("device_deleted", device)
	return nil
}

func (s *deviceService) find(ctx context.Context, id string) (*model.Device, error) {
	deviceID, err := parseID(id, "device")
	if err != nil {
		return nil, err
	}
	device, err := s.deviceRepo.FindByID(ctx, deviceID)
	if err != nil {
		return nil, notFound(err, "device")
	}
	return device, nil
}

func (s *deviceService) publish(event string, d *model.Device) {
	if s.hub == nil {
		return
	}
	msg, err := json.Marshal(CatalogEvent{
		Event: event,
		Data: map[string]interface{}{
			"id":     d.ID.String(),
			"sku":    d.SKU,
			"name":   d.Name,
			"status": d.Status,
		},
	})
	if err != nil {
		return
	}
	s.hub.BroadcastToAdmins(msg)
}

func applyDeviceFields(d *model.Device, sku, name, brand, deviceModel, imei, condition string, price decimal.Decimal) error {
	sku = strings.TrimSpace(sku)
	name = strings.TrimSpace(name)
	if sku == "" || name == "" {
		return apperr.Validation("sku and name are required")
	}
	if price.IsNegative() {
		return apperr.Validation("purchase price cannot be negative")
	}
	if err := checkMoney(price, "purchase price"); err != nil {
		return err
	}
	d.SKU = sku
	d.Name = name
	d.Brand = strings.TrimSpace(brand)
	d.Model = strings.TrimSpace(deviceModel)
	d.IMEI = strings.TrimSpace(imei)
	d.Condition = strings.TrimSpace(condition)
	d.PurchasePrice = price
	return nil
}

func toDeviceResponse(d *model.Device) DeviceResponse {
	return DeviceResponse{
		ID:            d.ID.String(),
		SKU:           d.SKU,
		Name:          d.Name,
		Brand:         d.Brand,
		Model:         d.Model,
		IMEI:          d.IMEI,
		Condition:     d.Condition,
		PurchasePrice: d.PurchasePrice,
		Status:        d.Status,
	}
}
