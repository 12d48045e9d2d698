package handler

import (
	"net/http"

	"resellerportal/internal/authz"
	"resellerportal/internal/middleware"
	"resellerportal/internal/service"
	"resellerportal/pkg/pagination"
	"resellerportal/pkg/response"

	"github.com/gin-gonic/gin"
)

type DeviceHandler struct {
	deviceService service.DeviceService
	auth          *middleware.Auth
}

func NewDeviceHandler(deviceService service.DeviceService, auth *middleware.Auth) *DeviceHandler {
	return &DeviceHandler{deviceService: deviceService, auth: auth}
}

func (h *DeviceHandler) RegisterRoutes(router *gin.RouterGroup) {
	devices := router.Group("/devices")
	devices.Use(h.auth.Authenticate())
	{
		devices.GET("", middleware.RequireCapability(authz.DevicesView), h.GetDevices)
		devices.GET("/:id", middleware.RequireCapability(authz.DevicesView), h.GetDevice)
		devices.POST("", middleware.RequireCapability(authz.DevicesCreate), h.CreateDevice)
		devices.PUT("/:id", middleware.RequireCapability(authz.DevicesEdit), h.UpdateDevice)
		devices.DELETE("/:id", middleware.RequireCapability(authz.DevicesDelete), h.DeleteDevice)
	}
}

// GetDevices lists the catalog
// @Summary      List devices
// @Tags         devices
// @Produce      json
// @Security     BearerAuth
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Param        search  query     string  false  "Name or SKU"
// @Param        status  query     string  false  "available, assigned or sold"
// @Success      200     {object}  response.Response{data=response.Page}
// @Router       /devices [get]
func (h *DeviceHandler) GetDevices(c *gin.Context) {
	params := pagination.Parse(c)
	devices, total, err := h.deviceService.GetDevices(c.Request.Context(), middleware.CurrentPrincipal(c),
		params, c.Query("search"), c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, devices, total, params)
}

// GetDevice returns a single device
// @Summary      Get device
// @Tags         devices
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Device ID"
// @Success      200  {object}  response.Response{data=service.DeviceResponse}
// @Failure      404  {object}  response.Response
// @Router       /devices/{id} [get]
func (h *DeviceHandler) GetDevice(c *gin.Context) {
	device, err := h.deviceService.GetDevice(c.Request.Context(), middleware.CurrentPrincipal(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, device))
}

// CreateDevice adds a device to the catalog as available
// @Summary      Create device
// @Tags         devices
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateDeviceRequest  true  "Device"
// @Success      201      {object}  response.Response{data=service.DeviceResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /devices [post]
func (h *DeviceHandler) CreateDevice(c *gin.Context) {
	var req service.CreateDeviceRequest
	if !bindJSON(c, &req) {
		return
	}

	device, err := h.deviceService.CreateDevice(c.Request.Context(), middleware.CurrentPrincipal(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, device))
}

// UpdateDevice edits catalog fields
// @Summary      Update device
// @Tags         devices
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                       true  "Device ID"
// @Param        payload  body      service.UpdateDeviceRequest  true  "Device"
// @Success      200      {object}  response.Response{data=service.DeviceResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /devices/{id} [put]
func (h *DeviceHandler) UpdateDevice(c *gin.Context) {
	var req service.UpdateDeviceRequest
	if !bindJSON(c, &req) {
		return
	}

	device, err := h.deviceService.UpdateDevice(c.Request.Context(), middleware.CurrentPrincipal(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, device))
}

// DeleteDevice removes a device that is not out with a reseller
// @Summary      Delete device
// @Tags         devices
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Device ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /devices/{id} [delete]
func (h *DeviceHandler) DeleteDevice(c *gin.Context) {
	if err := h.deviceService.DeleteDevice(c.Request.Context(), middleware.CurrentPrincipal(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Device deleted successfully"}))
}
