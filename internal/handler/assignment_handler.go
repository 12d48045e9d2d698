package handler

import (
	"net/http"

	"resellerportal/internal/authz"
	"resellerportal/internal/middleware"
	"resellerportal/internal/model"
	"resellerportal/internal/service"
	"resellerportal/pkg/pagination"
	"resellerportal/pkg/response"

	"github.com/gin-gonic/gin"
)

type AssignmentHandler struct {
	assignmentService service.AssignmentService
	auth              *middleware.Auth
}

func NewAssignmentHandler(assignmentService service.AssignmentService, auth *middleware.Auth) *AssignmentHandler {
	return &AssignmentHandler{assignmentService: assignmentService, auth: auth}
}

func (h *AssignmentHandler) RegisterRoutes(router *gin.RouterGroup) {
	assignments := router.Group("/assignments")
	assignments.Use(h.auth.Authenticate())
	{
		assignments.GET("", middleware.RequireCapability(authz.ResellersView), h.ListAssignments)
		assignments.GET("/mine", middleware.RequireKind(model.AccountKindReseller), h.ListMine)
		assignments.GET("/:id", h.GetAssignment)
		assignments.POST("", middleware.RequireCapability(authz.ResellersAssign), h.CreateAssignment)

		// Admin shipping workflow
		assignments.POST("/:id/approve-shipping", middleware.RequireCapability(authz.ResellersAssign), h.ApproveShipping)
		assignments.POST("/:id/ship", middleware.RequireCapability(authz.ResellersAssign), h.Ship)

		// Reseller workflow
		assignments.POST("/:id/confirm-receipt", middleware.RequireKind(model.AccountKindReseller), h.ConfirmReceipt)
		assignments.POST("/:id/confirm-delivery", middleware.RequireKind(model.AccountKindReseller), h.ConfirmReceipt)
		assignments.POST("/:id/report-sale", middleware.RequireKind(model.AccountKindReseller), h.ReportSale)
		assignments.POST("/:id/reverse-sale", middleware.RequireKind(model.AccountKindReseller), h.ReverseSale)
	}
}

// ListAssignments lists assignments across resellers
// @Summary      List assignments
// @Tags         assignments
// @Produce      json
// @Security     BearerAuth
// @Param        status      query     string  false  "assigned, received or sold"
// @Param        resellerId  query     string  false  "Reseller ID"
// @Param        page        query     int     false  "Page number (default 1)"
// @Param        limit       query     int     false  "Number of items per page (default 20)"
// @Success      200         {object}  response.Response{data=response.Page}
// @Failure      403         {object}  response.Response
// @Router       /assignments [get]
func (h *AssignmentHandler) ListAssignments(c *gin.Context) {
	params := pagination.Parse(c)
	items, total, err := h.assignmentService.List(c.Request.Context(), middleware.CurrentPrincipal(c), service.AssignmentFilter{
		Status:     c.Query("status"),
		ResellerID: c.Query("resellerId"),
		Paging:     params,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, items, total, params)
}

// ListMine lists the calling reseller's assignments
// @Summary      List my assignments
// @Tags         assignments
// @Produce      json
// @Security     BearerAuth
// @Param        status  query     string  false  "assigned, received or sold"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=response.Page}
// @Router       /assignments/mine [get]
func (h *AssignmentHandler) ListMine(c *gin.Context) {
	params := pagination.Parse(c)
	items, total, err := h.assignmentService.ListMine(c.Request.Context(), middleware.CurrentPrincipal(c),
		c.Query("status"), params)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, items, total, params)
}

// GetAssignment returns one assignment to its owner or to admins with resellers.view
// @Summary      Get assignment
// @Tags         assignments
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Assignment ID"
// @Success      200  {object}  response.Response{data=service.AssignmentResponse}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /assignments/{id} [get]
func (h *AssignmentHandler) GetAssignment(c *gin.Context) {
	assignment, err := h.assignmentService.Get(c.Request.Context(), middleware.CurrentPrincipal(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, assignment))
}

// CreateAssignment assigns an available device to a reseller
// @Summary      Create assignment
// @Tags         assignments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateAssignmentRequest  true  "Assignment"
// @Success      201      {object}  response.Response{data=service.AssignmentResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /assignments [post]
func (h *AssignmentHandler) CreateAssignment(c *gin.Context) {
	var req service.CreateAssignmentRequest
	if !bindJSON(c, &req) {
		return
	}

	assignment, err := h.assignmentService.Create(c.Request.Context(), middleware.CurrentPrincipal(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, assignment))
}

// ApproveShipping releases a pending assignment to the reseller
// @Summary      Approve shipping
// @Tags         assignments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                          true   "Assignment ID"
// @Param        payload  body      service.ApproveShippingRequest  false  "Notes"
// @Success      200      {object}  response.Response{data=service.AssignmentResponse}
// @Failure      409      {object}  response.Response
// @Router       /assignments/{id}/approve-shipping [post]
func (h *AssignmentHandler) ApproveShipping(c *gin.Context) {
	var req service.ApproveShippingRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	assignment, err := h.assignmentService.ApproveShipping(c.Request.Context(), middleware.CurrentPrincipal(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, assignment))
}

// Ship records shipping details
// @Summary      Ship assignment
// @Tags         assignments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                         true  "Assignment ID"
// @Param        payload  body      service.ShipAssignmentRequest  true  "Shipping"
// @Success      200      {object}  response.Response{data=service.AssignmentResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /assignments/{id}/ship [post]
func (h *AssignmentHandler) Ship(c *gin.Context) {
	var req service.ShipAssignmentRequest
	if !bindJSON(c, &req) {
		return
	}

	assignment, err := h.assignmentService.Ship(c.Request.Context(), middleware.CurrentPrincipal(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, assignment))
}

// ConfirmReceipt serves both confirm-receipt and confirm-delivery
// @Summary      Confirm receipt
// @Description  Moves an assigned device to received. The condition rating is optional.
// @Tags         assignments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                         true   "Assignment ID"
// @Param        payload  body      service.ConfirmReceiptRequest  false  "Receipt"
// @Success      200      {object}  response.Response{data=service.AssignmentResponse}
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /assignments/{id}/confirm-receipt [post]
// @Router       /assignments/{id}/confirm-delivery [post]
func (h *AssignmentHandler) ConfirmReceipt(c *gin.Context) {
	var req service.ConfirmReceiptRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	assignment, err := h.assignmentService.ConfirmReceipt(c.Request.Context(), middleware.CurrentPrincipal(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, assignment))
}

// ReportSale records the sale price and profit
// @Summary      Report sale
// @Tags         assignments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                     true  "Assignment ID"
// @Param        payload  body      service.ReportSaleRequest  true  "Sale"
// @Success      200      {object}  response.Response{data=service.AssignmentResponse}
// @Failure      400      {object}  response.Response  "Sale price below minimum"
// @Failure      409      {object}  response.Response  "Not received yet"
// @Router       /assignments/{id}/report-sale [post]
func (h *AssignmentHandler) ReportSale(c *gin.Context) {
	var req service.ReportSaleRequest
	if !bindJSON(c, &req) {
		return
	}

	assignment, err := h.assignmentService.ReportSale(c.Request.Context(), middleware.CurrentPrincipal(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, assignment))
}

// ReverseSale undoes a reported sale
// @Summary      Reverse sale
// @Tags         assignments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                      true  "Assignment ID"
// @Param        payload  body      service.ReverseSaleRequest  true  "Reason (at least 10 characters)"
// @Success      200      {object}  response.Response{data=service.AssignmentResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /assignments/{id}/reverse-sale [post]
func (h *AssignmentHandler) ReverseSale(c *gin.Context) {
	var req service.ReverseSaleRequest
	if !bindJSON(c, &req) {
		return
	}

	assignment, err := h.assignmentService.ReverseSale(c.Request.Context(), middleware.CurrentPrincipal(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, assignment))
}
