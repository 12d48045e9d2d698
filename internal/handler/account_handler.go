package handler

import (
	"net/http"
	"strings"

	"resellerportal/internal/middleware"
	"resellerportal/internal/model"
	"resellerportal/internal/service"
	"resellerportal/pkg/pagination"
	"resellerportal/pkg/response"

	"github.com/gin-gonic/gin"
)

// AccountHandler serves /admins and /resellers. Both kinds share one service;
// the kind picks which capabilities gate each route.
type AccountHandler struct {
	accountService service.AccountService
	auth           *middleware.Auth
}

func NewAccountHandler(accountService service.AccountService, auth *middleware.Auth) *AccountHandler {
	return &AccountHandler{accountService: accountService, auth: auth}
}

func (h *AccountHandler) RegisterRoutes(router *gin.RouterGroup) {
	h.register(router.Group("/admins"), model.AccountKindAdmin)
	h.register(router.Group("/resellers"), model.AccountKindReseller)
}

func (h *AccountHandler) register(group *gin.RouterGroup, kind string) {
	group.Use(h.auth.Authenticate(), middleware.RequireKind(model.AccountKindAdmin))
	{
		group.GET("", h.list(kind))
		group.GET("/:id", h.get(kind))
		group.POST("", h.create(kind))
		group.PUT("/:id", h.update(kind))
		group.POST("/:id/reset-password", h.ResetPassword)
	}
}

// list returns paginated accounts of one kind
// @Summary      List admins or resellers
// @Tags         accounts
// @Produce      json
// @Security     BearerAuth
// @Param        kind    path      string  true   "admins or resellers"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Param        search  query     string  false  "Username, email or name"
// @Success      200     {object}  response.Response{data=response.Page}
// @Failure      403     {object}  response.Response
// @Router       /{kind} [get]
func (h *AccountHandler) list(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		params := pagination.Parse(c)
		search := strings.TrimSpace(c.Query("search"))

		accounts, total, err := h.accountService.ListAccounts(c.Request.Context(), middleware.CurrentPrincipal(c), kind, params, search)
		if err != nil {
			respondError(c, err)
			return
		}
		respondPage(c, accounts, total, params)
	}
}

// get returns one account
// @Summary      Get admin or reseller
// @Tags         accounts
// @Produce      json
// @Security     BearerAuth
// @Param        kind  path      string  true  "admins or resellers"
// @Param        id    path      string  true  "Account ID"
// @Success      200   {object}  response.Response{data=service.AccountResponse}
// @Failure      404   {object}  response.Response
// @Router       /{kind}/{id} [get]
func (h *AccountHandler) get(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		account, err := h.accountService.GetAccount(c.Request.Context(), middleware.CurrentPrincipal(c), kind, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.Success(http.StatusOK, account))
	}
}

// create provisions an account whose temporary password is its username
// @Summary      Create admin or reseller
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        kind     path      string                        true  "admins or resellers"
// @Param        payload  body      service.CreateAccountRequest  true  "Account"
// @Success      201      {object}  response.Response{data=service.CreatedAccountResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /{kind} [post]
func (h *AccountHandler) create(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.CreateAccountRequest
		if !bindJSON(c, &req) {
			return
		}

		created, err := h.accountService.CreateAccount(c.Request.Context(), middleware.CurrentPrincipal(c), kind, req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, response.Success(http.StatusCreated, created))
	}
}

// update changes profile fields, role or active flag
// @Summary      Update admin or reseller
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        kind     path      string                        true  "admins or resellers"
// @Param        id       path      string                        true  "Account ID"
// @Param        payload  body      service.UpdateAccountRequest  true  "Changes"
// @Success      200      {object}  response.Response{data=service.AccountResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /{kind}/{id} [put]
func (h *AccountHandler) update(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.UpdateAccountRequest
		if !bindJSON(c, &req) {
			return
		}

		account, err := h.accountService.UpdateAccount(c.Request.Context(), middleware.CurrentPrincipal(c), kind, c.Param("id"), req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.Success(http.StatusOK, account))
	}
}

// ResetPassword resets an account to its temporary password
// @Summary      Reset password (admin)
// @Description  Resets the password to the username and forces a change on next login. The temporary password is returned once.
// @Tags         accounts
// @Produce      json
// @Security     BearerAuth
// @Param        kind  path      string  true  "admins or resellers"
// @Param        id    path      string  true  "Account ID"
// @Success      200   {object}  response.Response{data=service.ResetPasswordResponse}
// @Failure      403   {object}  response.Response
// @Failure      404   {object}  response.Response
// @Router       /{kind}/{id}/reset-password [post]
func (h *AccountHandler) ResetPassword(c *gin.Context) {
	res, err := h.accountService.ResetPassword(c.Request.Context(), middleware.CurrentPrincipal(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}
