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

type InviteHandler struct {
	inviteService service.InviteService
	auth          *middleware.Auth
}

func NewInviteHandler(inviteService service.InviteService, auth *middleware.Auth) *InviteHandler {
	return &InviteHandler{inviteService: inviteService, auth: auth}
}

func (h *InviteHandler) RegisterRoutes(router *gin.RouterGroup) {
	invites := router.Group("/invites")

	// Public registration flow
	invites.GET("/validate/:token", h.ValidateInvite)
	invites.POST("/complete-registration", h.CompleteRegistration)

	admin := invites.Group("")
	admin.Use(h.auth.Authenticate(), middleware.RequireCapability(authz.SystemUserManagement))
	{
		admin.GET("", h.ListInvites)
		admin.POST("", h.IssueInvite)
		admin.DELETE("/:id", h.RevokeInvite)
		admin.POST("/:id/resend", h.ResendInvite)
	}
}

// IssueInvite creates a registration invite and emails its link
// @Summary      Issue invite
// @Tags         invites
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.IssueInviteRequest  true  "Invite target"
// @Success      201      {object}  response.Response{data=service.InviteResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /invites [post]
func (h *InviteHandler) IssueInvite(c *gin.Context) {
	var req service.IssueInviteRequest
	if !bindJSON(c, &req) {
		return
	}

	invite, err := h.inviteService.Issue(c.Request.Context(), middleware.CurrentPrincipal(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, invite))
}

// ListInvites returns pending invites with their remaining time
// @Summary      List pending invites
// @Tags         invites
// @Produce      json
// @Security     BearerAuth
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=response.Page}
// @Router       /invites [get]
func (h *InviteHandler) ListInvites(c *gin.Context) {
	params := pagination.Parse(c)
	invites, total, err := h.inviteService.ListPending(c.Request.Context(), middleware.CurrentPrincipal(c), params)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, invites, total, params)
}

// ValidateInvite is a read-only check that a registration link is still usable
// @Summary      Validate invite token
// @Tags         invites
// @Produce      json
// @Param        token  path      string  true  "Invite token"
// @Success      200    {object}  response.Response{data=service.InviteData}
// @Failure      404    {object}  response.Response
// @Failure      410    {object}  response.Response  "Expired or already used"
// @Router       /invites/validate/{token} [get]
func (h *InviteHandler) ValidateInvite(c *gin.Context) {
	data, err := h.inviteService.Validate(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, data))
}

// CompleteRegistration redeems an invite and creates the account
// @Summary      Complete registration
// @Tags         invites
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CompleteRegistrationRequest  true  "Registration"
// @Success      201      {object}  response.Response{data=service.AccountResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Failure      410      {object}  response.Response
// @Router       /invites/complete-registration [post]
func (h *InviteHandler) CompleteRegistration(c *gin.Context) {
	var req service.CompleteRegistrationRequest
	if !bindJSON(c, &req) {
		return
	}

	account, err := h.inviteService.Redeem(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, account))
}

// RevokeInvite deletes an invite that has not been redeemed
// @Summary      Revoke invite
// @Tags         invites
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Invite ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /invites/{id} [delete]
func (h *InviteHandler) RevokeInvite(c *gin.Context) {
	if err := h.inviteService.Revoke(c.Request.Context(), middleware.CurrentPrincipal(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Invite revoked"}))
}

// ResendInvite restarts the invite window and sends the link again
// @Summary      Resend invite
// @Tags         invites
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Invite ID"
// @Success      200  {object}  response.Response{data=service.InviteResponse}
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /invites/{id}/resend [post]
func (h *InviteHandler) ResendInvite(c *gin.Context) {
	invite, err := h.inviteService.Resend(c.Request.Context(), middleware.CurrentPrincipal(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, invite))
}
