package handler

import (
	"resellerportal/internal/authz"
	"resellerportal/internal/middleware"
	"resellerportal/internal/service"
	"resellerportal/pkg/pagination"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	notificationService service.NotificationService
	auth                *middleware.Auth
}

func NewNotificationHandler(notificationService service.NotificationService, auth *middleware.Auth) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService, auth: auth}
}

func (h *NotificationHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/notifications")
	group.Use(h.auth.Authenticate(), middleware.RequireCapability(authz.SystemSettings))
	{
		group.GET("", h.ListNotifications)
	}
}

// ListNotifications pages through the outbox
// @Summary      List outbox notifications
// @Description  Lists queued, sent and dead-lettered notifications, newest first. Payloads are never returned.
// @Tags         notifications
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "pending, sending, sent or dead"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=response.Page}
// @Failure      400     {object}  response.Response
// @Failure      403     {object}  response.Response
// @Router       /notifications [get]
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	params := pagination.Parse(c)

	rows, total, err := h.notificationService.ListNotifications(c.Request.Context(), middleware.CurrentPrincipal(c), c.Query("status"), params)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, rows, total, params)
}
