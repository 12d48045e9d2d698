package handler

import (
	"resellerportal/internal/authz"
	"resellerportal/internal/middleware"
	"resellerportal/internal/service"
	"resellerportal/pkg/pagination"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService service.AuditService
	auth         *middleware.Auth
}

func NewAuditHandler(auditService service.AuditService, auth *middleware.Auth) *AuditHandler {
	return &AuditHandler{auditService: auditService, auth: auth}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/audit-logs")
	group.Use(h.auth.Authenticate(), middleware.RequireCapability(authz.SystemSettings))
	{
		group.GET("", h.GetAuditLogs)
	}
}

// GetAuditLogs returns paginated records with the acting account resolved
// @Summary      Get audit logs
// @Description  Retrieves the audit trail of every mutation, newest first
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        page      query     int     false  "Page number (default 1)"
// @Param        limit     query     int     false  "Number of items per page (default 20)"
// @Param        action    query     string  false  "Action filter, e.g. REPORT_SALE"
// @Param        entityId  query     string  false  "Entity ID filter"
// @Success      200       {object}  response.Response{data=response.Page}
// @Failure      403       {object}  response.Response
// @Router       /audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	params := pagination.Parse(c)

	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), middleware.CurrentPrincipal(c), service.AuditLogFilter{
		Action:   c.Query("action"),
		EntityID: c.Query("entityId"),
		Paging:   params,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, logs, total, params)
}
