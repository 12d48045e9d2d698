package handler

import (
	"net/http"
	"time"

	"resellerportal/internal/authz"
	"resellerportal/internal/middleware"
	"resellerportal/internal/model"
	"resellerportal/internal/service"
	"resellerportal/pkg/response"

	"github.com/gin-gonic/gin"
)

type StatisticsHandler struct {
	statisticsService service.StatisticsService
	auth              *middleware.Auth
}

func NewStatisticsHandler(statisticsService service.StatisticsService, auth *middleware.Auth) *StatisticsHandler {
	return &StatisticsHandler{statisticsService: statisticsService, auth: auth}
}

func (h *StatisticsHandler) RegisterRoutes(router *gin.RouterGroup) {
	statsGroup := router.Group("/statistics")
	statsGroup.Use(h.auth.Authenticate())
	{
		statsGroup.GET("", middleware.RequireCapability(authz.SystemStatistics), h.GetStatistics)
		statsGroup.GET("/mine", middleware.RequireKind(model.AccountKindReseller), h.GetMyStatistics)
	}
}

// @Summary      Get Dashboard Statistics
// @Description  Assignment counts by status, sales, minimum and profit totals and top resellers bounded by time
// @Tags         Statistics
// @Produce      json
// @Param        start_date query string false "Start Date (RFC3339)"
// @Param        end_date   query string false "End Date (RFC3339)"
// @Success      200 {object} response.Response{data=model.StatisticsResponse}
// @Failure      400 {object} response.Response "Invalid date format"
// @Failure      401 {object} response.Response "Unauthorized"
// @Failure      403 {object} response.Response "Forbidden"
// @Security     BearerAuth
// @Router       /statistics [get]
func (h *StatisticsHandler) GetStatistics(c *gin.Context) {
	startDate, endDate, ok := dateRange(c)
	if !ok {
		return
	}

	stats, err := h.statisticsService.GetStatistics(c.Request.Context(), middleware.CurrentPrincipal(c), startDate, endDate)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}

// @Summary      Get my statistics
// @Description  The calling reseller's assignment counts and sale totals
// @Tags         Statistics
// @Produce      json
// @Param        start_date query string false "Start Date (RFC3339)"
// @Param        end_date   query string false "End Date (RFC3339)"
// @Success      200 {object} response.Response{data=model.StatisticsResponse}
// @Failure      400 {object} response.Response "Invalid date format"
// @Security     BearerAuth
// @Router       /statistics/mine [get]
func (h *StatisticsHandler) GetMyStatistics(c *gin.Context) {
	startDate, endDate, ok := dateRange(c)
	if !ok {
		return
	}

	stats, err := h.statisticsService.GetMyStatistics(c.Request.Context(), middleware.CurrentPrincipal(c), startDate, endDate)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}

// dateRange defaults to the current month when no dates are provided
func dateRange(c *gin.Context) (time.Time, time.Time, bool) {
	var startDate, endDate time.Time
	var err error

	now := time.Now()
	if s := c.Query("start_date"); s == "" {
		startDate = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	} else if startDate, err = time.Parse(time.RFC3339, s); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid start_date format, expected RFC3339"))
		return startDate, endDate, false
	}

	if s := c.Query("end_date"); s == "" {
		endDate = now
	} else if endDate, err = time.Parse(time.RFC3339, s); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid end_date format, expected RFC3339"))
		return startDate, endDate, false
	}
	return startDate, endDate, true
}
