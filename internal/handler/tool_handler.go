package handler

import (
	"net/http"

	"resellerportal/internal/authz"
	"resellerportal/internal/middleware"
	"resellerportal/internal/service"
	"resellerportal/pkg/response"

	"github.com/gin-gonic/gin"
)

type ToolHandler struct {
	toolService service.ToolService
	auth        *middleware.Auth
}

func NewToolHandler(toolService service.ToolService, auth *middleware.Auth) *ToolHandler {
	return &ToolHandler{toolService: toolService, auth: auth}
}

func (h *ToolHandler) RegisterRoutes(router *gin.RouterGroup) {
	tools := router.Group("/tools")
	tools.Use(h.auth.Authenticate(), middleware.RequireCapability(authz.ToolsPriceCalculator))
	{
		tools.POST("/price-calculator", h.CalculatePrice)
	}
}

// CalculatePrice previews profit and margin for a sale price
// @Summary      Price calculator
// @Tags         tools
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.PriceCalculationRequest  true  "Prices"
// @Success      200      {object}  response.Response{data=service.PriceCalculationResponse}
// @Failure      400      {object}  response.Response
// @Router       /tools/price-calculator [post]
func (h *ToolHandler) CalculatePrice(c *gin.Context) {
	var req service.PriceCalculationRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.toolService.CalculatePrice(c.Request.Context(), middleware.CurrentPrincipal(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}
