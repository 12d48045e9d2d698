package handler

import (
	"errors"
	"net/http"

	"resellerportal/internal/apperr"
	"resellerportal/pkg/pagination"
	"resellerportal/pkg/response"

	"github.com/gin-gonic/gin"
)

// respondError translates a service error into the response envelope.
func respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		message = "internal server error"
	}
	c.JSON(status, response.ErrorWithCode(status, apperr.KindOf(err).String(), message))
}

// bindJSON decodes the body and writes a 400 on failure.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			respondError(c, err)
			return false
		}
		c.JSON(http.StatusBadRequest, response.ErrorWithCode(http.StatusBadRequest,
			apperr.KindValidation.String(), "Invalid request payload: "+err.Error()))
		return false
	}
	return true
}

func respondPage(c *gin.Context, items interface{}, total int64, params pagination.Params) {
	c.JSON(http.StatusOK, response.Success(http.StatusOK, response.Page{
		Items: items,
		Total: total,
		Page:  params.Page,
		Limit: params.Limit,
	}))
}
