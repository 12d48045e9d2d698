package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestNew_Clamps(t *testing.T) {
	assert.Equal(t, Params{Page: 1, Limit: 20}, New(0, 0))
	assert.Equal(t, Params{Page: 3, Limit: 100}, New(3, 5000))
	assert.Equal(t, Params{Page: 1, Limit: 20}, New(-2, -1))
}

func TestParams_Offset(t *testing.T) {
	assert.Equal(t, 0, Params{}.Offset())
	assert.Equal(t, 20, New(3, 10).Offset())
}

func TestParse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/devices?page=2&limit=abc", nil)

	assert.Equal(t, Params{Page: 2, Limit: 20}, Parse(c))
}
