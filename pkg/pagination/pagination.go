package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params is a validated page window. The zero value means the first default page.
type Params struct {
	Page  int
	Limit int
}

// New clamps page and limit into range.
func New(page, limit int) Params {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Params{Page: page, Limit: limit}
}

// Parse reads page and limit from the query string
func Parse(c *gin.Context) Params {
	page, _ := strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(DefaultPage)))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultLimit)))
	return New(page, limit)
}

func (p Params) Offset() int {
	p = New(p.Page, p.Limit)
	return (p.Page - 1) * p.Limit
}

// Paginate is a gorm scope: query.Scopes(params.Paginate).
func (p Params) Paginate(db *gorm.DB) *gorm.DB {
	p = New(p.Page, p.Limit)
	return db.Offset(p.Offset()).Limit(p.Limit)
}
