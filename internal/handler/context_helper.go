package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/drtc-peru/tramite-api/internal/middleware"
	"github.com/drtc-peru/tramite-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// pageMeta mirrors the repository paging normalization so the envelope
// reports the page actually served.
func pageMeta(page, size, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 200 {
		size = 20
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}
