package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/fyp-supervision-api/internal/middleware"
	"github.com/noah-isme/fyp-supervision-api/internal/models"
)

func claimsFromContext(c *gin.Context) (*models.JWTClaims, bool) {
	value, ok := c.Get(middleware.ContextUserKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*models.JWTClaims)
	return claims, ok
}
