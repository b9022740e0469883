package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/section-allocator/internal/middleware"
	"github.com/noah-isme/section-allocator/internal/models"
	"github.com/noah-isme/section-allocator/pkg/logger"
)

// currentOperator returns the authenticated operator ID, or "" when the route is unauthenticated.
func currentOperator(c *gin.Context) string {
	if value, exists := c.Get(middleware.ContextUserKey); exists {
		if claims, ok := value.(*models.JWTClaims); ok && claims != nil {
			return claims.UserID
		}
	}
	return logger.OperatorFromContext(c.Request.Context())
}
