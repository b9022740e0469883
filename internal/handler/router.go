package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/section-allocator/internal/middleware"
	"github.com/noah-isme/section-allocator/internal/models"
)

// Routes groups the handlers and guards mounted by RegisterRoutes.
type Routes struct {
	APIPrefix   string
	Allocations *AllocationHandler
	Metrics     *MetricsHandler
	// Auth guards the allocation group; nil leaves it open.
	Auth gin.HandlerFunc
}

// RegisterRoutes mounts the observability endpoints at the root and the allocation API under
// the prefix.
func RegisterRoutes(r gin.IRouter, routes Routes) {
	if routes.Metrics != nil {
		r.GET("/health", routes.Metrics.Health)
		r.GET("/ready", routes.Metrics.Ready)
		r.GET("/metrics", routes.Metrics.Prometheus)
	}

	api := r.Group(routes.APIPrefix)
	if routes.Auth != nil {
		api.Use(routes.Auth)
	}
	operators := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleRegistrar)
	admins := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin)

	if routes.Metrics != nil {
		api.GET("/metrics/summary", operators, routes.Metrics.Summary)
	}
	if routes.Allocations != nil {
		allocations := api.Group("/allocations")
		allocations.POST("/generate", admins, routes.Allocations.Generate)
		allocations.POST("/reoptimize", operators, routes.Allocations.Reoptimize)
		allocations.GET("/jobs/:id", operators, routes.Allocations.Job)
		allocations.GET("/export", operators, routes.Allocations.Export)
	}
}
