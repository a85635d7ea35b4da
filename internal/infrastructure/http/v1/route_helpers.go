// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	appctx "provision/internal/core/context"
	"provision/internal/infrastructure/http/v1/middleware"
)

// CatalogRouteHandler defines the interface for catalog handlers.
// All catalog handlers must implement these methods.
type CatalogRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
	SetDeletionMark(c *gin.Context)
}

// RegisterCatalogRoutes registers standard CRUD routes for a catalog.
// Reads are open to every authenticated user; writes require the
// supervisor role (admins pass every role check).
func RegisterCatalogRoutes(group *gin.RouterGroup, handler CatalogRouteHandler) {
	supervisor := middleware.RequireRole(appctx.RoleSupervisor)

	group.GET("", handler.List)
	group.GET("/:id", handler.Get)
	group.POST("", supervisor, handler.Create)
	group.PUT("/:id", supervisor, handler.Update)
	group.DELETE("/:id", supervisor, handler.Delete)
	group.POST("/:id/deletion-mark", supervisor, handler.SetDeletionMark)
}
