package http

import (
	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/hostsync/internal/api/middleware"
)

// RegisterRoutes mounts every REST endpoint on r. Request bodies must be
// JSON; routes that can change the host also run the mutation middleware.
func (h *Handlers) RegisterRoutes(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)

	r.GET("/services", h.ListServices)
	r.GET("/kernel", h.KernelInfo)
	r.GET("/locale", h.LocaleStatus)

	posts := r.Group("", middleware.RequireJSON())
	posts.POST("/services/discover", h.DiscoverServices)

	mutations := posts.Group("", h.mutationMiddleware...)
	mutations.POST("/services/execute", h.ExecuteService)
	mutations.POST("/kernel/install", h.InstallKernel)
	mutations.POST("/kernel/remove", h.RemoveKernel)
	mutations.POST("/locale", h.ApplyLocale)
	mutations.POST("/locale/generate", h.GenerateLocale)
}
