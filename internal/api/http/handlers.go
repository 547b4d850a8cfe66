package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/hostsync/internal/api/middleware"
	"github.com/GriffinCanCode/hostsync/internal/domain/service"
	hostlocale "github.com/GriffinCanCode/hostsync/internal/host/locale"
	"github.com/GriffinCanCode/hostsync/internal/infrastructure/logging"
	"github.com/GriffinCanCode/hostsync/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/hostsync/internal/providers/kernel"
	"github.com/GriffinCanCode/hostsync/internal/shared/types"
)

const maxDiscoverResults = 10

// LocaleService is the locale side of the host
type LocaleService interface {
	Status(ctx context.Context) (types.LocaleStatus, error)
	ApplyLocale(ctx context.Context, cfg types.LocaleConfiguration) (types.MutationOutcome, error)
	GenerateLocale(ctx context.Context, id string) (types.MutationOutcome, error)
}

// KernelService is the kernel side of the host
type KernelService interface {
	Info(ctx context.Context) (types.KernelInfo, error)
	Install(ctx context.Context, pkg string) (types.MutationOutcome, error)
	Remove(ctx context.Context, pkg string) (types.MutationOutcome, error)
}

// Counter reports a number of attached observers
type Counter interface {
	Len() int
}

// Handlers contains HTTP request handlers
type Handlers struct {
	registry  *service.Registry
	locale    LocaleService
	kernel    KernelService
	observers Counter
	streams   Counter
	metrics   *monitoring.Metrics
	logger    *zap.Logger

	mutationMiddleware []gin.HandlerFunc
}

// NewHandlers creates a new handlers instance
func NewHandlers(registry *service.Registry, locale LocaleService, kernel KernelService, observers, streams Counter) *Handlers {
	return &Handlers{
		registry:  registry,
		locale:    locale,
		kernel:    kernel,
		observers: observers,
		streams:   streams,
		logger:    zap.NewNop(),
	}
}

// WithMetrics exposes the metrics snapshot on /health
func (h *Handlers) WithMetrics(m *monitoring.Metrics) *Handlers {
	h.metrics = m
	return h
}

// WithLogger sets the logger
func (h *Handlers) WithLogger(l *zap.Logger) *Handlers {
	h.logger = logging.OrNop(l).Named("api")
	return h
}

// WithMutationMiddleware runs mw in front of every route that can change
// the host, tool execution included.
func (h *Handlers) WithMutationMiddleware(mw ...gin.HandlerFunc) *Handlers {
	h.mutationMiddleware = append(h.mutationMiddleware, mw...)
	return h
}

// Root handles the root endpoint
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "hostsync",
		"version": "0.1.0",
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	body := gin.H{
		"status":           "healthy",
		"service_registry": h.registry.Stats(),
		"observers":        count(h.observers),
		"streams":          count(h.streams),
	}
	if h.metrics != nil {
		body["metrics"] = h.metrics.GetSnapshot()
	}
	c.JSON(http.StatusOK, body)
}

// ListServices lists all available services
func (h *Handlers) ListServices(c *gin.Context) {
	var category *types.Category
	if raw := c.Query("category"); raw != "" {
		cat := types.Category(raw)
		switch cat {
		case types.CategoryKernel, types.CategoryLocale, types.CategorySystem:
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown category: " + raw})
			return
		}
		category = &cat
	}

	c.JSON(http.StatusOK, gin.H{
		"services": h.registry.List(category),
		"stats":    h.registry.Stats(),
	})
}

// DiscoverServices finds services relevant to a free-text query
func (h *Handlers) DiscoverServices(c *gin.Context) {
	var req types.DiscoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	limit := req.Limit
	if limit <= 0 || limit > maxDiscoverResults {
		limit = maxDiscoverResults
	}

	c.JSON(http.StatusOK, gin.H{
		"query":    req.Query,
		"services": h.registry.Discover(req.Query, limit),
	})
}

// ExecuteService executes a service tool
func (h *Handlers) ExecuteService(c *gin.Context) {
	var req types.ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	requestID := middleware.GetRequestID(c)
	appCtx := &types.Context{ClientID: req.ClientID}
	if requestID != "" {
		appCtx.RequestID = &requestID
	}

	result, err := h.registry.Execute(c.Request.Context(), req.ToolID, req.Params, appCtx)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// KernelInfo returns the current kernel snapshot
func (h *Handlers) KernelInfo(c *gin.Context) {
	info, err := h.kernel.Info(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// InstallKernel installs a kernel package
func (h *Handlers) InstallKernel(c *gin.Context) {
	h.packageMutation(c, h.kernel.Install)
}

// RemoveKernel removes a kernel package
func (h *Handlers) RemoveKernel(c *gin.Context) {
	h.packageMutation(c, h.kernel.Remove)
}

func (h *Handlers) packageMutation(c *gin.Context, fn func(context.Context, string) (types.MutationOutcome, error)) {
	var req types.PackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	out, err := fn(c.Request.Context(), strings.TrimSpace(req.Package))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// LocaleStatus returns the current locale snapshot
func (h *Handlers) LocaleStatus(c *gin.Context) {
	status, err := h.locale.Status(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// ApplyLocale persists locale category values
func (h *Handlers) ApplyLocale(c *gin.Context) {
	var cfg types.LocaleConfiguration
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	out, err := h.locale.ApplyLocale(c.Request.Context(), cfg)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// GenerateLocale enables and generates a locale
func (h *Handlers) GenerateLocale(c *gin.Context) {
	var req types.GenerateLocaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	out, err := h.locale.GenerateLocale(c.Request.Context(), req.Locale)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// fail maps rejected input to 400 and everything else to 500
func (h *Handlers) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case isValidation(err):
		status = http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	default:
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.Error(err),
		)
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": err.Error()})
}

func isValidation(err error) bool {
	for _, target := range []error{
		hostlocale.ErrNoCategories,
		hostlocale.ErrInvalidLocale,
		hostlocale.ErrLocaleNotFound,
		hostlocale.ErrManifestMalformed,
		kernel.ErrInvalidPackage,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func count(c Counter) int {
	if c == nil {
		return 0
	}
	return c.Len()
}
