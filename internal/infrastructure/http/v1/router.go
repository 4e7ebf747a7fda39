// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sdmox/internal/domain/auth"
	"sdmox/internal/domain/orgsync"
	"sdmox/internal/infrastructure/http/v1/handlers"
	"sdmox/internal/infrastructure/http/v1/middleware"
	"sdmox/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	Logger *logger.Logger

	// Service runs unit operations.
	Service orgsync.Interface

	// Journal enables the journal endpoints when set.
	Journal handlers.JournalReader

	// Validator enables bearer authentication when set.
	Validator middleware.TokenValidator

	// Checks run on /health/ready.
	Checks map[string]handlers.Check

	// Gatherer backs /metrics when set.
	Gatherer prometheus.Gatherer
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Recovery sits inside ErrorHandler so recovered panics are rendered,
	// and ErrorHandler inside Logger so the logged status is final.
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Recovery())

	healthHandler := handlers.NewHealthHandler(cfg.Checks)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	base := handlers.NewBaseHandler()
	api := router.Group("/api/v1")
	if cfg.Validator != nil {
		api.Use(middleware.Auth(cfg.Validator))
	}

	units := api.Group("/units")
	if cfg.Validator != nil {
		units.Use(middleware.RequireRole(auth.RoleOperator))
	}
	handlers.NewUnitHandler(base, cfg.Service).RegisterRoutes(units)

	if cfg.Journal != nil {
		journal := api.Group("/journal")
		if cfg.Validator != nil {
			journal.Use(middleware.RequireRole(auth.RoleOperator, auth.RoleViewer))
		}
		handlers.NewJournalHandler(base, cfg.Journal).RegisterRoutes(journal)
	}

	return router
}
