package httpapi

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/glasswallet/router/internal/config"
	"github.com/glasswallet/router/internal/http/handlers"
	"github.com/glasswallet/router/internal/http/middleware"
	"github.com/glasswallet/router/internal/service"

	_ "github.com/glasswallet/router/docs"
)

// Deps are the services the HTTP layer dispatches to.
type Deps struct {
	Source    service.LeadSource
	Router    *service.Router
	Processor *service.ProcessingService
}

// Router builds the gin engine. ctx bounds background goroutines owned by
// middleware such as the rate limiter.
func Router(ctx context.Context, cfg config.Config, deps Deps, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.MaxMultipartMemory = cfg.MaxUploadSizeMB << 20

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.AdminKeyHeader, middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" || cfg.CORSAllowed == "" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Source:    deps.Source,
		Router:    deps.Router,
		Processor: deps.Processor,
		Validator: validator.New(),
		Logger:    logger,
	}

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.GET("/agents", h.AgentsList)
		api.GET("/agents/available", h.AgentsAvailable)
		api.GET("/agents/:id", h.AgentDetails)
		api.POST("/route", middleware.RateLimit(ctx, cfg.RateLimitPerMin, cfg.RateLimitBurst), h.RouteLead)
		api.GET("/rules", h.RulesList)
		api.GET("/routing/stats", h.RoutingStats)
		api.GET("/leads", h.LeadsList)
		api.GET("/leads/:id", h.LeadDetails)
		api.GET("/runs/latest", h.RunsLatest)
	}

	admin := api.Group("")
	admin.Use(middleware.AdminKey(cfg.AdminKey))
	{
		admin.POST("/agents", h.AgentUpsert)
		admin.DELETE("/agents/:id", h.AgentDelete)
		admin.PATCH("/agents/:id/availability", h.AgentAvailability)
		admin.POST("/import", h.Import)
		admin.POST("/process", h.Process)
		admin.POST("/debug/pipeline", h.DebugPipeline)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
