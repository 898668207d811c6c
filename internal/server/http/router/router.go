package router

import (
	"log/slog"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/polkiloo/plotcatalog/internal/config"
	"github.com/polkiloo/plotcatalog/internal/server/http/handlers"
	"github.com/polkiloo/plotcatalog/internal/server/http/middleware"
)

// Setup configures gin router with handlers and middleware.
func Setup(facade handlers.CatalogFacade, cfg *config.Config, logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	// Plot codes may contain "/"; clients send it as %2F and routing
	// matches on the escaped path.
	engine.UseRawPath = true
	engine.UnescapePathValues = true

	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.RequestLogger(logger))
	engine.Use(middleware.DecompressRequest())
	engine.Use(middleware.BodyLimit(cfg.MaxUploadBytes))
	engine.Use(gzip.Gzip(gzip.DefaultCompression))

	plotHandler := handlers.NewPlotHandler(facade)
	orderHandler := handlers.NewOrderHandler(facade)
	importHandler := handlers.NewImportHandler(facade)
	healthHandler := handlers.NewHealthHandler(facade)

	engine.GET("/health", healthHandler.Health)

	api := engine.Group("/api")
	api.GET("/plots", plotHandler.Search)
	api.GET("/plots/:id", plotHandler.Get)
	api.POST("/plots/:id/orders", orderHandler.Reserve)
	api.GET("/stats", plotHandler.Stats)
	api.GET("/exports/plots.xlsx", plotHandler.Export)

	api.GET("/orders", orderHandler.List)
	api.GET("/orders/:id", orderHandler.Get)
	api.POST("/orders/:id/approve", orderHandler.Approve)
	api.POST("/orders/:id/reject", orderHandler.Reject)

	api.POST("/imports", importHandler.Submit)
	api.GET("/imports", importHandler.List)
	api.GET("/imports/:dataset", importHandler.Get)

	return engine
}
