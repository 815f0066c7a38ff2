package handlers

import (
	"hydroponics_controller/internal/logger"
	"hydroponics_controller/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), h.requestLatency)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/health", h.health)

	h.registerAPIRoutes(router)

	// Dashboard stream on the same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.GET("/state", h.getState)
		h.registerSettingsRoutes(api)
		h.registerControlRoutes(api)
		api.GET("/events", h.getEvents)
		api.GET("/readings", h.getReadings)
	}
}

func (h *Handler) registerSettingsRoutes(api *gin.RouterGroup) {
	settings := api.Group("/settings")
	{
		settings.GET("", h.getSettings)
		// Body example: {"pumpOnDuration":"900","lightsMode2":"off"}
		settings.POST("", h.updateSettings)
		settings.PATCH("", h.updateSettings)
	}
}

func (h *Handler) registerControlRoutes(api *gin.RouterGroup) {
	// Body example: {"mode":"on"}
	api.POST("/devices/:kind/:index/mode", h.setDeviceMode)
	api.POST("/water/fill", h.requestFill)
	// Body example: {"alarm":"timeout"}
	api.POST("/alarms/ack", h.acknowledgeAlarm)
}
