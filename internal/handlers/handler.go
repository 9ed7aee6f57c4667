// Package handlers exposes the machine over HTTP: observation, the harvest
// override, telemetry and event history, and a live state websocket.
package handlers

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"greencure/internal/logger"
	"greencure/internal/service"
)

type Handler struct {
	services *service.Service
	log      *logger.Logger
}

// NewHandler returns a Handler. A nil log discards output.
func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{services: services, log: log.Named("http")}
}

// InitRoutes returns the router:
//
//	/health, /swagger/*, /ws
//	/auth/sign-up, /auth/sign-in
//	/api/v1/machine/{state,harvest}, /api/v1/telemetry, /api/v1/logs/  (bearer token)
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", h.health)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/ws", h.wsConnect)

	auth := router.Group("/auth")
	auth.POST("/sign-up", h.signUp)
	auth.POST("/sign-in", h.signIn)

	api := router.Group("/api/v1", h.userIdMiddleware)
	api.GET("/machine/state", h.getState)
	api.POST("/machine/harvest", h.toggleHarvest)
	api.GET("/telemetry", h.getTelemetry)
	api.GET("/logs/", h.getLogs)

	return router
}
