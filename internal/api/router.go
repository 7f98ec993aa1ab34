// Package api registers the HTTP routes and handlers.
package api

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts all API routes on the engine.
func RegisterRoutes(engine *gin.Engine, h *Handler) {
	api := engine.Group("/api")

	api.GET("/health", h.Health)

	sessions := api.Group("/sessions")
	sessions.GET("", h.ListSessions)
	sessions.POST("", h.CreateSession)
	sessions.GET("/:id", h.GetSession)
	sessions.GET("/:id/status", h.SessionStatus)
	sessions.PATCH("/:id/speakers", h.SwapSpeakers)
	sessions.POST("/:id/questions", h.CreateQuestion)
	sessions.GET("/:id/questions", h.ListQuestions)
}
