package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"partner-chat/internal/handlers"
	"partner-chat/internal/middleware"
	"partner-chat/internal/observability"
)

func setupRouter(d routerDeps) *gin.Engine {
	if d.cfg.Environment != "local" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// middlewares
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		otelgin.Middleware(d.cfg.Tracing.ServiceName),
		observability.HTTPMetricsMiddleware(),
		observability.RequestLogger(d.logger),
	)

	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.Static("/files", d.cfg.Files.RootDir)
	router.GET("/ws/chats/:chat_id", d.chatWS.Handle)

	authMiddleware := middleware.AuthMiddleware(d.cfg.Auth.JWTSecret)
	sendLimit := middleware.RateLimit(middleware.NewUserLimiter(d.cfg.RateLimit.RPS, d.cfg.RateLimit.Burst))

	api := router.Group("/", authMiddleware)
	api.GET("/chats", d.chats.ListChats)
	api.POST("/chats/start", d.chats.StartChat)
	api.GET("/chats/:chat_id/messages", d.chats.ListMessages)
	api.POST("/chats/:chat_id/messages", sendLimit, d.chats.PostMessage)
	api.POST("/chats/:chat_id/read", d.chats.MarkRead)
	api.PATCH("/messages/:message_id", d.chats.EditMessage)
	api.DELETE("/messages/:message_id", d.chats.DeleteMessage)
	api.POST("/attachments", sendLimit, d.attachments.Upload)

	handlers.RegisterDebugRoutes(api, d.rooms, d.cfg.Debug)
	return router
}
