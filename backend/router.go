package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func SetupRouter(s *Server) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(s.log), cors())

	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := router.Group("/api")
	api.POST("/register", s.RegisterAction)
	api.POST("/login", s.LoginAction)
	api.POST("/logout", s.LogoutAction)

	authed := api.Group("", s.authenticate)
	authed.GET("/validate", s.ValidateAction)
	authed.GET("/documents/:id", s.GetDocumentAction)
	authed.GET("/documents/:id/export", s.ExportDocumentAction)
	authed.POST("/documents/:id/import", s.ImportDocumentAction)

	router.GET("/ws", s.authenticate, s.ServeWs)

	return router
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("http")
	}
}
