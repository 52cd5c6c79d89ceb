package app

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"coopregistry/portal-backend/internal/auth"
	"coopregistry/portal-backend/internal/catalog"
	"coopregistry/portal-backend/internal/cooperatives"
	"coopregistry/portal-backend/internal/dashboard"
	"coopregistry/portal-backend/internal/documents"
	"coopregistry/portal-backend/internal/metrics"
	"coopregistry/portal-backend/internal/users"
	"coopregistry/portal-backend/internal/views"
)

// Router builds the HTTP handler: public pages and directory, the
// authenticated /api/v1 back office, health and metrics.
func (a *App) Router() (*gin.Engine, error) {
	router := gin.New()
	router.Use(gin.Recovery(), accessLog(a.Logger), a.HTTPMetrics.GinMiddleware(), cors())

	started := time.Now()
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"uptime":    Uptime(started),
			"demo":      a.Config.Demo,
		})
	})
	router.GET("/metrics", metrics.Handler(a.Registry))

	pages, err := views.NewHandler(a.Cooperatives, a.Logger.Named("views"))
	if err != nil {
		return nil, err
	}
	pages.RegisterRoutes(router)

	coopHandler := cooperatives.NewHandler(a.Cooperatives, a.Logger)
	coopHandler.RegisterPublicRoutes(router.Group("/public"))

	authHandler := auth.NewHandler(a.Auth, a.Logger.Named("auth"))
	api := router.Group("/api/v1")
	auth.RegisterRoutes(api, authHandler)
	api.GET("/notifications/ws", authHandler.Middleware(), a.WebSocket.Handle(auth.Subject))

	secured := api.Group("", authHandler.Middleware())
	adminOnly := auth.RequireRole(users.RoleAdmin)
	{
		dashboard.NewHandler(a.Dashboard, a.Logger).RegisterRoutes(secured)
		catalog.NewHandler(a.Categories, a.Orgs, a.Logger).RegisterRoutes(secured, adminOnly)
		a.Users.RegisterRoutes(secured, adminOnly)
		secured.GET("/notifications/connections", adminOnly, func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"count":       a.WebSocket.GetConnectionCount(),
				"connections": a.WebSocket.GetConnectionInfo(),
			})
		})

		registry := secured.Group("", auth.RequireRole(users.RoleAdmin, users.RoleRegistrar))
		coopHandler.RegisterRoutes(registry)
		documents.NewHandler(a.Documents, a.Logger).RegisterRoutes(registry)
	}
	return router, nil
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, X-Document-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func accessLog(logger *zap.Logger) gin.HandlerFunc {
	logger = logger.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if subject := auth.Subject(c); subject != "" {
			fields = append(fields, zap.String("user", subject))
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error("request", fields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			logger.Warn("request", fields...)
		default:
			logger.Debug("request", fields...)
		}
	}
}
