// Package server assembles the HTTP surface: middleware chain, CORS
// policy and route table.
package server

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yungbote/graphrag-backend/internal/handlers"
	"github.com/yungbote/graphrag-backend/internal/platform/envutil"
	"github.com/yungbote/graphrag-backend/internal/platform/logger"
)

type Handlers struct {
	Documents *handlers.DocumentHandler
	Query     *handlers.QueryHandler
	Graph     *handlers.GraphHandler
	Reset     *handlers.ResetHandler
	Health    *handlers.HealthHandler
}

func NewRouter(log *logger.Logger, h Handlers) *gin.Engine {
	if envutil.String("APP_ENV", "development") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(envutil.String("OTEL_SERVICE_NAME", "graphrag-backend")))
	r.Use(accessLog(log))
	r.Use(cors.New(corsConfig()))

	r.GET("/", h.Health.Health)
	r.GET("/health", h.Health.Health)

	r.POST("/upload", h.Documents.Upload)
	r.POST("/upload-json", h.Documents.UploadJSON)
	r.GET("/documents", h.Documents.List)
	r.DELETE("/documents", h.Documents.Delete)
	r.POST("/query", h.Query.Ask)
	r.GET("/graph-visualization", h.Graph.Visualization)
	r.GET("/graph-nodes", h.Graph.Nodes)
	r.GET("/vector-chunks", h.Graph.VectorChunks)
	r.POST("/reset-graph", h.Reset.Reset)

	return r
}

func corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	origins := envutil.String("CORS_ALLOWED_ORIGINS", "")
	if origins == "" {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = strings.Split(origins, ",")
	}
	cfg.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	cfg.MaxAge = 12 * time.Hour
	return cfg
}

func accessLog(log *logger.Logger) gin.HandlerFunc {
	accessLogger := log.With("component", "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		accessLogger.Info("Request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
		)
	}
}
