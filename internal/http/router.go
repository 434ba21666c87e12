package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	guidanceH *GuidanceHandler,
	feedbackH *FeedbackHandler,
	personalityH *PersonalityHandler,
	gatherer prometheus.Gatherer,
	operatorToken string,
) *gin.Engine {
	r := gin.New()

	r.Use(zapLoggerMiddleware(logger), gin.Recovery())

	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/", jsonContentTypeMiddleware())
	api.POST("/guidance", guidanceH.PostGuidance)
	api.POST("/feedback", feedbackH.PostFeedback)

	personality := api.Group("/personality")
	personality.GET("/settings", personalityH.GetSettings)
	personality.POST("/update", personalityH.UpdateSettings)
	personality.GET("/presets", personalityH.ListPresets)

	api.POST("/cache/flush", OperatorTokenMiddleware(operatorToken), guidanceH.FlushCache)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
