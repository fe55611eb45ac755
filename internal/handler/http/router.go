package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nghiemng0310/nail/internal/handler/middleware"
	"github.com/nghiemng0310/nail/internal/infrastructure/storage"
	"github.com/nghiemng0310/nail/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterOptions struct {
	// FilesDir is served under /files when local storage is in use.
	FilesDir string
	Metrics  *metrics.GalleryMetrics
	Likes    *middleware.IPRateLimiter
}

func NewRouter(h *ImageHandler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(middleware.ErrorHandlerMiddleware())
	r.Use(middleware.LoggerMiddleware(opts.Metrics))
	r.Use(middleware.CORSMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Metrics.Registry(), promhttp.HandlerOpts{})))
	}
	if opts.FilesDir != "" {
		r.Static(storage.FilesRoute, opts.FilesDir)
	}

	var like []gin.HandlerFunc
	if opts.Likes != nil {
		like = append(like, middleware.RateLimitMiddleware(opts.Likes))
	}
	h.RegisterRoutes(r, like...)
	return r
}
