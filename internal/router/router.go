package router

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/phms-engine/internal/middleware"
	"github.com/jwalitptl/phms-engine/pkg/metrics"
)

type Handler interface {
	RegisterRoutes(gin.IRouter)
}

type Config struct {
	RateLimit   rate.Limit
	RateBurst   int
	MaxBodySize int64
	Debug       bool
}

type Router struct {
	engine    *gin.Engine
	auth      *middleware.AuthMiddleware
	public    []Handler
	protected []Handler
	config    Config
}

// NewRouter mounts public handlers at the root and protected handlers under
// /api/v1 behind authentication and rate limiting.
func NewRouter(auth *middleware.AuthMiddleware, m *metrics.Metrics, config Config, public []Handler, protected []Handler) *Router {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = middleware.DefaultMaxBodySize
	}

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger(m),
		middleware.ErrorHandler(),
	)

	r := &Router{
		engine:    engine,
		auth:      auth,
		public:    public,
		protected: protected,
		config:    config,
	}
	r.setup()
	return r
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) setup() {
	for _, h := range r.public {
		h.RegisterRoutes(r.engine)
	}

	api := r.engine.Group("/api/v1")
	api.Use(
		middleware.SizeLimit(r.config.MaxBodySize),
		r.auth.Authenticate(),
	)
	if r.config.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  r.config.RateLimit,
			Burst: r.config.RateBurst,
		})
		api.Use(limiter.RateLimit())
	}

	for _, h := range r.protected {
		h.RegisterRoutes(api)
	}
}
