package http

import (
	"context"
	"net/http"
	"sort"
	"time"

	"leadcrm_backend/platform/httpkit"
	"leadcrm_backend/platform/metrics"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const readinessTimeout = 2 * time.Second

// NewRouter builds the gin engine and mounts every module.
func NewRouter(app *App) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestID())
	engine.Use(httpkit.RequestLogger(app.Logger))
	engine.Use(metrics.Middleware())
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(cors.New(corsConfig(app.Config)))

	engine.GET("/health", func(c *gin.Context) {
		httpkit.OK(c, gin.H{"status": "ok"})
	})
	engine.GET("/health/ready", readinessHandler(app.Health))
	engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	limiter := httpkit.NewWindowRateLimiter(app.Config.GetRateLimitWindow(), app.Config.GetRateLimitMax(), app.Logger)

	rc := &RouterContext{
		Engine:          engine,
		Public:          &engine.RouterGroup,
		API:             engine.Group("/api"),
		IntakeRateLimit: limiter.RateLimit(),
	}

	for _, m := range app.Modules {
		m.RegisterRoutes(rc)
		app.Logger.Debug("module registered", "module", m.Name())
	}

	return engine
}

func corsConfig(cfg RouterConfig) cors.Config {
	cc := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", httpkit.HeaderRequestID},
		ExposeHeaders: []string{httpkit.HeaderRequestID},
		MaxAge:        12 * time.Hour,
	}
	if cfg.GetCORSAllowAll() {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = cfg.GetCORSOrigins()
	}
	return cc
}

func readinessHandler(checks map[string]HealthChecker) gin.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
		defer cancel()

		status := make(map[string]string, len(names))
		ready := true
		for _, name := range names {
			if err := checks[name].Ping(ctx); err != nil {
				status[name] = err.Error()
				ready = false
				continue
			}
			status[name] = "ok"
		}

		if !ready {
			httpkit.JSON(c, http.StatusServiceUnavailable, gin.H{"status": "unavailable", "checks": status})
			return
		}
		httpkit.OK(c, gin.H{"status": "ready", "checks": status})
	}
}
