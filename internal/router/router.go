package router

import (
	"net/http"
	"time"

	"foodval-go/internal/config"
	"foodval-go/internal/handlers"
	"foodval-go/internal/runner"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"
	"go.uber.org/zap"
)

const sessionCookieName = "foodval_session"

func keyFunc(c *gin.Context) string {
	return c.ClientIP()
}

func errorHandler(c *gin.Context, info ratelimit.Info) {
	c.String(http.StatusTooManyRequests, "Too many requests. Try again in "+time.Until(info.ResetTime).Round(time.Second).String())
}

// Setup builds the HTTP surface over the live session registry.
func Setup(log *zap.Logger, conf *config.Config, registry *runner.Registry) *gin.Engine {
	// Set up a new Gin router, add recovery middleware and request logging.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(log))

	// The cookie lasts for the browser session; idle runs are expired by the janitor.
	store := cookie.NewStore([]byte(conf.Server.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   conf.Server.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	router.Use(sessions.Sessions(sessionCookieName, store))

	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
	})
	router.Use(func(c *gin.Context) {
		err := secureMiddleware.Process(c.Writer, c.Request)
		if err != nil {
			c.Abort()
			return
		}
	})

	router.Use(NonceMiddleware())
	router.Use(RunLoader(log, registry))

	router.Static("/assets", conf.Experiment.AssetsDir)
	router.Static("/images", conf.Experiment.ImageRoot)

	experimentHandler := handlers.NewExperimentHandler(log, registry)
	resultsHandler := handlers.NewResultsHandler(log)
	metricsHandler := handlers.NewMetricsHandler(log)

	rateLimitStore := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
		Rate:  time.Minute,
		Limit: 5,
	})
	limiter := ratelimit.RateLimiter(rateLimitStore, &ratelimit.Options{
		ErrorHandler: errorHandler,
		KeyFunc:      keyFunc,
	})

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": registry.Len()})
	})

	router.POST("/session", limiter, experimentHandler.Start)

	active := router.Group("/session")
	active.Use(RunRequired(), CSRFProtection())
	{
		active.GET("/view", experimentHandler.View)
		active.POST("/events", experimentHandler.Event)
		active.GET("/data.csv", resultsHandler.DownloadCSV)
		active.GET("/metrics", metricsHandler.SessionMetrics)
		active.GET("/results", resultsHandler.ShowResults)
	}

	return router
}
