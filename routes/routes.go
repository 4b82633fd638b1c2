package routes

import (
	"net/http"
	"strings"
	"time"

	"socialapi/auth"
	"socialapi/handlers"
	"socialapi/middleware"

	"github.com/gin-contrib/cors"
	ginexpvar "github.com/gin-contrib/expvar"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Handler     *handlers.Handler
	Verifier    auth.Verifier
	Log         logrus.FieldLogger
	CORSOrigins []string
}

func SetupRouter(cfg Config) *gin.Engine {
	router := gin.New()
	router.Use(middleware.Recovery(cfg.Log))
	router.Use(middleware.RequestLogger(cfg.Log))

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", handlers.IdempotencyKeyHeader, middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Type", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	h := cfg.Handler

	// Public routes (no auth required)
	router.POST("/api/authenticate", h.Authenticate)

	protected := router.Group("/api")
	protected.Use(middleware.JWTAuthMiddleware(cfg.Verifier, cfg.Log))

	// Social graph
	protected.POST("/follow/:id", h.Follow)
	protected.POST("/unfollow/:id", h.Unfollow)
	protected.GET("/user", h.GetProfile)

	// Posts
	protected.POST("/posts", h.CreatePost)
	protected.DELETE("/posts/:id", h.DeletePost)
	protected.GET("/posts/:id", h.GetPost)
	protected.GET("/all_posts", h.GetMyPosts)
	protected.POST("/like/:id", h.LikePost)
	protected.POST("/unlike/:id", h.UnlikePost)

	// Comments
	protected.POST("/comment/:id", h.AddComment)

	protected.GET("/debug/vars", ginexpvar.Handler())

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Endpoint not found",
				"path":  c.Request.URL.Path,
			})
			return
		}
		c.String(http.StatusNotFound, "404 page not found")
	})

	return router
}
