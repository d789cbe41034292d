package handler

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"staffdesk/pkg/logger"
	"staffdesk/pkg/metrics"
)

// Handlers собирает всё, что нужно маршрутизатору
type Handlers struct {
	Accounts   *AccountHandler
	Users      *UserHandler
	Roles      *RoleHandler
	Middleware *AuthMiddleware
}

// SetupRoutes настраивает все маршруты приложения с использованием Gin
func SetupRoutes(serviceName string, allowedOrigins []string, h Handlers) *gin.Engine {
	router := gin.New()

	// Recovery middleware для обработки panic
	router.Use(gin.Recovery())

	// JSON logging middleware для HTTP-запросов (ELK Stack)
	router.Use(logger.GinLoggerMiddleware())

	// Prometheus metrics middleware
	router.Use(metrics.GinPrometheusMiddleware(serviceName))

	// Cookie передаются только с явно разрешённых origin
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Content-Type", activeUserHeader},
		ExposeHeaders:    []string{"Allow"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": serviceName,
		})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authn := h.Middleware.Authenticate()

	auth := router.Group("/auth")
	{
		auth.POST("/signup", h.Accounts.Signup)
		auth.POST("/login", h.Accounts.Login)
		auth.GET("/activate/:uid/:token", h.Accounts.Activate)
		auth.POST("/password-reset", h.Accounts.RequestPasswordReset)
		auth.POST("/password-reset/:uid/:token", h.Accounts.ConfirmPasswordReset)
		auth.GET("/google", h.Accounts.GoogleLogin)
		auth.GET("/google/callback", h.Accounts.GoogleCallback)

		// refresh и logout работают по зашифрованной refresh cookie
		session := auth.Group("")
		session.Use(h.Middleware.RequireSession())
		{
			session.POST("/token/refresh", h.Accounts.RefreshToken)
			session.POST("/logout", h.Accounts.Logout)
		}

		auth.GET("/me", authn, h.Accounts.GetMe)
	}

	router.OPTIONS("/users", h.Users.Options)
	router.OPTIONS("/users/:id", h.Users.Options)

	users := router.Group("/users")
	users.Use(authn)
	{
		users.GET("", h.Users.ListUsers)
		users.POST("", h.Users.CreateUser)
		users.GET("/:id", h.Users.GetUser)
		users.PUT("/:id", h.Users.UpdateUser)
		users.PATCH("/:id", h.Users.UpdateUser)
		users.DELETE("/:id", h.Users.DeleteUser)
	}

	roles := router.Group("/roles")
	roles.Use(authn, h.Middleware.RequireSuperuser())
	{
		roles.GET("", h.Roles.ListRoles)
		roles.POST("", h.Roles.CreateRole)
		roles.GET("/:id", h.Roles.GetRole)
		roles.PUT("/:id", h.Roles.UpdateRole)
		roles.DELETE("/:id", h.Roles.DeleteRole)
	}

	return router
}
