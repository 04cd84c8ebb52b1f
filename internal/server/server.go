package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"taskboard/internal/auth"
	"taskboard/internal/config"
	"taskboard/internal/handlers"
	"taskboard/internal/middleware"
	"taskboard/internal/service"
)

// Deps holds everything the HTTP surface needs.
type Deps struct {
	Config config.Config
	DB     *gorm.DB
	Redis  *redis.Client
	Tokens *auth.Tokens
	Users  *service.UserService
	Tasks  *service.TaskService
	Trash  *service.TrashService
	Import *service.ImportService
	Logger *slog.Logger
}

// NewRouter wires middleware and routes.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()

	// Global middleware stack (order matters!)
	r.Use(middleware.RequestLogger(d.Logger))
	r.Use(middleware.RecoveryWithLog(d.Logger))
	r.Use(cors.New(corsConfig(d.Config.AllowedOrigins)))

	if d.Config.RateLimitPerMinute > 0 {
		if d.Redis != nil {
			limiter := middleware.NewDistributedRateLimiter(d.Redis, d.Logger)
			r.Use(limiter.Middleware("api", middleware.RateLimit{
				Rate:    d.Config.RateLimitPerMinute,
				Window:  time.Minute,
				KeyFunc: middleware.IPKeyFunc,
			}))
		} else {
			perSecond := rate.Limit(float64(d.Config.RateLimitPerMinute) / 60.0)
			r.Use(middleware.RateLimiter(perSecond, max(d.Config.RateLimitBurst, 1), middleware.IPKeyFunc))
		}
	}

	r.GET("/health", healthHandler(d))
	r.GET("/ready", readinessHandler(d))

	api := r.Group("/api")

	authHandler := handlers.NewAuthHandler(d.Users, d.Tokens, d.Logger)
	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/signup", authHandler.Signup)
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.GET("/admins", authHandler.ListAdmins)

		authed := authRoutes.Group("", middleware.Auth(d.Tokens))
		authed.GET("/users", middleware.RequireAdmin(), authHandler.ListUsers)
		authed.POST("/telegram/link-code", authHandler.TelegramLinkCode)
	}

	taskHandler := handlers.NewTaskHandler(d.Tasks, d.Trash, d.Import, d.Logger)
	taskRoutes := api.Group("/tasks", middleware.Auth(d.Tokens))
	{
		taskRoutes.POST("", taskHandler.CreateTask)
		taskRoutes.GET("", taskHandler.GetTasks)
		taskRoutes.GET("/trash", taskHandler.GetTrash)
		taskRoutes.POST("/bulk-upload", middleware.RequireAdmin(), taskHandler.BulkUpload)
		taskRoutes.POST("/ai-suggest", taskHandler.SuggestTask)
		taskRoutes.GET("/:id", taskHandler.GetTaskByID)
		taskRoutes.PUT("/:id", taskHandler.UpdateTask)
		taskRoutes.DELETE("/:id", taskHandler.DeleteTask)
		taskRoutes.PATCH("/:id/restore", taskHandler.RestoreTask)
		taskRoutes.DELETE("/:id/permanent", taskHandler.PurgeTask)
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cfg
}

func healthHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		health := gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"service":   "taskboard",
		}

		sqlDB, err := d.DB.DB()
		if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			health["status"] = "unhealthy"
			health["database"] = "down"
			c.JSON(http.StatusServiceUnavailable, health)
			return
		}
		health["database"] = "up"

		if d.Redis != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := d.Redis.Ping(ctx).Err(); err != nil {
				health["redis"] = "down"
			} else {
				health["redis"] = "up"
			}
		}

		c.JSON(http.StatusOK, health)
	}
}

func readinessHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := d.DB.DB()
		if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"reason": "database not ready",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ready": true})
	}
}

// Run serves handler on addr until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
