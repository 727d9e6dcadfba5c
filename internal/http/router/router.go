package router

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/gigmarket-backend/internal/config"
	"github.com/ignatzorin/gigmarket-backend/internal/http/handlers"
	"github.com/ignatzorin/gigmarket-backend/internal/http/middleware"
	"github.com/ignatzorin/gigmarket-backend/internal/service"
)

func SetupRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	catalogHandler *handlers.CatalogHandler,
	orderHandler *handlers.OrderHandler,
	paymentHandler *handlers.PaymentHandler,
	notificationHandler *handlers.NotificationHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authRateLimit := middleware.RateLimitMiddleware(5, cfg.RateLimitPeriod)
	authGroup.Use(authRateLimit)
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
	}

	protectedAuth := api.Group("/auth")
	protectedAuth.Use(middleware.AuthMiddleware(tokenManager))
	{
		protectedAuth.POST("/logout", authHandler.Logout)
	}

	// Публичные маршруты
	api.GET("/services", catalogHandler.List)
	api.GET("/services/:id", middleware.UUIDValidator("id"), catalogHandler.Get)
	api.GET("/ws", wsHandler.Handle)

	// Уведомление платёжного шлюза. Подлинность подтверждается подписью, не токеном.
	api.POST("/payments/callback", paymentHandler.Callback)

	// Защищённые маршруты
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.POST("/services", catalogHandler.Create)
		protected.PATCH("/services/:id/active", middleware.UUIDValidator("id"), catalogHandler.SetActive)

		protected.POST("/orders", orderHandler.Create)
		protected.GET("/orders", orderHandler.List)
		protected.GET("/orders/:id", middleware.UUIDValidator("id"), orderHandler.Get)

		// Переходы жизненного цикла заказа
		protected.POST("/orders/:id/confirm", middleware.UUIDValidator("id"), orderHandler.Confirm)
		protected.POST("/orders/:id/start", middleware.UUIDValidator("id"), orderHandler.Start)
		protected.POST("/orders/:id/deliver", middleware.UUIDValidator("id"), orderHandler.Deliver)
		protected.POST("/orders/:id/revision", middleware.UUIDValidator("id"), orderHandler.RequestRevision)
		protected.POST("/orders/:id/approve", middleware.UUIDValidator("id"), orderHandler.Approve)
		protected.POST("/orders/:id/cancel/buyer", middleware.UUIDValidator("id"), orderHandler.CancelByBuyer)
		protected.POST("/orders/:id/cancel/seller", middleware.UUIDValidator("id"), orderHandler.CancelBySeller)

		protected.POST("/orders/:id/progress", middleware.UUIDValidator("id"), orderHandler.AddProgress)
		protected.GET("/orders/:id/progress", middleware.UUIDValidator("id"), orderHandler.ListProgress)
		protected.GET("/orders/:id/audit", middleware.UUIDValidator("id"), orderHandler.ListAudit)
		protected.GET("/orders/:id/escrow", middleware.UUIDValidator("id"), orderHandler.GetEscrow)

		protected.GET("/wallet/balance", paymentHandler.Balance)
		protected.GET("/wallet/transactions", paymentHandler.Transactions)

		protected.GET("/notifications", notificationHandler.List)
		protected.GET("/notifications/unread/count", notificationHandler.CountUnread)
		protected.POST("/notifications/:id/read", middleware.UUIDValidator("id"), notificationHandler.MarkAsRead)
		protected.POST("/notifications/read-all", notificationHandler.MarkAllAsRead)
	}

	return r
}
