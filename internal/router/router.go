// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/blockmart/blockmart-backend/internal/config"
	"github.com/blockmart/blockmart-backend/internal/handlers"
	"github.com/blockmart/blockmart-backend/internal/middleware"
	"github.com/blockmart/blockmart-backend/internal/services"
	"github.com/blockmart/blockmart-backend/internal/utils"
)

func Initialize(db *gorm.DB, cfg *config.Config) *gin.Engine {
	// Initialize services
	storageService, err := services.NewStorageService(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize storage service")
	}
	gateway := services.NewStripeGateway(cfg)

	authService := services.NewAuthService(db, cfg)
	blockService := services.NewBlockService(db, storageService)
	licenseService := services.NewLicenseService(db, storageService)
	purchaseService := services.NewPurchaseService(db, cfg, gateway, licenseService)
	payoutService := services.NewPayoutService(db, gateway)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	blockHandler := handlers.NewBlockHandler(blockService, storageService)
	purchaseHandler := handlers.NewPurchaseHandler(purchaseService, licenseService)
	webhookHandler := handlers.NewWebhookHandler(cfg, purchaseService, payoutService)
	adminHandler := handlers.NewAdminHandler(db, purchaseService, payoutService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.CORS([]string{cfg.Frontend.BaseURL}))
	r.Use(middleware.GeneralRateLimit())
	r.Use(middleware.AuditLogMiddleware(db))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Authentication routes
		auth := v1.Group("/auth")
		auth.Use(middleware.AuthRateLimit())
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.GET("/me", middleware.AuthRequired(), authHandler.GetProfile)
		}

		// Catalog routes
		blocks := v1.Group("/blocks")
		{
			blocks.GET("", middleware.OptionalAuth(), blockHandler.SearchBlocks)
			blocks.GET("/:id", middleware.OptionalAuth(), blockHandler.GetBlock)

			// Creator routes
			protected := blocks.Group("")
			protected.Use(middleware.AuthRequired(), middleware.CreatorRequired())
			{
				protected.POST("", blockHandler.CreateBlock)
				protected.PUT("/:id", blockHandler.UpdateBlock)
				protected.POST("/:id/bundle", middleware.UploadRateLimit(), blockHandler.UploadBundle)
			}
		}

		// Checkout
		v1.POST("/checkout", middleware.AuthRequired(), middleware.CheckoutRateLimit(), purchaseHandler.CreateCheckout)

		// Purchase routes
		purchases := v1.Group("/purchases")
		purchases.Use(middleware.AuthRequired())
		{
			purchases.GET("", purchaseHandler.GetMyPurchases)
			purchases.GET("/:id", purchaseHandler.GetPurchase)
		}

		// Buyer/creator self-service routes
		me := v1.Group("/me")
		me.Use(middleware.AuthRequired())
		{
			me.GET("/purchases", purchaseHandler.GetMyPurchases)
			me.GET("/licenses", purchaseHandler.GetMyLicenses)
			me.GET("/licenses/:id/download", purchaseHandler.GetLicenseDownload)
			me.GET("/blocks", middleware.CreatorRequired(), blockHandler.GetMyBlocks)
		}

		// Payment provider webhooks (signature-verified, no session auth)
		webhooks := v1.Group("/webhooks")
		{
			webhooks.POST("/stripe", webhookHandler.HandleStripeWebhook)
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
		{
			admin.POST("/purchases/:id/refund", adminHandler.ProcessRefund)
			admin.POST("/purchases/:id/payout", adminHandler.RetryPayout)
			admin.GET("/payouts", adminHandler.GetPayouts)
			admin.PUT("/blocks/:id/status", adminHandler.UpdateBlockStatus)
		}
	}

	return r
}
