package main

import (
	"context" // context package is needed for Redis operations
	"log"     // log package is needed for logging

	"plura/internal/api"        // Custom package for API handlers
	"plura/internal/config"     // Custom package for configuration
	"plura/internal/funding"    // Funding engine and allocation book
	"plura/internal/ledger"     // Credit ledger
	"plura/internal/middleware" // Custom package for middleware
	"plura/internal/params"     // Parameter service

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
	"gorm.io/driver/mysql"         // MySQL driver for GORM
	"gorm.io/gorm"                 // GORM ORM library
)

// Main function to set up and run the server
func main() {
	cfg := config.LoadConfig() // Load configuration

	// Setup logger
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Setup Data Source Name (DSN) and connect to the database
	dsn := cfg.DBUser + ":" + cfg.DBPassword + "@tcp(" + cfg.DBHost + ":" + cfg.DBPort + ")/" + cfg.DBName + "?parseTime=true"
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
	}

	// Setup Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr, // Redis server address
		Password: cfg.RedisPass, // Redis password
		DB:       cfg.RedisDB,   // Redis database number
	})

	// Test Redis connection
	_, err = redisClient.Ping(context.Background()).Result()
	if err != nil {
		logrus.Fatalf("failed to connect to Redis: %v", err)
	}

	// Wire the credit core: parameters feed the ledger, the engine spans
	// ledger + allocation book + proposal totals in one transaction
	paramSvc := params.NewService(db)
	creditLedger := ledger.New(db, paramSvc)
	book := funding.NewAllocationBook(db)
	proposals := funding.NewProposalRepo(db)
	engine := funding.NewEngine(db, creditLedger, book, proposals)
	matchingFund := funding.NewMatchingFundService(db, paramSvc)

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup Gin
	r := gin.Default() // Gin router instance

	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}

	// Auth routes
	r.POST("/user", api.RegisterHandler(db))            // Registration endpoint
	r.GET("/user", api.LoginHandler(db, cfg.JWTSecret)) // Login endpoint

	// Credit routes (protected by JWT)
	creditGroup := r.Group("/credits")
	creditGroup.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret))
	creditGroup.GET("", api.GetCreditsHandler(creditLedger, redisClient))                         // Balance endpoint
	creditGroup.GET("/transactions", api.GetTransactionHistoryHandler(creditLedger, redisClient)) // Transaction history endpoint

	// Proposal routes (protected by JWT)
	proposalGroup := r.Group("/proposals")
	// Protect proposal routes with JWT middleware and inject Redis client into context
	proposalGroup.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret), func(c *gin.Context) {
		c.Set("redisClient", redisClient)
		c.Next()
	})
	proposalGroup.POST("", api.CreateProposalHandler(proposals, paramSvc))          // Create proposal endpoint
	proposalGroup.GET("", api.ListProposalsHandler(proposals, book, redisClient))   // List proposals endpoint
	proposalGroup.GET("/mine", api.MyProposalsHandler(proposals))                   // My proposals endpoint
	proposalGroup.GET("/:id", api.GetProposalHandler(proposals, book, redisClient)) // Proposal details endpoint
	proposalGroup.PUT("/:id", api.UpdateProposalHandler(proposals, db))             // Update proposal endpoint
	proposalGroup.POST("/:id/allocate", api.AllocateHandler(engine, redisClient))   // Allocate credits endpoint

	// Admin routes (protected, admin only)
	adminGroup := r.Group("/admin")
	// Protect admin routes with JWT and AdminOnly middleware
	adminGroup.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret), middleware.AdminOnlyMiddleware(db))
	adminGroup.GET("/parameters", api.ListParametersHandler(paramSvc))              // List parameters endpoint
	adminGroup.PUT("/parameters", api.UpdateParameterHandler(paramSvc))             // Update parameter endpoint
	adminGroup.GET("/matching-fund", api.GetMatchingFundHandler(matchingFund))      // Matching fund endpoint
	adminGroup.POST("/matching-fund", api.AddMatchingFundHandler(matchingFund))     // Matching fund top-up endpoint
	adminGroup.POST("/adjust", api.AdjustCreditsHandler(creditLedger, redisClient)) // Credit adjustment endpoint
	adminGroup.GET("/transactions", api.ListTransactionsHandler(db, redisClient))   // List transactions endpoint

	log.Println("Server running on " + cfg.AppPort) // Log server start
	r.Run(":" + cfg.AppPort)                        // Start the server on port cfg.AppPort
}
