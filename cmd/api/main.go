package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"lulacoin-miner-backend/internal/clock"
	"lulacoin-miner-backend/internal/config"
	"lulacoin-miner-backend/internal/handlers"
	"lulacoin-miner-backend/internal/middleware"
	"lulacoin-miner-backend/internal/models"
	"lulacoin-miner-backend/internal/repository"
	"lulacoin-miner-backend/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := clock.RealClock{}

	redisService, err := services.NewRedisService(cfg, clk)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisService.Close()

	var archive services.MatchArchive = repository.NopArchive{}
	if cfg.DatabaseURL != "" {
		db, err := repository.Open(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		matchArchive := repository.NewMatchArchive(db)
		if err := matchArchive.Migrate(); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
		archive = matchArchive
	} else {
		logger.Info("DATABASE_URL not set, match archive disabled")
	}

	jwtService := services.NewJWTService(cfg.JWTSecret, cfg.JWTTTL, clk)
	catalog := models.DefaultCatalog()

	hub := handlers.NewWebSocketHub(logger)
	go hub.Run(ctx)

	mining := services.NewMiningService(redisService, catalog, cfg.Economy, hub, logger)
	matches := services.NewMatchService(redisService, archive, hub, logger)
	queue := services.NewMatchmakingQueue(redisService, mining, matches, cfg.Economy, clk, hub, logger)

	scheduler, err := services.NewScheduler(queue, matches, clk, services.SweepConfig{
		Interval:         cfg.SweepInterval,
		QueueEntryTTL:    cfg.QueueEntryTTL,
		MatchIdleTimeout: cfg.MatchIdleTimeout,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create scheduler", zap.Error(err))
	}
	if err := scheduler.Start(); err != nil {
		logger.Fatal("Failed to start scheduler", zap.Error(err))
	}

	gameHandler := handlers.NewGameHandler(mining, catalog, logger)
	damasHandler := handlers.NewDamasHandler(queue, matches, archive, logger)
	wsHandler := handlers.NewWebSocketHandler(hub, mining, logger)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	router.GET("/health", func(c *gin.Context) {
		if err := redisService.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "redis": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/api/ranking/top", gameHandler.GetRanking)
	router.GET("/api/game/catalog", gameHandler.GetCatalog)

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(jwtService), middleware.RateLimitMiddleware(redisService, logger))
	{
		protected.GET("/ws", wsHandler.HandleWebSocket)
		protected.GET("/ledger/transactions", gameHandler.GetTransactions)

		game := protected.Group("/game")
		{
			game.GET("/state", gameHandler.GetState)
			game.POST("/buy-item", gameHandler.BuyItem)
			game.POST("/buy-room", gameHandler.BuyRoom)
			game.POST("/place-rack", gameHandler.PlaceRack)
			game.POST("/remove-rack", gameHandler.RemoveRack)
			game.POST("/place-unit", gameHandler.PlaceUnit)
			game.POST("/remove-unit", gameHandler.RemoveUnit)
			game.POST("/recharge", gameHandler.Recharge)
		}

		fazenda := protected.Group("/fazenda")
		{
			fazenda.POST("/buy-land", gameHandler.BuyLand)
		}

		damas := protected.Group("/damas")
		{
			damas.POST("/matchmaking/join", damasHandler.JoinQueue)
			damas.GET("/matchmaking/status", damasHandler.QueueStatus)
			damas.POST("/matchmaking/leave", damasHandler.LeaveQueue)
			damas.GET("/game/:id", damasHandler.GetMatch)
			damas.POST("/game/:id/move", damasHandler.Move)
			damas.POST("/game/:id/emoji", damasHandler.SendEmoji)
			damas.GET("/history", damasHandler.GetHistory)
			damas.GET("/stats", damasHandler.GetStats)
		}
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
	if err := scheduler.Shutdown(); err != nil {
		logger.Error("Scheduler shutdown failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
