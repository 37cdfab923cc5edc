package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "collector/api/swagger" // swagger docs
	"collector/internal/config"
	"collector/internal/database"
	"collector/internal/handler"
	"collector/internal/middleware"
	"collector/internal/outbox"
	"collector/internal/repository"
	"collector/internal/service"
	"collector/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Data Collector API
// @version         1.0
// @description     Hierarchical submission and approval service.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	db, err := database.NewConnection(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Connected to PostgreSQL successfully.")

	queue, err := outbox.NewQueue(cfg.RedisURL, cfg.OutboxQueue)
	if err != nil {
		log.Fatalf("Redis connection failed: %v", err)
	}
	defer queue.Close()
	log.Println("Connected to Redis successfully.")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wsHub := websocket.NewHub()
	go wsHub.Run(ctx)

	// Repository -> Service -> Handler
	txManager := repository.NewTransactionManager(db)
	hierarchyRepo := repository.NewHierarchyRepository(db)
	accessRepo := repository.NewAccessRepository(db)
	formRepo := repository.NewFormRepository(db)
	userRepo := repository.NewUserRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	answerRepo := repository.NewAnswerRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	statisticsRepo := repository.NewStatisticsRepository(db)

	notifier := outbox.NewNotifier(queue)
	sink := outbox.NewSeedSink(queue)
	resolver := service.NewApproverResolver(hierarchyRepo, accessRepo, formRepo)

	submissionService := service.NewSubmissionService(service.SubmissionDeps{
		TxManager:   txManager,
		Submissions: submissionRepo,
		Answers:     answerRepo,
		Forms:       formRepo,
		Users:       userRepo,
		Hierarchy:   hierarchyRepo,
		Access:      accessRepo,
		Audit:       auditRepo,
		Resolver:    resolver,
		Sink:        sink,
		Notifier:    notifier,
	})
	answerService := service.NewAnswerService(service.AnswerDeps{
		TxManager:   txManager,
		Submissions: submissionRepo,
		Answers:     answerRepo,
		Forms:       formRepo,
		Batches:     batchRepo,
		Hierarchy:   hierarchyRepo,
		Access:      accessRepo,
		Audit:       auditRepo,
		Sink:        sink,
		Notifier:    notifier,
	})
	batchService := service.NewBatchService(service.BatchDeps{
		TxManager:   txManager,
		Batches:     batchRepo,
		Submissions: submissionRepo,
		Users:       userRepo,
		Hierarchy:   hierarchyRepo,
		Access:      accessRepo,
		Audit:       auditRepo,
		Resolver:    resolver,
		Notifier:    notifier,
		Sink:        sink,
	})
	seedService := service.NewSeedService(txManager, submissionRepo, auditRepo, notifier)
	auditService := service.NewAuditService(auditRepo)
	userService := service.NewUserService(userRepo)
	statisticsService := service.NewStatisticsService(statisticsRepo)

	worker := outbox.NewWorker(queue, outbox.WorkerConfig{
		MaxAttempts: cfg.OutboxMaxAttempts,
		PollTimeout: cfg.OutboxPollTimeout,
		DoneTTL:     cfg.OutboxDoneTTL,
	})
	worker.Handle(outbox.KindNotify, outbox.NotifyHandler(wsHub))
	worker.Handle(outbox.KindSeed, outbox.SeedHandler(seedService))
	go worker.Run(ctx)

	auth := middleware.NewAuth(cfg.JWTKey())
	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, cfg.JWTKey())
	})

	api := router.Group("")
	handler.NewSubmissionHandler(submissionService, answerService, auth).RegisterRoutes(api)
	handler.NewBatchHandler(batchService, auth).RegisterRoutes(api)
	handler.NewApprovalHandler(batchService, auth).RegisterRoutes(api)
	handler.NewAuditHandler(auditService, auth).RegisterRoutes(api)
	handler.NewUserHandler(userService, auth).RegisterRoutes(api)
	handler.NewStatisticsHandler(statisticsService, auth).RegisterRoutes(api)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	go func() {
		log.Printf("Server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown failed: %v", err)
	}
}
