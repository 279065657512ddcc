package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stock-service/config"
	"stock-service/internal/api"
	"stock-service/internal/broker"
	"stock-service/internal/redisclient"
	"stock-service/internal/service"
	"stock-service/internal/store"
	"stock-service/internal/util"
	"stock-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting stock service")

	tp, err := util.InitTracer("stock-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicTransfer)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	sessionStore := redisclient.NewSessionStore(redisClient)
	sessionWriter := redisclient.NewDebouncedWriter(sessionStore, cfg.Business.PersistDebounce)
	defer sessionWriter.Close()

	ctx := context.Background()
	sessionState := sessionStore.Load(ctx)

	erpClient := service.NewERPClient(cfg.ERP.BaseURL, cfg.ERP.Timeout)
	recClient := service.NewRecommendClient(cfg.Recommender.BaseURL, cfg.Recommender.Timeout)

	// stagingService is both the staging manager and the dirty guard the
	// sync service consults, so it gets wired to syncService afterwards.
	stagingService := service.NewStagingService(db, db, eventPublisher, sessionWriter, nil, nil, sessionState)
	syncService := service.NewSyncService(erpClient, stagingService, eventPublisher)
	stagingService.AttachSync(syncService)

	normalizer := &service.Normalizer{}
	allocationService := service.NewAllocationService(syncService, recClient, db, cfg.Business.SourceDenylist)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	poller := worker.NewSyncPoller(syncService, cfg.ERP.SyncInterval)
	go poller.Start(workerCtx)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(syncService, normalizer, allocationService, stagingService, erpClient, db, cfg.Business.HistoryLimit)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()

	log.Println("Server exited")
}
