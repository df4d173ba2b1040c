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

	"funnel-service/config"
	"funnel-service/internal/api"
	"funnel-service/internal/broker"
	"funnel-service/internal/redisclient"
	"funnel-service/internal/service"
	"funnel-service/internal/store"
	"funnel-service/internal/util"
	"funnel-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting funnel service")

	tp, err := util.InitTracer("funnel-service", cfg.Observ.JaegerEndpoint)
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

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicFunnel)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	customerService := service.NewCustomerService(db, redisClient, eventPublisher, cfg.Business.ClaimLimit)
	opportunityService := service.NewOpportunityService(db, eventPublisher)
	quoteService := service.NewQuoteService(db, eventPublisher)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	reclaimWorker := worker.NewReclaimWorker(
		customerService,
		redisClient,
		time.Duration(cfg.Business.ReclaimIntervalMinutes)*time.Minute,
		cfg.Business.InactiveThresholdDays,
	)
	go func() {
		if err := reclaimWorker.Start(workerCtx); err != nil && err != context.Canceled {
			log.Printf("Reclaim worker error: %v", err)
		}
	}()

	cacheConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicFunnel, cfg.Kafka.ConsumerGroup)
	cacheWorker := worker.NewCacheWorker(cacheConsumer, redisClient)
	go func() {
		if err := cacheWorker.Start(workerCtx); err != nil && err != context.Canceled {
			log.Printf("Cache worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(customerService, opportunityService, quoteService)
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
	reclaimWorker.Stop()
	cacheWorker.Stop()

	log.Println("Server exited")
}
