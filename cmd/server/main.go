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

	"order-agent/config"
	"order-agent/internal/agent"
	"order-agent/internal/api"
	"order-agent/internal/broker"
	"order-agent/internal/catalog"
	"order-agent/internal/delivery"
	"order-agent/internal/notify"
	"order-agent/internal/order"
	"order-agent/internal/parser"
	"order-agent/internal/payment"
	"order-agent/internal/redisclient"
	"order-agent/internal/resolver"
	"order-agent/internal/store"
	"order-agent/internal/util"
	"order-agent/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting order agent")

	tp, err := util.InitTracer("order-agent", cfg.Observ.JaegerEndpoint)
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

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrders)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)
	orderStore := store.NewOrderStore(db)

	lookup := catalog.NewLookup(db, cfg.Matching, util.NamedLogger("catalog"))
	itemParser := parser.New(cfg.Matching, util.NamedLogger("parser"))
	itemResolver := resolver.New(lookup, itemParser, cfg.Matching, util.NamedLogger("resolver"))
	accumulator := order.NewAccumulator(orderStore, eventPublisher, util.NamedLogger("orders"))
	quoter := delivery.NewQuoter(cfg.Delivery, cfg.Maps, util.NamedLogger("delivery"))
	paymentClient := payment.NewClient(cfg.Payment, util.NamedLogger("payment"))
	whatsapp := notify.NewWhatsAppClient(cfg.Waha, util.NamedLogger("whatsapp"))

	tools := agent.NewTools(itemResolver, accumulator, quoter, paymentClient, db, redisClient, util.NamedLogger("tools"))
	webhookProcessor := payment.NewWebhookProcessor(accumulator, db, util.NamedLogger("webhook"))

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	notifyConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrders, cfg.Kafka.ConsumerGroup)
	notificationWorker := worker.NewNotificationWorker(notifyConsumer, whatsapp, db)
	go func() {
		if err := notificationWorker.Start(workerCtx); err != nil {
			log.Printf("Notification worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(tools, accumulator, webhookProcessor)
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
	notificationWorker.Stop()

	log.Println("Server exited")
}
