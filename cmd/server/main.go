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

	"course-commerce/config"
	"course-commerce/internal/api"
	"course-commerce/internal/auth"
	"course-commerce/internal/broker"
	"course-commerce/internal/notify"
	"course-commerce/internal/redisclient"
	"course-commerce/internal/service"
	"course-commerce/internal/storage"
	"course-commerce/internal/store"
	"course-commerce/internal/util"
	"course-commerce/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting course commerce service")

	tp, err := util.InitTracer("course-commerce", cfg.Observ.JaegerEndpoint)
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

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	fileStorage, err := storage.NewLocalStorage(cfg.Storage.AttachmentDir)
	if err != nil {
		log.Fatalf("Failed to initialize attachment storage: %v", err)
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute)

	seatClient := service.NewSeatClient(db, redisClient)
	authService := service.NewAuthService(db, tokens)
	catalogService := service.NewCatalogService(db, seatClient, fileStorage)
	cartService := service.NewCartService(db)
	orderService := service.NewOrderService(db, eventPublisher, seatClient, cfg.Payment.Provider, cfg.Payment.RedirectBase)
	paymentService := service.NewPaymentService(db, redisClient, eventPublisher, seatClient, cfg.Payment.Provider, cfg.Payment.WebhookSecret)
	linkService := service.NewLinkService(db, fileStorage)
	enrollmentService := service.NewEnrollmentService(db, eventPublisher, seatClient, linkService)

	sender := notify.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
	notifier := notify.NewNotifier(db, sender)

	ctx := context.Background()
	if err := seatClient.SyncSeatsToRedis(ctx); err != nil {
		log.Printf("Failed to sync session seats to Redis: %v", err)
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	enrollmentConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
	enrollmentWorker := worker.NewEnrollmentWorker(enrollmentConsumer, enrollmentService)
	go func() {
		if err := enrollmentWorker.Start(workerCtx); err != nil {
			log.Printf("Enrollment worker error: %v", err)
		}
	}()

	notificationConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, "notification-group")
	notificationWorker := worker.NewNotificationWorker(notificationConsumer, notifier)
	go func() {
		if err := notificationWorker.Start(workerCtx); err != nil {
			log.Printf("Notification worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(
		authService,
		catalogService,
		cartService,
		orderService,
		paymentService,
		enrollmentService,
		linkService,
		notifier,
		tokens,
	)
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
	enrollmentWorker.Stop()
	notificationWorker.Stop()

	log.Println("Server exited")
}
