package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"auctionhouse/internal/auction"
	auctionapi "auctionhouse/internal/auction/api"
	"auctionhouse/internal/auction/cache"
	auctiondb "auctionhouse/internal/auction/db"
	"auctionhouse/internal/config"
	"auctionhouse/internal/database/migrations"
	"auctionhouse/internal/logger"
	"auctionhouse/internal/notify"
	"auctionhouse/internal/order"
	orderapi "auctionhouse/internal/order/api"
	orderdb "auctionhouse/internal/order/db"
	"auctionhouse/internal/payment"
	"auctionhouse/internal/payment/storage"
	"auctionhouse/internal/payment/webhook"
	"auctionhouse/internal/scheduler"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	log := logger.NewLogger()
	defer log.Close()

	// --- PostgreSQL Setup ---
	connector := pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN()))
	sqldb := sql.OpenDB(connector)
	defer sqldb.Close()

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	if err := sqldb.Ping(); err != nil {
		log.Fatal("STARTUP", fmt.Sprintf("Failed to connect to Postgres: %v", err))
	}
	log.Info("STARTUP", "Connected to PostgreSQL")

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	// --- Schema Migrations ---
	migrateOpts := migrations.DefaultOptions()
	if migrateOpts.AutoMigrate {
		runner := migrations.NewRunner(bunDB, migrateOpts)
		if err := runner.RunMigrations(); err != nil {
			log.Fatal("STARTUP", fmt.Sprintf("Migrations failed: %v", err))
		}
		log.Info("STARTUP", "Database schema is up to date")
	}

	// --- Redis Setup ---
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("STARTUP", fmt.Sprintf("Failed to connect to Redis: %v", err))
	}
	log.Info("STARTUP", "Connected to Redis")
	statsCache := cache.NewStatsCache(redisClient, 30*time.Second, log)

	// --- Kafka Notifier ---
	var notifier notify.Notifier = notify.Discard{}
	if cfg.Kafka.Enabled {
		kafkaNotifier := notify.NewKafkaNotifier(cfg.Kafka.Brokers, cfg.Kafka.NotificationsTopic, log)
		defer kafkaNotifier.Close()
		notifier = kafkaNotifier
		log.Info("STARTUP", fmt.Sprintf("Kafka notifier publishing to %s", cfg.Kafka.NotificationsTopic))
	} else {
		log.Warn("STARTUP", "Kafka disabled, notifications will be dropped")
	}

	// --- Payment Gateway + Audit Store ---
	gateway := payment.NewClient(cfg.Payment, log)
	if !gateway.IsConfigured() {
		log.Warn("STARTUP", "PAYMENT_API_KEY not set, payment sessions will be skipped")
	}

	paymentStore, err := storage.NewPostgreSQLStore(cfg.Database, log)
	if err != nil {
		log.Fatal("STARTUP", fmt.Sprintf("Failed to initialize payment store: %v", err))
	}
	defer paymentStore.Close()

	// --- Services ---
	auctionStore := &auctiondb.DB{Bun: bunDB}
	orderStore := &orderdb.DB{Bun: bunDB}

	auctionService := auction.NewAuctionService(auctionStore, gateway, paymentStore, notifier, statsCache, log)
	orderService := order.NewOrderService(orderStore, gateway, paymentStore, notifier, log)

	auctionHandler := &auctionapi.Handler{AuctionService: auctionService}
	orderHandler := &orderapi.Handler{OrderService: orderService}
	webhookHandler := &webhook.Handler{
		Secret: cfg.Payment.APIKey,
		Orders: orderService,
		Logger: log,
	}

	// --- Auction Sweep Scheduler ---
	sweeper := scheduler.New(auctionService, log)
	sweeper.Start(cfg.Scheduler.SweepInterval)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/products/{productID}/bids", auctionHandler.PlaceBid)
		r.Delete("/bids/{bidID}", auctionHandler.CancelBid)
		r.Get("/auctions/stats", auctionHandler.Stats)

		r.Post("/orders", orderHandler.CreateOrder)
		r.Get("/orders", orderHandler.ListOrders)
		r.Get("/orders/{orderID}", orderHandler.GetOrder)
		r.Post("/orders/{orderID}/refresh-payment", orderHandler.RefreshPayment)

		r.Post("/payments/callback", webhookHandler.HandleCallback)
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("STARTUP", fmt.Sprintf("Auction service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("SHUTDOWN", "Shutdown signal received, cleaning up...")

	sweeper.Stop()

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatal("SHUTDOWN", fmt.Sprintf("Server forced to shutdown: %v", err))
	}

	log.Info("SHUTDOWN", "Server exited gracefully")
}
