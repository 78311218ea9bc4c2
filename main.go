package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	config "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/config"
	notifications "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/notifications"
	payments "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/payments"
	routes "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/routes"
	services "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/services"
	store "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/store"
	telemetry "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/telemetry"
	utils "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/utils"
)

const serviceName = "friends-gift-events"

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(log)

	if err := run(log); err != nil {
		log.Error("service stopped", "err", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.Logger = log

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.OTELEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	// --- Mongo ---
	client, err := store.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(dctx); err != nil {
			log.Error("mongo disconnect failed", "err", err)
		}
	}()
	cfg.MongoClient = client

	db := store.NewMongo(client, cfg.DBName)
	if err := db.EnsureIndexes(ctx); err != nil {
		return err
	}

	// --- Notifications ---
	inbox := notifications.NewMongoInbox(client.Database(cfg.DBName))
	cfg.Inbox = inbox
	notifiers := []services.Notifier{notifications.NewLog(log), notifications.NewInbox(inbox)}

	if mailer := cfg.Mailer(); mailer.Configured() && cfg.NotifyEmail != "" {
		notifiers = append(notifiers, notifications.NewEmail(mailer, cfg.NotifyEmail))
	}

	var writer interface{ Close() error }
	if len(cfg.KafkaBrokers) > 0 {
		w := notifications.NewKafkaWriter(cfg.KafkaBrokers)
		writer = w
		notifiers = append(notifiers, notifications.NewKafka(w, cfg.NotificationsTopic))
	}

	app := services.New(services.Deps{
		Events:        db,
		Contributions: db,
		Orders:        db,
		Products:      db,
		Notifier:      notifications.NewFanout(log, notifiers...),
	}, cfg.ServiceOptions(log))
	cfg.App = app

	// --- Payment signals ---
	var dedupe payments.Dedupe
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		dedupe = payments.NewRedisDedupe(rdb, cfg.DedupeTTL)
	}
	cfg.Payments = payments.NewRouter(log.With("component", "payments"), app.Ledger, dedupe)

	consumerDone := make(chan struct{})
	if len(cfg.KafkaBrokers) > 0 {
		reader := payments.NewKafkaReader(cfg.KafkaBrokers, cfg.PaymentsTopic, cfg.PaymentsGroup)
		consumer := payments.NewConsumer(log.With("component", "payment-consumer"), reader, cfg.Payments)
		go func() {
			defer close(consumerDone)
			if err := consumer.Run(ctx); err != nil {
				log.Error("payment consumer stopped", "err", err)
				stop()
			}
		}()
	} else {
		close(consumerDone)
	}

	// --- Images ---
	if cfg.CloudinaryEnabled() {
		images, err := utils.NewCloudinary(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		if err != nil {
			return err
		}
		cfg.Images = images
	}

	// --- HTTP ---
	gin.SetMode(cfg.GinMode)
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), cors.New(corsConfig(cfg.CORSOrigins)))
	routes.SetupRoutes(r, cfg)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       time.Minute,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		log.Info("shutting down")
	}

	sctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(sctx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
	}

	select {
	case <-consumerDone:
	case <-sctx.Done():
		log.Warn("payment consumer did not stop in time")
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			log.Error("kafka writer close failed", "err", err)
		}
	}
	log.Info("shutdown complete")
	return nil
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "If-Match", "If-None-Match"},
		ExposeHeaders: []string{"ETag", "Last-Modified"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}
