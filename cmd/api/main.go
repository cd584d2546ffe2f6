package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redisclient "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/gastcinema/seat-reservations/internal/adapters/crdb"
	mongoadapter "github.com/gastcinema/seat-reservations/internal/adapters/mongo"
	redisadapter "github.com/gastcinema/seat-reservations/internal/adapters/redis"
	"github.com/gastcinema/seat-reservations/internal/auth"
	"github.com/gastcinema/seat-reservations/internal/booking"
	"github.com/gastcinema/seat-reservations/internal/clock"
	"github.com/gastcinema/seat-reservations/internal/config"
	httphandler "github.com/gastcinema/seat-reservations/internal/http"
	"github.com/gastcinema/seat-reservations/internal/idempotency"
	"github.com/gastcinema/seat-reservations/internal/observability"
	"github.com/gastcinema/seat-reservations/internal/payments"
	"github.com/gastcinema/seat-reservations/internal/rateLimit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.DBDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer pool.Close()
	store := crdb.NewStore(pool)
	if err := store.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("failed to ensure schema: %v", err)
	}

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	mongoDB := mongoClient.Database("cinema")
	catalog := mongoadapter.NewCatalog(mongoDB, logger)
	audit := mongoadapter.NewAuditLogger(mongoDB, logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	redisCache := redisadapter.NewCache(redisClient)
	redisIdemp := redisadapter.NewIdempotency(redisClient)
	idemp := idempotency.NewIdempotency(redisIdemp, time.Hour)
	rl := rateLimit.NewRateLimiter(redisCache)

	svc := booking.NewService(catalog, store, payments.NewMock(), clock.NewSystem(), logger,
		booking.WithHoldTTL(cfg.HoldTTL))

	a := auth.New(cfg.JWTSecret)
	handlers := httphandler.NewHandlers(svc, idemp, audit)
	r := httphandler.SetupRouter(handlers, logger, a, rl)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()
	logger.WithField("addr", cfg.HTTPAddr).Info("api listening")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Server exiting")
}
