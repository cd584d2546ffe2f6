package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/gastcinema/seat-reservations/internal/adapters/crdb"
	mongoadapter "github.com/gastcinema/seat-reservations/internal/adapters/mongo"
	"github.com/gastcinema/seat-reservations/internal/adapters/rabbit"
	"github.com/gastcinema/seat-reservations/internal/booking"
	"github.com/gastcinema/seat-reservations/internal/clock"
	"github.com/gastcinema/seat-reservations/internal/config"
	"github.com/gastcinema/seat-reservations/internal/observability"
	"github.com/gastcinema/seat-reservations/internal/payments"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
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

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	catalog := mongoadapter.NewCatalog(mongoClient.Database("cinema"), logger)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()
	rabbitPub, err := rabbit.NewPublisher(conn)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}

	svc := booking.NewService(catalog, store, payments.NewMock(), clock.NewSystem(), logger)

	worker := NewReaper(store, svc, rabbitPub, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go worker.Run(ctx, time.Minute)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown expiry worker")
}

// Reaper sweeps expired pending locks out of storage. Pure hygiene: reads
// already treat expired locks as available, the reaper just keeps the seat
// table from accumulating dead rows.
type Reaper struct {
	store     *crdb.Store
	svc       *booking.Service
	rabbitPub *rabbit.Publisher
	logger    observability.Logger
}

func NewReaper(store *crdb.Store, svc *booking.Service, rabbitPub *rabbit.Publisher, logger observability.Logger) *Reaper {
	return &Reaper{store: store, svc: svc, rabbitPub: rabbitPub, logger: logger}
}

func (w *Reaper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			showtimes, err := w.store.ShowtimesWithExpiredLocks(ctx, now)
			if err != nil {
				w.logger.WithError(err).Error("failed to list showtimes with expired locks")
				continue
			}
			for _, showtimeID := range showtimes {
				if err := w.sweepWithRetry(ctx, showtimeID); err != nil {
					w.logger.WithError(err).WithField("showtime_id", showtimeID).
						Error("failed to sweep showtime after retries")
				}
			}
		}
	}
}

func (w *Reaper) sweepWithRetry(ctx context.Context, showtimeID string) error {
	maxRetries := 3
	for i := 0; i < maxRetries; i++ {
		swept, err := w.svc.Sweep(ctx, showtimeID)
		if err != nil {
			backoff := time.Duration(1<<i) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				continue
			}
		}
		if len(swept) == 0 {
			return nil
		}

		payload, _ := json.Marshal(map[string]interface{}{
			"showtime_id": showtimeID,
			"seats":       swept,
		})
		msg := amqp.Publishing{
			MessageId:   uuid.New().String(),
			ContentType: "application/json",
			Body:        payload,
		}
		return w.rabbitPub.Publish(ctx, "lock.expired", msg)
	}
	return fmt.Errorf("failed after %d retries", maxRetries)
}
