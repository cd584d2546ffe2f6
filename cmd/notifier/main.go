package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/gastcinema/seat-reservations/internal/adapters/rabbit"
	"github.com/gastcinema/seat-reservations/internal/config"
	"github.com/gastcinema/seat-reservations/internal/observability"
)

// The notifier consumes booking events and records the notification it would
// send. Delivery channels (email, SMS) plug in behind this consumer.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := observability.NewLogger()

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()

	consumer, err := rabbit.NewConsumer(conn, "notifications.q", "booking.*")
	if err != nil {
		log.Fatalf("failed to create consumer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deliveries, err := consumer.Consume(ctx)
	if err != nil {
		log.Fatalf("failed to start consuming: %v", err)
	}

	go func() {
		for d := range deliveries {
			var event map[string]interface{}
			if err := json.Unmarshal(d.Body, &event); err != nil {
				logger.WithError(err).Error("malformed event payload")
				d.Nack(false, false)
				continue
			}
			logger.WithField("routing_key", d.RoutingKey).
				WithField("booking_id", event["booking_id"]).
				WithField("user_id", event["user_id"]).
				Info("booking notification")
			d.Ack(false)
		}
	}()
	logger.Info("notifier started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown notifier")
}
