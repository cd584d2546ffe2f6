package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/gastcinema/seat-reservations/internal/domain"
	"github.com/gastcinema/seat-reservations/internal/observability"
)

// AuditLogger records who touched which seats and when. Best-effort: a failed
// audit write is logged, never surfaced to the caller.
type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("audit_logs"),
		logger: logger,
	}
}

type auditDoc struct {
	ID        uuid.UUID `bson:"_id"`
	Action    string    `bson:"action"`
	PartyID   string    `bson:"party_id"`
	Timestamp time.Time `bson:"timestamp"`
	Data      bson.M    `bson:"data"`
}

func (a *AuditLogger) log(ctx context.Context, action, partyID string, data map[string]interface{}) {
	doc := auditDoc{
		ID:        uuid.New(),
		Action:    action,
		PartyID:   partyID,
		Timestamp: time.Now().UTC(),
		Data:      bson.M(data),
	}
	if _, err := a.coll.InsertOne(ctx, doc); err != nil {
		a.logger.WithField("action", action).Error("failed to insert audit log", err)
	}
}

func (a *AuditLogger) LockAcquired(ctx context.Context, showtimeID string, seats []string, partyID string, expiry time.Time) {
	a.log(ctx, "lock.acquired", partyID, map[string]interface{}{
		"showtime_id": showtimeID,
		"seats":       seats,
		"expires_at":  expiry.Format(time.RFC3339),
	})
}

func (a *AuditLogger) LockReleased(ctx context.Context, showtimeID string, seats []string, partyID string) {
	a.log(ctx, "lock.released", partyID, map[string]interface{}{
		"showtime_id": showtimeID,
		"seats":       seats,
	})
}

func (a *AuditLogger) BookingFinalized(ctx context.Context, b domain.Booking) {
	a.log(ctx, "booking.finalized", b.UserID, map[string]interface{}{
		"booking_id":  b.ID,
		"showtime_id": b.ShowtimeID,
		"seats":       b.Seats,
		"total_price": b.TotalPrice,
	})
}
