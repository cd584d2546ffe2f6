// Package payments abstracts the charge step of finalizing a booking. No real
// gateway is integrated; the mock provider always succeeds, but the interface
// keeps a declined charge representable.
package payments

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

type ChargeRequest struct {
	PartyID    string
	ShowtimeID string
	Seats      []string
	Amount     float64
	Provider   string
	Phone      string
}

type Receipt struct {
	Reference string
}

type Provider interface {
	Charge(ctx context.Context, req ChargeRequest) (Receipt, error)
}

type mockProvider struct{}

// NewMock returns a provider whose charges always succeed with a generated
// payment reference.
func NewMock() Provider {
	return mockProvider{}
}

func (mockProvider) Charge(ctx context.Context, req ChargeRequest) (Receipt, error) {
	ref := "PAY-" + strings.ToUpper(uuid.NewString()[:8])
	return Receipt{Reference: ref}, nil
}
