package domain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrInvalidInput         = errors.New("invalid input")
	ErrPaymentFailed        = errors.New("payment failed")
	ErrSerializationFailure = errors.New("serialization failure")
)

// SeatConflictError reports which requested seats were unavailable so the
// client can deselect them. It matches ErrConflict under errors.Is.
type SeatConflictError struct {
	Seats []string
}

func NewSeatConflict(seats []string) *SeatConflictError {
	sorted := append([]string(nil), seats...)
	sort.Strings(sorted)
	return &SeatConflictError{Seats: sorted}
}

func (e *SeatConflictError) Error() string {
	return fmt.Sprintf("seats unavailable: %s", strings.Join(e.Seats, ","))
}

func (e *SeatConflictError) Is(target error) bool {
	return target == ErrConflict
}

// ConflictSeats extracts the unavailable seat list from an error chain, when
// derivable.
func ConflictSeats(err error) []string {
	var sc *SeatConflictError
	if errors.As(err, &sc) {
		return sc.Seats
	}
	return nil
}
