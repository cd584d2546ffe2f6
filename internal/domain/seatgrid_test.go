package domain

import (
	"testing"

	"github.com/cockroachdb/errors"
)

func TestSeatIDs_DefaultGrid(t *testing.T) {
	ids := SeatIDs(DefaultRows, DefaultCols)
	if len(ids) != 40 {
		t.Fatalf("expected 40 seats, got %d", len(ids))
	}
	if ids[0] != "A1" || ids[7] != "A8" || ids[8] != "B1" || ids[39] != "E8" {
		t.Fatalf("unexpected enumeration: %v", ids)
	}
}

func TestValidSeatID(t *testing.T) {
	valid := []string{"A1", "A8", "E1", "E8", "C4"}
	invalid := []string{"", "A", "A0", "A9", "F1", "a1", "1A", "AA", "A1x", "A08", "A008", "A+8", "A-8", "A 8"}

	for _, id := range valid {
		if !ValidSeatID(id, DefaultRows, DefaultCols) {
			t.Errorf("%q should be valid", id)
		}
	}
	for _, id := range invalid {
		if ValidSeatID(id, DefaultRows, DefaultCols) {
			t.Errorf("%q should be invalid", id)
		}
	}
}

func TestValidateSeatList(t *testing.T) {
	if err := ValidateSeatList([]string{"A1", "B2"}, DefaultRows, DefaultCols); err != nil {
		t.Fatalf("valid list rejected: %v", err)
	}
	for _, seats := range [][]string{nil, {}, {"A1", "A1"}, {"Z9"}} {
		if err := ValidateSeatList(seats, DefaultRows, DefaultCols); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("seats %v: expected ErrInvalidInput, got %v", seats, err)
		}
	}
}

func TestSeatConflictError(t *testing.T) {
	err := NewSeatConflict([]string{"B1", "A2"})
	if !errors.Is(err, ErrConflict) {
		t.Fatal("SeatConflictError must match ErrConflict")
	}
	got := ConflictSeats(errors.Wrap(err, "acquire"))
	if len(got) != 2 || got[0] != "A2" || got[1] != "B1" {
		t.Fatalf("conflict seats = %v", got)
	}
	if ConflictSeats(ErrNotFound) != nil {
		t.Fatal("unrelated errors carry no seat list")
	}
}
