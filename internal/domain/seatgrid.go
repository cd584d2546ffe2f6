package domain

import "fmt"

// Default auditorium sizing: rows A..E, columns 1..8.
const (
	DefaultRows = 5
	DefaultCols = 8
)

// SeatIDs enumerates the grid deterministically: row letter concatenated with
// the 1-based column number ("A1".."E8" for the default sizing).
func SeatIDs(rows, cols int) []string {
	ids := make([]string, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 1; c <= cols; c++ {
			ids = append(ids, fmt.Sprintf("%c%d", 'A'+r, c))
		}
	}
	return ids
}

// ValidSeatID reports whether id names a seat inside a rows×cols grid. Only
// the canonical spelling is accepted: the ledger is keyed by the raw string,
// so an alias like "A08" or "A+8" would address the same physical seat under
// a second key.
func ValidSeatID(id string, rows, cols int) bool {
	if len(id) < 2 {
		return false
	}
	row := id[0]
	if row < 'A' || row >= 'A'+byte(rows) {
		return false
	}
	if id[1] < '1' || id[1] > '9' {
		return false
	}
	col := 0
	for _, c := range id[1:] {
		if c < '0' || c > '9' {
			return false
		}
		col = col*10 + int(c-'0')
	}
	return col >= 1 && col <= cols
}

// ValidateSeatList rejects empty or malformed seat selections before any
// ledger access. Duplicates are rejected rather than collapsed so a buggy
// client cannot silently pay for fewer seats than it sent.
func ValidateSeatList(seats []string, rows, cols int) error {
	if len(seats) == 0 {
		return fmt.Errorf("%w: empty seat list", ErrInvalidInput)
	}
	seen := make(map[string]struct{}, len(seats))
	for _, s := range seats {
		if !ValidSeatID(s, rows, cols) {
			return fmt.Errorf("%w: bad seat id %q", ErrInvalidInput, s)
		}
		if _, dup := seen[s]; dup {
			return fmt.Errorf("%w: duplicate seat id %q", ErrInvalidInput, s)
		}
		seen[s] = struct{}{}
	}
	return nil
}
