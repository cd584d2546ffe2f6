package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	mongoadapter "github.com/gastcinema/seat-reservations/internal/adapters/mongo"
	"github.com/gastcinema/seat-reservations/internal/booking"
	"github.com/gastcinema/seat-reservations/internal/domain"
	"github.com/gastcinema/seat-reservations/internal/idempotency"
)

type Handlers struct {
	svc   *booking.Service
	idemp *idempotency.Idempotency
	audit *mongoadapter.AuditLogger // optional
}

func NewHandlers(svc *booking.Service, idemp *idempotency.Idempotency, audit *mongoadapter.AuditLogger) *Handlers {
	return &Handlers{svc: svc, idemp: idemp, audit: audit}
}

// AcquireLock grants a time-bounded hold on the requested seats, all or
// nothing.
func (h *Handlers) AcquireLock(w http.ResponseWriter, r *http.Request) {
	showtimeID := chi.URLParam(r, "id")

	var req struct {
		Seats []string `json:"seats"`
		TTLMs int64    `json:"ttl_ms"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	party := identityFrom(r)
	expiry, err := h.svc.AcquireLock(r.Context(), showtimeID, req.Seats, party, time.Duration(req.TTLMs)*time.Millisecond)
	if err != nil {
		writeError(w, err)
		return
	}

	if h.audit != nil {
		h.audit.LockAcquired(r.Context(), showtimeID, req.Seats, party.PartyID, expiry)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":         true,
		"expires_at": expiry.Format(time.RFC3339),
	})
}

// ReleaseLock is best-effort; seats not owned by the caller are skipped
// silently.
func (h *Handlers) ReleaseLock(w http.ResponseWriter, r *http.Request) {
	showtimeID := chi.URLParam(r, "id")

	var req struct {
		Seats []string `json:"seats"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	party := identityFrom(r)
	if err := h.svc.ReleaseLock(r.Context(), showtimeID, req.Seats, party); err != nil {
		writeError(w, err)
		return
	}

	if h.audit != nil {
		h.audit.LockReleased(r.Context(), showtimeID, req.Seats, party.PartyID)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// GetMovie and ListShowtimes serve the catalog browse flow that precedes seat
// selection.
func (h *Handlers) GetMovie(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.GetMovie(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":       m.ID,
		"title":    m.Title,
		"genre":    m.Genre,
		"duration": m.Duration,
		"poster":   m.Poster,
		"featured": m.Featured,
	})
}

func (h *Handlers) ListShowtimes(w http.ResponseWriter, r *http.Request) {
	showtimes, err := h.svc.ListShowtimes(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]interface{}, 0, len(showtimes))
	for _, st := range showtimes {
		out = append(out, map[string]interface{}{
			"id":    st.ID,
			"date":  st.Date,
			"time":  st.Time,
			"hall":  st.Hall,
			"price": st.Price,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// GetShowtime renders the seat map with effective statuses (lazy expiry
// applied at read time) for client polling.
func (h *Handlers) GetShowtime(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.GetShowtime(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	seatMap := make(map[string]string, len(view.SeatMap))
	for id, eff := range view.SeatMap {
		seatMap[id] = strings.ToLower(string(eff.Status))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":       view.Showtime.ID,
		"movie_id": view.Showtime.MovieID,
		"date":     view.Showtime.Date,
		"time":     view.Showtime.Time,
		"hall":     view.Showtime.Hall,
		"price":    view.Showtime.Price,
		"seat_map": seatMap,
	})
}

type bookingResponse struct {
	ID              string   `json:"id"`
	ShowtimeID      string   `json:"showtime_id"`
	Seats           []string `json:"seats"`
	TotalPrice      float64  `json:"total_price"`
	PaymentProvider string   `json:"payment_provider"`
	PaymentRef      string   `json:"payment_ref"`
	Status          string   `json:"status"`
	CreatedAt       string   `json:"created_at"`
}

func toBookingResponse(b domain.Booking) bookingResponse {
	return bookingResponse{
		ID:              b.ID.String(),
		ShowtimeID:      b.ShowtimeID,
		Seats:           b.Seats,
		TotalPrice:      b.TotalPrice,
		PaymentProvider: b.PaymentProvider,
		PaymentRef:      b.PaymentRef,
		Status:          b.Status,
		CreatedAt:       b.CreatedAt.Format(time.RFC3339),
	}
}

// CreateBooking finalizes held seats into a booking, exactly once per
// Idempotency-Key. The redis replay cache answers transport retries; the
// core's key index guarantees exactly-once even when the cache is cold.
func (h *Handlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	if existing, err := h.idemp.Get(r.Context(), key); err == nil && existing != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(existing.Status)
		w.Write(existing.Result)
		return
	}

	var req struct {
		ShowtimeID      string   `json:"showtime_id"`
		Seats           []string `json:"seats"`
		PaymentProvider string   `json:"payment_provider"`
		Phone           string   `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	b, err := h.svc.Finalize(r.Context(), booking.FinalizeInput{
		ShowtimeID:      req.ShowtimeID,
		Seats:           req.Seats,
		Party:           identityFrom(r),
		PaymentProvider: req.PaymentProvider,
		Phone:           req.Phone,
		IdempotencyKey:  key,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if h.audit != nil {
		h.audit.BookingFinalized(r.Context(), b)
	}

	data, _ := json.Marshal(toBookingResponse(b))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	w.Write(data)

	h.idemp.Set(r.Context(), key, idempotency.Response{Status: http.StatusCreated, Result: data})
}

func (h *Handlers) ListBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.svc.ListBookings(r.Context(), identityFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]bookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toBookingResponse(b))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) AdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context(), identityFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_tickets": stats.TotalTickets,
		"active_movies": stats.ActiveMovies,
		"total_revenue": stats.TotalRevenue,
	})
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
