package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"cabanas/internal/database"
	"cabanas/internal/models"
	"cabanas/internal/service"
)

func (s *HTTPServer) handleUnits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	units := s.store.GetUnits()
	active := make([]models.Unit, 0, len(units))
	for _, u := range units {
		if u.IsActive {
			active = append(active, u)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"units": active})
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	const prefix = "/api/v1/availability/"
	slug := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, prefix))
	if slug == "" || strings.Contains(slug, "/") {
		writeError(w, http.StatusBadRequest, "unit slug is required")
		return
	}

	monthStr := strings.TrimSpace(r.URL.Query().Get("month"))
	if monthStr == "" {
		writeError(w, http.StatusBadRequest, "month is required")
		return
	}
	monthStart, err := time.Parse("2006-01", monthStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid month format; expected YYYY-MM")
		return
	}

	unit, err := s.store.GetUnitBySlug(slug)
	if err != nil {
		writeError(w, http.StatusNotFound, "unit not found")
		return
	}

	view, err := s.availability.MonthAvailability(r.Context(), unit.ID, monthStart.Year(), monthStart.Month())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, view)
}

type createBookingRequest struct {
	UnitID        int64    `json:"unit_id"`
	UnitSlug      string   `json:"unit_slug"`
	StartDate     string   `json:"start_date"`
	EndDate       string   `json:"end_date"`
	PartySize     int      `json:"party_size"`
	JacuzziDays   []string `json:"jacuzzi_days"`
	Towels        int      `json:"towels"`
	CustomerName  string   `json:"customer_name"`
	CustomerEmail string   `json:"customer_email"`
	CustomerPhone string   `json:"customer_phone"`
}

type createBookingResponse struct {
	BookingID  string                `json:"booking_id"`
	Status     string                `json:"status"`
	ExpiresAt  *time.Time            `json:"expires_at"`
	Price      models.PriceBreakdown `json:"price"`
	PaymentURL string                `json:"payment_url"`
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	var body createBookingRequest
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if body.UnitID == 0 && body.UnitSlug != "" {
		unit, err := s.store.GetUnitBySlug(body.UnitSlug)
		if err != nil {
			writeError(w, http.StatusNotFound, "unit not found")
			return
		}
		body.UnitID = unit.ID
	}

	startDate, err := time.Parse(models.DateLayout, body.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_date; expected YYYY-MM-DD")
		return
	}
	endDate, err := time.Parse(models.DateLayout, body.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end_date; expected YYYY-MM-DD")
		return
	}

	booking, err := s.holds.CreateHold(r.Context(), service.CreateHoldRequest{
		UnitID:        body.UnitID,
		StartDate:     startDate,
		EndDate:       endDate,
		PartySize:     body.PartySize,
		JacuzziDays:   body.JacuzziDays,
		Towels:        body.Towels,
		CustomerName:  body.CustomerName,
		CustomerEmail: body.CustomerEmail,
		CustomerPhone: body.CustomerPhone,
	})
	if err != nil {
		switch {
		case errors.Is(err, database.ErrDatesUnavailable):
			writeError(w, http.StatusConflict, "dates are not available")
		case errors.Is(err, service.ErrInvalidData):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, database.ErrNotFound):
			writeError(w, http.StatusNotFound, "unit not found")
		default:
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	paymentURL, err := s.holds.StartPayment(r.Context(), booking.ID)
	if err != nil {
		// The hold exists and keeps its dates; the client can poll the
		// booking and retry the payment before expires_at.
		s.logger.Error().Err(err).Str("booking_id", booking.ID).Msg("start payment failed")
	}

	writeJSON(w, http.StatusCreated, createBookingResponse{
		BookingID:  booking.ID,
		Status:     booking.Status,
		ExpiresAt:  booking.ExpiresAt,
		Price:      booking.Price,
		PaymentURL: paymentURL,
	})
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	const prefix = "/api/v1/bookings/"
	id := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, prefix))
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "booking id is required")
		return
	}

	booking, err := s.store.GetBooking(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "booking not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	// A lapsed hold reads as expired even before the sweeper flips the
	// row; the status poll must never show a stale pending.
	status := booking.Status
	if booking.Status == models.StatusPending && !booking.IsActiveHold(s.clk.Now()) {
		status = models.StatusExpired
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"booking_id": booking.ID,
		"unit_id":    booking.UnitID,
		"status":     status,
		"start_date": booking.StartDate.Format(models.DateLayout),
		"end_date":   booking.EndDate.Format(models.DateLayout),
		"party_size": booking.PartySize,
		"price":      booking.Price,
		"expires_at": booking.ExpiresAt,
		"paid_at":    booking.PaidAt,
	})
}
