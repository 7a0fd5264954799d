package handlers

import (
	"net/http"

	"github.com/coachbook/server/internal/auth"
	"github.com/coachbook/server/internal/domain/bookings"
)

type BookingsHandler struct {
	bookings *bookings.Service
	env      string
}

func NewBookingsHandler(service *bookings.Service, env string) *BookingsHandler {
	return &BookingsHandler{bookings: service, env: env}
}

type createBookingRequest struct {
	CoachID   string `json:"coach_id"`
	CoacheeID string `json:"coachee_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Topic     string `json:"topic"`
	Method    string `json:"method"`
	Batch     string `json:"batch"`
	Notes     string `json:"notes"`
}

func (req createBookingRequest) input(counterpartID string) bookings.CreateInput {
	return bookings.CreateInput{
		CounterpartID: counterpartID,
		Date:          req.Date,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		Topic:         req.Topic,
		Method:        req.Method,
		Batch:         req.Batch,
		Notes:         req.Notes,
	}
}

// CreateAsCoachee books a session with the given coach; it starts pending.
func (h *BookingsHandler) CreateAsCoachee(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, h.env)
		return
	}
	booking, err := h.bookings.CreateAsCoachee(r.Context(), auth.IdentityFromContext(r.Context()), req.input(req.CoachID))
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusCreated, toBookingResponse(*booking))
}

// CreateAsCoach schedules a session with the given coachee; it starts accepted.
func (h *BookingsHandler) CreateAsCoach(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, h.env)
		return
	}
	booking, err := h.bookings.CreateAsCoach(r.Context(), auth.IdentityFromContext(r.Context()), req.input(req.CoacheeID))
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusCreated, toBookingResponse(*booking))
}

type setStatusRequest struct {
	Status string `json:"status"`
}

func (h *BookingsHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, h.env)
		return
	}
	booking, err := h.bookings.SetStatus(r.Context(), auth.IdentityFromContext(r.Context()), pathParam(r, "id"), req.Status)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(*booking))
}

type reportRequest struct {
	Feedback   string `json:"feedback"`
	NextAction string `json:"next_action"`
}

func (h *BookingsHandler) SubmitReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, h.env)
		return
	}
	booking, err := h.bookings.SubmitCoachReport(r.Context(), auth.IdentityFromContext(r.Context()), pathParam(r, "id"),
		bookings.ReportInput{Feedback: req.Feedback, NextAction: req.NextAction})
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(*booking))
}

type feedbackRequest struct {
	Rating   int    `json:"rating"`
	Feedback string `json:"feedback"`
}

func (h *BookingsHandler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, h.env)
		return
	}
	booking, err := h.bookings.SubmitCoacheeFeedback(r.Context(), auth.IdentityFromContext(r.Context()), pathParam(r, "id"),
		bookings.FeedbackInput{Rating: req.Rating, Feedback: req.Feedback})
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(*booking))
}
