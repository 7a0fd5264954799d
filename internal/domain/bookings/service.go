package bookings

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/coachbook/server/internal/audit"
	"github.com/coachbook/server/internal/auth"
	"github.com/coachbook/server/internal/domain/ids"
	"github.com/coachbook/server/internal/metrics"
	"github.com/coachbook/server/internal/sanitize"
	"github.com/coachbook/server/internal/validation"
	"github.com/rs/zerolog"
)

// ViewInvalidator drops cached dashboards of a booking's participants.
type ViewInvalidator interface {
	InvalidateParticipants(coachID, coacheeID string)
}

type Config struct {
	// StrictTransitions rejects status changes outside the lifecycle graph.
	StrictTransitions bool
}

// CreateInput is the booking form. CounterpartID is the coach when a coachee
// books and the coachee when a coach schedules.
type CreateInput struct {
	CounterpartID string
	Date          string
	StartTime     string
	EndTime       string
	Topic         string
	Method        string
	Batch         string
	Notes         string
}

type ReportInput struct {
	Feedback   string
	NextAction string
}

type FeedbackInput struct {
	Rating   int
	Feedback string
}

type Service struct {
	repo        Repository
	views       ViewInvalidator
	validate    *validation.Validator
	auditLogger *audit.Logger
	cfg         Config
	logger      zerolog.Logger
}

func NewService(repo Repository, views ViewInvalidator, auditLogger *audit.Logger, cfg Config, logger zerolog.Logger) *Service {
	return &Service{
		repo:        repo,
		views:       views,
		validate:    validation.New(),
		auditLogger: auditLogger,
		cfg:         cfg,
		logger:      logger.With().Str("component", "bookings").Logger(),
	}
}

// CreateAsCoachee books a session with a coach. The booking starts pending.
func (s *Service) CreateAsCoachee(ctx context.Context, caller auth.Identity, in CreateInput) (booking *Booking, err error) {
	defer func() { s.record("create_as_coachee", caller, booking, err) }()

	if err := caller.Require(); err != nil {
		return nil, err
	}
	b, err := s.buildBooking(caller, in, "coach_id", false)
	if err != nil {
		return nil, err
	}
	b.CoachID = ids.Normalize(in.CounterpartID)
	b.CoacheeID = caller.ID
	b.Status = StatusPending
	b.Batch = ""
	return s.create(ctx, b, "coach_id")
}

// CreateAsCoach schedules a session with a coachee. The booking starts accepted.
func (s *Service) CreateAsCoach(ctx context.Context, caller auth.Identity, in CreateInput) (booking *Booking, err error) {
	defer func() { s.record("create_as_coach", caller, booking, err) }()

	if err := caller.Require(); err != nil {
		return nil, err
	}
	b, err := s.buildBooking(caller, in, "coachee_id", true)
	if err != nil {
		return nil, err
	}
	b.CoachID = caller.ID
	b.CoacheeID = ids.Normalize(in.CounterpartID)
	b.Status = StatusAccepted
	return s.create(ctx, b, "coachee_id")
}

func (s *Service) buildBooking(caller auth.Identity, in CreateInput, counterpartField string, withBatch bool) (Booking, error) {
	counterpart := ids.Normalize(in.CounterpartID)
	required := []struct {
		field string
		value string
	}{
		{counterpartField, counterpart},
		{"date", in.Date},
		{"start_time", in.StartTime},
		{"end_time", in.EndTime},
		{"topic", sanitize.Text(in.Topic)},
		{"method", in.Method},
	}
	for _, r := range required {
		if err := s.validate.Var(r.field, r.value, "required"); err != nil {
			return Booking{}, err
		}
	}
	if counterpart == caller.ID {
		return Booking{}, validation.Error{Field: counterpartField, Message: "cannot book a session with yourself"}
	}

	date, err := ParseDate(in.Date)
	if err != nil {
		return Booking{}, err
	}
	if err := s.validate.Var("method", in.Method, "oneof=online offline"); err != nil {
		return Booking{}, err
	}
	if err := s.validateTimes(in.StartTime, in.EndTime); err != nil {
		return Booking{}, err
	}

	b := Booking{
		Date:      date,
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
		Method:    Method(in.Method),
		Topic:     sanitize.Text(in.Topic),
		Notes:     sanitize.Text(in.Notes),
	}
	if withBatch {
		b.Batch = sanitize.Text(in.Batch)
	}
	return b, nil
}

func (s *Service) validateTimes(start, end string) error {
	if err := s.validate.Var("start_time", start, "len=5,datetime=15:04"); err != nil {
		return err
	}
	if err := s.validate.Var("end_time", end, "len=5,datetime=15:04"); err != nil {
		return err
	}
	// HH:MM strings order lexically.
	if end <= start {
		return validation.Error{Field: "end_time", Message: "must be after start_time"}
	}
	return nil
}

func (s *Service) create(ctx context.Context, b Booking, counterpartField string) (*Booking, error) {
	id, err := ids.NewULID()
	if err != nil {
		return nil, fmt.Errorf("generate booking id: %w", err)
	}
	b.ID = id

	created, err := s.repo.Create(ctx, b)
	if err != nil {
		if errors.Is(err, ErrParticipantNotFound) {
			return nil, validation.Error{Field: counterpartField, Message: "unknown user"}
		}
		return nil, fmt.Errorf("create booking: %w", err)
	}
	s.views.InvalidateParticipants(created.CoachID, created.CoacheeID)
	return created, nil
}

// SetStatus changes the status of one of the caller's coaching sessions.
func (s *Service) SetStatus(ctx context.Context, caller auth.Identity, bookingID, status string) (booking *Booking, err error) {
	defer func() { s.record("set_status", caller, booking, err) }()

	if err := caller.Require(); err != nil {
		return nil, err
	}
	target, ok := ParseStatus(status)
	if !ok {
		return nil, validation.Error{Field: "status", Message: "must be one of pending, accepted, rejected, completed, cancelled"}
	}

	current, err := s.loadOwned(ctx, bookingID, coachOf(caller))
	if err != nil {
		return nil, err
	}
	if s.cfg.StrictTransitions {
		if current.Status == target {
			return current, nil
		}
		if !CanTransition(current.Status, target) {
			return nil, TransitionError{From: current.Status, To: target}
		}
	}

	updated, err := s.repo.UpdateStatus(ctx, current.ID, target)
	if err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	s.views.InvalidateParticipants(updated.CoachID, updated.CoacheeID)
	return updated, nil
}

// SubmitCoachReport records the coach's feedback and next action and marks
// the session completed.
func (s *Service) SubmitCoachReport(ctx context.Context, caller auth.Identity, bookingID string, in ReportInput) (booking *Booking, err error) {
	defer func() { s.record("submit_report", caller, booking, err) }()

	if err := caller.Require(); err != nil {
		return nil, err
	}
	feedback := sanitize.Text(in.Feedback)
	nextAction := sanitize.Text(in.NextAction)
	if err := s.validate.Var("feedback", feedback, "required"); err != nil {
		return nil, err
	}
	if err := s.validate.Var("next_action", nextAction, "required"); err != nil {
		return nil, err
	}

	current, err := s.loadOwned(ctx, bookingID, coachOf(caller))
	if err != nil {
		return nil, err
	}
	if s.cfg.StrictTransitions && !CanTransition(current.Status, StatusCompleted) {
		return nil, TransitionError{From: current.Status, To: StatusCompleted}
	}

	updated, err := s.repo.UpdateCoachReport(ctx, current.ID, ReportParams{
		Feedback:   feedback,
		NextAction: nextAction,
		Status:     StatusCompleted,
	})
	if err != nil {
		return nil, fmt.Errorf("update report: %w", err)
	}
	s.views.InvalidateParticipants(updated.CoachID, updated.CoacheeID)
	return updated, nil
}

// SubmitCoacheeFeedback stores the coachee's rating. Status is unchanged.
func (s *Service) SubmitCoacheeFeedback(ctx context.Context, caller auth.Identity, bookingID string, in FeedbackInput) (booking *Booking, err error) {
	defer func() { s.record("submit_feedback", caller, booking, err) }()

	if err := caller.Require(); err != nil {
		return nil, err
	}
	if err := s.validate.Var("rating", in.Rating, "min=1,max=5"); err != nil {
		return nil, validation.Error{Field: "rating", Message: "must be between 1 and 5"}
	}

	current, err := s.loadOwned(ctx, bookingID, coacheeOf(caller))
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateCoacheeFeedback(ctx, current.ID, FeedbackParams{
		Rating:   in.Rating,
		Feedback: sanitize.Text(in.Feedback),
	})
	if err != nil {
		return nil, fmt.Errorf("update feedback: %w", err)
	}
	s.views.InvalidateParticipants(updated.CoachID, updated.CoacheeID)
	return updated, nil
}

type ownership func(*Booking) bool

func coachOf(caller auth.Identity) ownership {
	return func(b *Booking) bool { return b.CoachID == caller.ID }
}

func coacheeOf(caller auth.Identity) ownership {
	return func(b *Booking) bool { return b.CoacheeID == caller.ID }
}

// loadOwned fetches a booking and applies owns. Missing and foreign rows both
// yield ErrNotFoundOrForbidden.
func (s *Service) loadOwned(ctx context.Context, bookingID string, owns ownership) (*Booking, error) {
	id := ids.Normalize(bookingID)
	if id == "" {
		return nil, ErrNotFoundOrForbidden
	}
	b, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFoundOrForbidden
	}
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}
	if !owns(b) {
		return nil, ErrNotFoundOrForbidden
	}
	return b, nil
}

func (s *Service) record(op string, caller auth.Identity, b *Booking, err error) {
	result := outcome(err)
	metrics.BookingMutations.WithLabelValues(op, result).Inc()

	action := "booking." + op
	if err != nil {
		details := map[string]string{"outcome": result}
		if result == "error" {
			details["error"] = err.Error()
			s.logger.Error().Err(err).Str("op", op).Str("user_id", caller.ID).Msg("booking mutation failed")
		}
		s.auditLogger.LogFailure(action, caller.ID, "booking", "", details)
		return
	}

	details := map[string]string{"status": string(b.Status)}
	if b.CoacheeRating != nil {
		details["rating"] = strconv.Itoa(*b.CoacheeRating)
	}
	s.auditLogger.LogSuccess(action, caller.ID, "booking", b.ID, details)
	s.logger.Info().Str("op", op).Str("booking_id", b.ID).Str("status", string(b.Status)).Msg("booking updated")
}

func outcome(err error) string {
	var validationErr validation.Error
	var formatErr FormatError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, ErrNotFoundOrForbidden):
		return "forbidden"
	case errors.As(err, &validationErr), errors.As(err, &formatErr):
		return "invalid"
	case errors.Is(err, ErrInvalidTransition):
		return "conflict"
	default:
		return "error"
	}
}
