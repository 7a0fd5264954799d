package bookings

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("booking not found")
	// ErrParticipantNotFound is returned when a coach or coachee id does not
	// reference an existing user.
	ErrParticipantNotFound = errors.New("participant not found")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusPending, StatusAccepted, StatusRejected, StatusCompleted, StatusCancelled}

func ParseStatus(value string) (Status, bool) {
	for _, s := range Statuses {
		if string(s) == value {
			return s, true
		}
	}
	return "", false
}

// Closed reports whether no further coach action is expected.
func (s Status) Closed() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusRejected
}

type Method string

const (
	MethodOnline  Method = "online"
	MethodOffline Method = "offline"
)

type Booking struct {
	ID              string
	CoachID         string
	CoacheeID       string
	Date            time.Time
	StartTime       string
	EndTime         string
	Method          Method
	Batch           string
	Status          Status
	Topic           string
	Notes           string
	Feedback        string
	NextAction      string
	CoacheeRating   *int
	CoacheeFeedback string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Participant is the other party of a booking as shown on a dashboard.
type Participant struct {
	ID           string
	Name         string
	Email        string
	Image        string
	PositionName string
}

// View is a booking joined with its counterpart: the coachee on the coach
// dashboard and the coach on the coachee dashboard.
type View struct {
	Booking
	Counterpart Participant
}

type ReportParams struct {
	Feedback   string
	NextAction string
	Status     Status
}

type FeedbackParams struct {
	Rating   int
	Feedback string
}

type Repository interface {
	Create(ctx context.Context, booking Booking) (*Booking, error)
	GetByID(ctx context.Context, id string) (*Booking, error)
	UpdateStatus(ctx context.Context, id string, status Status) (*Booking, error)
	UpdateCoachReport(ctx context.Context, id string, params ReportParams) (*Booking, error)
	UpdateCoacheeFeedback(ctx context.Context, id string, params FeedbackParams) (*Booking, error)
	// ListForCoach returns the coach's bookings joined with coachee and
	// coachee position, newest date first.
	ListForCoach(ctx context.Context, coachID string) ([]View, error)
	// ListForCoachee returns the coachee's bookings joined with coach,
	// newest date first.
	ListForCoachee(ctx context.Context, coacheeID string) ([]View, error)
}
