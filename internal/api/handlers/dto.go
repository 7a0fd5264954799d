package handlers

import (
	"time"

	"github.com/coachbook/server/internal/domain/bookings"
	"github.com/coachbook/server/internal/domain/dashboard"
	"github.com/coachbook/server/internal/domain/users"
)

const dateLayout = "2006-01-02"

type userResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Image      string `json:"image,omitempty"`
	Role       string `json:"role,omitempty"`
	PositionID string `json:"position_id,omitempty"`
	Bio        string `json:"bio,omitempty"`
	Department string `json:"department,omitempty"`
}

func toUserResponse(u users.User) userResponse {
	return userResponse{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		Image:      u.Image,
		Role:       string(u.Role),
		PositionID: u.PositionID,
		Bio:        u.Bio,
		Department: u.Department,
	}
}

type positionResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type competencyResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func toCompetencies(items []users.Competency) []competencyResponse {
	out := make([]competencyResponse, 0, len(items))
	for _, c := range items {
		out = append(out, competencyResponse{ID: c.ID, Name: c.Name})
	}
	return out
}

type directoryEntryResponse struct {
	userResponse
	Position     *positionResponse    `json:"position,omitempty"`
	Competencies []competencyResponse `json:"competencies"`
}

func toDirectory(entries []users.DirectoryEntry) []directoryEntryResponse {
	out := make([]directoryEntryResponse, 0, len(entries))
	for _, e := range entries {
		item := directoryEntryResponse{
			userResponse: toUserResponse(e.User),
			Competencies: toCompetencies(e.Competencies),
		}
		if e.Position != nil {
			item.Position = &positionResponse{ID: e.Position.ID, Name: e.Position.Name}
		}
		out = append(out, item)
	}
	return out
}

type bookingResponse struct {
	ID              string    `json:"id"`
	CoachID         string    `json:"coach_id"`
	CoacheeID       string    `json:"coachee_id"`
	Date            string    `json:"date"`
	StartTime       string    `json:"start_time,omitempty"`
	EndTime         string    `json:"end_time,omitempty"`
	Method          string    `json:"method"`
	Batch           string    `json:"batch,omitempty"`
	Status          string    `json:"status"`
	Topic           string    `json:"topic"`
	Notes           string    `json:"notes,omitempty"`
	Feedback        string    `json:"feedback,omitempty"`
	NextAction      string    `json:"next_action,omitempty"`
	CoacheeRating   *int      `json:"coachee_rating,omitempty"`
	CoacheeFeedback string    `json:"coachee_feedback,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toBookingResponse(b bookings.Booking) bookingResponse {
	return bookingResponse{
		ID:              b.ID,
		CoachID:         b.CoachID,
		CoacheeID:       b.CoacheeID,
		Date:            b.Date.UTC().Format(dateLayout),
		StartTime:       b.StartTime,
		EndTime:         b.EndTime,
		Method:          string(b.Method),
		Batch:           b.Batch,
		Status:          string(b.Status),
		Topic:           b.Topic,
		Notes:           b.Notes,
		Feedback:        b.Feedback,
		NextAction:      b.NextAction,
		CoacheeRating:   b.CoacheeRating,
		CoacheeFeedback: b.CoacheeFeedback,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

type participantResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Image    string `json:"image,omitempty"`
	Position string `json:"position,omitempty"`
}

type bookingViewResponse struct {
	bookingResponse
	Counterpart participantResponse `json:"counterpart"`
}

func toBookingViews(views []bookings.View) []bookingViewResponse {
	out := make([]bookingViewResponse, 0, len(views))
	for _, v := range views {
		out = append(out, bookingViewResponse{
			bookingResponse: toBookingResponse(v.Booking),
			Counterpart: participantResponse{
				ID:       v.Counterpart.ID,
				Name:     v.Counterpart.Name,
				Email:    v.Counterpart.Email,
				Image:    v.Counterpart.Image,
				Position: v.Counterpart.PositionName,
			},
		})
	}
	return out
}

type bucketsResponse struct {
	Upcoming    []string `json:"upcoming"`
	Pending     []string `json:"pending"`
	Confirmed   []string `json:"confirmed"`
	NeedsReport []string `json:"needs_report"`
	Closed      []string `json:"closed"`
}

func bookingIDs(views []bookings.View) []string {
	out := make([]string, 0, len(views))
	for _, v := range views {
		out = append(out, v.ID)
	}
	return out
}

type dashboardResponse struct {
	Route     string                   `json:"route"`
	Bookings  []bookingViewResponse    `json:"bookings"`
	Buckets   bucketsResponse          `json:"buckets"`
	Directory []directoryEntryResponse `json:"directory"`
}

func toDashboardResponse(view *dashboard.View, directory []users.DirectoryEntry) dashboardResponse {
	return dashboardResponse{
		Route:    string(view.Route),
		Bookings: toBookingViews(view.Bookings),
		Buckets: bucketsResponse{
			Upcoming:    bookingIDs(view.Buckets.Upcoming),
			Pending:     bookingIDs(view.Buckets.Pending),
			Confirmed:   bookingIDs(view.Buckets.Confirmed),
			NeedsReport: bookingIDs(view.Buckets.NeedsReport),
			Closed:      bookingIDs(view.Buckets.Closed),
		},
		Directory: toDirectory(directory),
	}
}
