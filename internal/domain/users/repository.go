package users

import (
	"context"
	"errors"
	"time"

	"github.com/coachbook/server/internal/auth"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrPositionNotFound   = errors.New("position not found")
	ErrPositionExists     = errors.New("position already exists")
	ErrCompetencyNotFound = errors.New("competency not found")
	ErrCompetencyExists   = errors.New("competency already exists")

	// ErrForbidden is returned when the caller lacks the role for an operation.
	ErrForbidden = errors.New("forbidden")
)

type User struct {
	ID         string
	Name       string
	Email      string
	Image      string
	Role       auth.Role
	PositionID string
	Bio        string
	Department string
	CreatedAt  time.Time
}

type Position struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

type Competency struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// DirectoryEntry is a user as listed in the dashboard pickers.
type DirectoryEntry struct {
	User         User
	Position     *Position
	Competencies []Competency
}

// OAuthProfile is what a sign-in provider tells us about the user.
type OAuthProfile struct {
	Email string
	Name  string
	Image string
}

type UpsertParams struct {
	ID    string
	Email string
	Name  string
	Image string
}

type Repository interface {
	GetByID(ctx context.Context, id string) (*User, error)
	// UpsertByEmail inserts a user or refreshes name and image of an
	// existing one. ID is only used for inserts.
	UpsertByEmail(ctx context.Context, params UpsertParams) (*User, error)
	UpdateRole(ctx context.Context, userID string, role auth.Role) error
	UpdatePosition(ctx context.Context, userID, positionID string) error
	// ReplaceCompetencies deletes every link of the user and inserts the given
	// set in one transaction.
	ReplaceCompetencies(ctx context.Context, userID string, competencyIDs []string) error

	CreatePosition(ctx context.Context, id, name string) (*Position, error)
	ListPositions(ctx context.Context) ([]Position, error)

	// FindCompetencyByName matches names case-insensitively.
	FindCompetencyByName(ctx context.Context, name string) (*Competency, error)
	CreateCompetency(ctx context.Context, id, name string) (*Competency, error)
	ListCompetencies(ctx context.Context) ([]Competency, error)

	Directory(ctx context.Context) ([]DirectoryEntry, error)
}
