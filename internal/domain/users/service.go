package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coachbook/server/internal/audit"
	"github.com/coachbook/server/internal/auth"
	"github.com/coachbook/server/internal/domain/ids"
	"github.com/coachbook/server/internal/metrics"
	"github.com/coachbook/server/internal/sanitize"
	"github.com/coachbook/server/internal/validation"
	"github.com/rs/zerolog"
)

const maxNameLength = 100

// ViewInvalidator drops cached dashboards after profile changes.
type ViewInvalidator interface {
	InvalidateAll()
}

// Service handles profile mutations and directory reads.
type Service struct {
	repo        Repository
	views       ViewInvalidator
	validate    *validation.Validator
	auditLogger *audit.Logger
	logger      zerolog.Logger
}

func NewService(repo Repository, views ViewInvalidator, auditLogger *audit.Logger, logger zerolog.Logger) *Service {
	return &Service{
		repo:        repo,
		views:       views,
		validate:    validation.New(),
		auditLogger: auditLogger,
		logger:      logger.With().Str("component", "users").Logger(),
	}
}

// UpsertFromOAuth creates the user on first sign-in and refreshes name and
// image afterwards. Role and position are left untouched.
func (s *Service) UpsertFromOAuth(ctx context.Context, profile OAuthProfile) (*User, error) {
	email := strings.ToLower(strings.TrimSpace(profile.Email))
	if err := s.validate.Var("email", email, "required,email"); err != nil {
		return nil, err
	}
	name := sanitize.Text(profile.Name)
	if name == "" {
		name = email
	}

	id, err := ids.NewULID()
	if err != nil {
		return nil, fmt.Errorf("generate user id: %w", err)
	}
	user, err := s.repo.UpsertByEmail(ctx, UpsertParams{
		ID:    id,
		Email: email,
		Name:  name,
		Image: strings.TrimSpace(profile.Image),
	})
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	s.auditLogger.LogSuccess("user.sign_in", user.ID, "user", user.ID, nil)
	return user, nil
}

func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, ids.Normalize(id))
}

// SetRole lets the caller pick coach or coachee. Admin is never self-assigned.
func (s *Service) SetRole(ctx context.Context, caller auth.Identity, role string) (err error) {
	defer func() { s.record("set_role", err) }()

	if err := caller.Require(); err != nil {
		return err
	}
	normalized := auth.NormalizeRole(role)
	if !normalized.SelfAssignable() {
		return validation.Error{Field: "role", Message: "must be one of coach, coachee"}
	}
	if err := s.repo.UpdateRole(ctx, caller.ID, normalized); err != nil {
		return fmt.Errorf("update role: %w", err)
	}

	s.views.InvalidateAll()
	s.auditLogger.LogSuccess("user.set_role", caller.ID, "user", caller.ID, map[string]string{"role": string(normalized)})
	s.logger.Info().Str("user_id", caller.ID).Str("role", string(normalized)).Msg("role updated")
	return nil
}

func (s *Service) SetPosition(ctx context.Context, caller auth.Identity, positionID string) (err error) {
	defer func() { s.record("set_position", err) }()

	if err := caller.Require(); err != nil {
		return err
	}
	positionID = ids.Normalize(positionID)
	if err := s.validate.Var("position_id", positionID, "required"); err != nil {
		return err
	}

	if err := s.repo.UpdatePosition(ctx, caller.ID, positionID); err != nil {
		if errors.Is(err, ErrPositionNotFound) {
			return validation.Error{Field: "position_id", Message: "unknown position"}
		}
		return fmt.Errorf("update position: %w", err)
	}

	s.views.InvalidateAll()
	s.auditLogger.LogSuccess("user.set_position", caller.ID, "user", caller.ID, map[string]string{"position_id": positionID})
	return nil
}

// SetCompetencies replaces the caller's competency set. Duplicates collapse and
// an empty list clears every link.
func (s *Service) SetCompetencies(ctx context.Context, caller auth.Identity, competencyIDs []string) (err error) {
	defer func() { s.record("set_competencies", err) }()

	if err := caller.Require(); err != nil {
		return err
	}
	unique := ids.Unique(competencyIDs)

	if err := s.repo.ReplaceCompetencies(ctx, caller.ID, unique); err != nil {
		if errors.Is(err, ErrCompetencyNotFound) {
			return validation.Error{Field: "competency_ids", Message: "unknown competency"}
		}
		return fmt.Errorf("replace competencies: %w", err)
	}

	s.views.InvalidateAll()
	s.auditLogger.LogSuccess("user.set_competencies", caller.ID, "user", caller.ID,
		map[string]string{"competency_ids": strings.Join(unique, ",")})
	return nil
}

// AddCompetency returns the id of the competency named name, creating it when
// no case-insensitive match exists.
func (s *Service) AddCompetency(ctx context.Context, caller auth.Identity, name string) (id string, err error) {
	defer func() { s.record("add_competency", err) }()

	if err := caller.Require(); err != nil {
		return "", err
	}
	name = sanitize.Text(name)
	if err := s.validate.Var("name", name, fmt.Sprintf("required,max=%d", maxNameLength)); err != nil {
		return "", err
	}

	existing, err := s.repo.FindCompetencyByName(ctx, name)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, ErrCompetencyNotFound) {
		return "", fmt.Errorf("find competency: %w", err)
	}

	newID, err := ids.NewULID()
	if err != nil {
		return "", fmt.Errorf("generate competency id: %w", err)
	}
	created, err := s.repo.CreateCompetency(ctx, newID, name)
	if errors.Is(err, ErrCompetencyExists) {
		// Lost a race with a concurrent insert of the same name.
		existing, findErr := s.repo.FindCompetencyByName(ctx, name)
		if findErr != nil {
			return "", fmt.Errorf("find competency: %w", findErr)
		}
		return existing.ID, nil
	}
	if err != nil {
		return "", fmt.Errorf("create competency: %w", err)
	}

	s.views.InvalidateAll()
	s.auditLogger.LogSuccess("competency.create", caller.ID, "competency", created.ID, map[string]string{"name": created.Name})
	return created.ID, nil
}

// CreatePosition adds a position to the catalogue. Admin only.
func (s *Service) CreatePosition(ctx context.Context, caller auth.Identity, name string) (position *Position, err error) {
	defer func() { s.record("create_position", err) }()

	if err := caller.Require(); err != nil {
		return nil, err
	}
	if !auth.HasRole(caller.Role, auth.RoleAdmin) {
		return nil, ErrForbidden
	}
	name = sanitize.Text(name)
	if err := s.validate.Var("name", name, fmt.Sprintf("required,max=%d", maxNameLength)); err != nil {
		return nil, err
	}

	newID, err := ids.NewULID()
	if err != nil {
		return nil, fmt.Errorf("generate position id: %w", err)
	}
	position, err = s.repo.CreatePosition(ctx, newID, name)
	if errors.Is(err, ErrPositionExists) {
		return nil, validation.Error{Field: "name", Message: "position already exists"}
	}
	if err != nil {
		return nil, fmt.Errorf("create position: %w", err)
	}
	s.auditLogger.LogSuccess("position.create", caller.ID, "position", position.ID, map[string]string{"name": position.Name})
	return position, nil
}

func (s *Service) ListPositions(ctx context.Context) ([]Position, error) {
	return s.repo.ListPositions(ctx)
}

func (s *Service) ListCompetencies(ctx context.Context) ([]Competency, error) {
	return s.repo.ListCompetencies(ctx)
}

// Directory lists every user with position and competencies.
func (s *Service) Directory(ctx context.Context) ([]DirectoryEntry, error) {
	return s.repo.Directory(ctx)
}

func (s *Service) record(op string, err error) {
	metrics.ProfileMutations.WithLabelValues(op, outcome(err)).Inc()
}

func outcome(err error) string {
	var validationErr validation.Error
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.As(err, &validationErr):
		return "invalid"
	default:
		return "error"
	}
}
