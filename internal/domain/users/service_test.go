package users

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coachbook/server/internal/audit"
	"github.com/coachbook/server/internal/auth"
	"github.com/coachbook/server/internal/validation"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	mu           sync.Mutex
	users        map[string]*User
	positions    map[string]Position
	competencies map[string]Competency
	links        map[string]map[string]bool

	// createRace makes the next CreateCompetency report a unique violation
	// after inserting the row under a different id.
	createRace bool
}

func newMemRepo() *memRepo {
	return &memRepo{
		users:        map[string]*User{},
		positions:    map[string]Position{},
		competencies: map[string]Competency{},
		links:        map[string]map[string]bool{},
	}
}

func (m *memRepo) GetByID(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memRepo) UpsertByEmail(_ context.Context, p UpsertParams) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == p.Email {
			u.Name = p.Name
			u.Image = p.Image
			cp := *u
			return &cp, nil
		}
	}
	u := &User{ID: p.ID, Email: p.Email, Name: p.Name, Image: p.Image, CreatedAt: time.Now()}
	m.users[p.ID] = u
	cp := *u
	return &cp, nil
}

func (m *memRepo) UpdateRole(_ context.Context, userID string, role auth.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.Role = role
	return nil
}

func (m *memRepo) UpdatePosition(_ context.Context, userID, positionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.positions[positionID]; !ok {
		return ErrPositionNotFound
	}
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.PositionID = positionID
	return nil
}

func (m *memRepo) ReplaceCompetencies(_ context.Context, userID string, competencyIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := map[string]bool{}
	for _, id := range competencyIDs {
		if _, ok := m.competencies[id]; !ok {
			return ErrCompetencyNotFound
		}
		if next[id] {
			return errors.New("duplicate key value violates unique constraint")
		}
		next[id] = true
	}
	m.links[userID] = next
	return nil
}

func (m *memRepo) CreatePosition(_ context.Context, id, name string) (*Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.positions {
		if p.Name == name {
			return nil, ErrPositionExists
		}
	}
	p := Position{ID: id, Name: name, CreatedAt: time.Now()}
	m.positions[id] = p
	return &p, nil
}

func (m *memRepo) ListPositions(context.Context) ([]Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Position, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memRepo) FindCompetencyByName(_ context.Context, name string) (*Competency, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.competencies {
		if strings.EqualFold(c.Name, name) {
			cp := c
			return &cp, nil
		}
	}
	return nil, ErrCompetencyNotFound
}

func (m *memRepo) CreateCompetency(_ context.Context, id, name string) (*Competency, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createRace {
		m.createRace = false
		m.competencies["RACE"] = Competency{ID: "RACE", Name: name}
		return nil, ErrCompetencyExists
	}
	for _, c := range m.competencies {
		if strings.EqualFold(c.Name, name) {
			return nil, ErrCompetencyExists
		}
	}
	c := Competency{ID: id, Name: name, CreatedAt: time.Now()}
	m.competencies[id] = c
	return &c, nil
}

func (m *memRepo) ListCompetencies(context.Context) ([]Competency, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Competency, 0, len(m.competencies))
	for _, c := range m.competencies {
		out = append(out, c)
	}
	return out, nil
}

func (m *memRepo) Directory(context.Context) ([]DirectoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]DirectoryEntry, 0, len(m.users))
	for _, u := range m.users {
		entry := DirectoryEntry{User: *u}
		if p, ok := m.positions[u.PositionID]; ok {
			entry.Position = &p
		}
		for id := range m.links[u.ID] {
			entry.Competencies = append(entry.Competencies, m.competencies[id])
		}
		out = append(out, entry)
	}
	return out, nil
}

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) InvalidateAll() { c.calls++ }

func newTestService(t *testing.T) (*Service, *memRepo, *countingInvalidator, *bytes.Buffer) {
	t.Helper()
	repo := newMemRepo()
	views := &countingInvalidator{}
	var auditBuf bytes.Buffer
	svc := NewService(repo, views, audit.NewLoggerWithZerolog(zerolog.New(&auditBuf)), zerolog.Nop())
	return svc, repo, views, &auditBuf
}

func signIn(t *testing.T, svc *Service, email string) auth.Identity {
	t.Helper()
	u, err := svc.UpsertFromOAuth(context.Background(), OAuthProfile{Email: email, Name: "Test User"})
	require.NoError(t, err)
	return auth.Identity{ID: u.ID, Email: u.Email, Role: u.Role}
}

func TestUpsertFromOAuth_CreatesThenRefreshes(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.UpsertFromOAuth(ctx, OAuthProfile{Email: " Ada@Example.com", Name: "Ada", Image: "a.png"})
	require.NoError(t, err)
	require.Equal(t, "ada@example.com", first.Email)
	require.Equal(t, auth.RoleNone, first.Role)

	require.NoError(t, repo.UpdateRole(ctx, first.ID, auth.RoleCoach))

	second, err := svc.UpsertFromOAuth(ctx, OAuthProfile{Email: "ada@example.com", Name: "Ada L.", Image: "b.png"})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "Ada L.", second.Name)
	require.Equal(t, auth.RoleCoach, second.Role)
}

func TestUpsertFromOAuth_InvalidEmail(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.UpsertFromOAuth(context.Background(), OAuthProfile{Email: "not-an-email"})
	var verr validation.Error
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "email", verr.Field)
}

func TestUpsertFromOAuth_NameDefaultsToEmail(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	u, err := svc.UpsertFromOAuth(context.Background(), OAuthProfile{Email: "x@example.com", Name: "<b></b>"})
	require.NoError(t, err)
	require.Equal(t, "x@example.com", u.Name)
}

func TestSetRole(t *testing.T) {
	svc, repo, views, auditBuf := newTestService(t)
	ctx := context.Background()
	caller := signIn(t, svc, "c@example.com")

	require.NoError(t, svc.SetRole(ctx, caller, "Coach"))
	require.Equal(t, auth.RoleCoach, repo.users[caller.ID].Role)
	require.Equal(t, 1, views.calls)
	require.Contains(t, auditBuf.String(), "user.set_role")

	// Repeated calls are allowed.
	require.NoError(t, svc.SetRole(ctx, caller, "coachee"))
	require.Equal(t, auth.RoleCoachee, repo.users[caller.ID].Role)
}

func TestSetRole_Rejections(t *testing.T) {
	svc, _, views, _ := newTestService(t)
	ctx := context.Background()
	caller := signIn(t, svc, "c@example.com")

	for _, role := range []string{"admin", "", "viewer"} {
		err := svc.SetRole(ctx, caller, role)
		var verr validation.Error
		require.ErrorAs(t, err, &verr, role)
		require.Equal(t, "role", verr.Field)
	}
	require.ErrorIs(t, svc.SetRole(ctx, auth.Identity{}, "coach"), auth.ErrUnauthenticated)
	require.Zero(t, views.calls)
}

func TestSetPosition(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	ctx := context.Background()
	caller := signIn(t, svc, "p@example.com")
	_, err := repo.CreatePosition(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZA", "Engineer")
	require.NoError(t, err)

	require.NoError(t, svc.SetPosition(ctx, caller, "01hzzzzzzzzzzzzzzzzzzzzzza"))
	require.Equal(t, "01HZZZZZZZZZZZZZZZZZZZZZZA", repo.users[caller.ID].PositionID)

	err = svc.SetPosition(ctx, caller, "01HZZZZZZZZZZZZZZZZZZZZZZB")
	var verr validation.Error
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "position_id", verr.Field)

	err = svc.SetPosition(ctx, caller, "  ")
	require.ErrorAs(t, err, &verr)
}

func TestAddCompetency_CaseInsensitive(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	ctx := context.Background()
	caller := signIn(t, svc, "a@example.com")

	first, err := svc.AddCompetency(ctx, caller, "  Leadership ")
	require.NoError(t, err)
	second, err := svc.AddCompetency(ctx, caller, "leadership")
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Len(t, repo.competencies, 1)
	require.Equal(t, "Leadership", repo.competencies[first].Name)
}

func TestAddCompetency_Empty(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	caller := signIn(t, svc, "a@example.com")

	_, err := svc.AddCompetency(context.Background(), caller, "   ")
	var verr validation.Error
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "name", verr.Field)
	require.Equal(t, "this field is required", verr.Message)
}

func TestAddCompetency_ConcurrentInsert(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	caller := signIn(t, svc, "a@example.com")
	repo.createRace = true

	id, err := svc.AddCompetency(context.Background(), caller, "Coaching")
	require.NoError(t, err)
	require.Equal(t, "RACE", id)
}

func TestSetCompetencies_ReplaceAndClear(t *testing.T) {
	svc, repo, views, _ := newTestService(t)
	ctx := context.Background()
	caller := signIn(t, svc, "a@example.com")

	a, err := svc.AddCompetency(ctx, caller, "a")
	require.NoError(t, err)
	b, err := svc.AddCompetency(ctx, caller, "b")
	require.NoError(t, err)

	require.NoError(t, svc.SetCompetencies(ctx, caller, []string{a, b, a}))
	require.Len(t, repo.links[caller.ID], 2)

	require.NoError(t, svc.SetCompetencies(ctx, caller, []string{}))
	require.Empty(t, repo.links[caller.ID])
	require.GreaterOrEqual(t, views.calls, 2)
}

func TestSetCompetencies_Unknown(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	caller := signIn(t, svc, "a@example.com")

	err := svc.SetCompetencies(context.Background(), caller, []string{"01HZZZZZZZZZZZZZZZZZZZZZZZ"})
	var verr validation.Error
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "competency_ids", verr.Field)
}

func TestCreatePosition_AdminOnly(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	caller := signIn(t, svc, "a@example.com")

	_, err := svc.CreatePosition(ctx, caller, "Manager")
	require.ErrorIs(t, err, ErrForbidden)

	caller.Role = auth.RoleAdmin
	pos, err := svc.CreatePosition(ctx, caller, "Manager")
	require.NoError(t, err)
	require.Equal(t, "Manager", pos.Name)

	_, err = svc.CreatePosition(ctx, caller, "Manager")
	var verr validation.Error
	require.ErrorAs(t, err, &verr)
}

func TestDirectory(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	ctx := context.Background()
	caller := signIn(t, svc, "a@example.com")
	_, err := repo.CreatePosition(ctx, "POS", "Engineer")
	require.NoError(t, err)
	require.NoError(t, svc.SetPosition(ctx, caller, "POS"))
	id, err := svc.AddCompetency(ctx, caller, "Go")
	require.NoError(t, err)
	require.NoError(t, svc.SetCompetencies(ctx, caller, []string{id}))

	entries, err := svc.Directory(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "Engineer", entries[0].Position.Name)
	require.Equal(t, "Go", entries[0].Competencies[0].Name)
}

func TestOutcome(t *testing.T) {
	require.Equal(t, "success", outcome(nil))
	require.Equal(t, "forbidden", outcome(auth.ErrUnauthenticated))
	require.Equal(t, "invalid", outcome(validation.Error{Field: "x"}))
	require.Equal(t, "error", outcome(errors.New("boom")))
}
