package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coachbook/server/internal/audit"
	"github.com/coachbook/server/internal/auth"
	"github.com/coachbook/server/internal/domain/bookings"
	"github.com/coachbook/server/internal/domain/dashboard"
	"github.com/coachbook/server/internal/domain/users"
	"github.com/rs/zerolog"
)

const (
	coachID   = "01HZCOACH0000000000000000A"
	coacheeID = "01HZCOACHEE000000000000000"
	otherID   = "01HZOTHER00000000000000000"
	adminID   = "01HZADMIN00000000000000000"
)

var (
	coach   = auth.Identity{ID: coachID, Email: "coach@example.com", Name: "Coach", Role: auth.RoleCoach}
	coachee = auth.Identity{ID: coacheeID, Email: "coachee@example.com", Name: "Coachee", Role: auth.RoleCoachee}
	other   = auth.Identity{ID: otherID, Email: "other@example.com", Name: "Other", Role: auth.RoleCoach}
	admin   = auth.Identity{ID: adminID, Email: "admin@example.com", Name: "Admin", Role: auth.RoleAdmin}
)

// memUsers is an in-memory users.Repository.
type memUsers struct {
	mu           sync.Mutex
	users        map[string]*users.User
	positions    map[string]users.Position
	competencies map[string]users.Competency
	links        map[string][]string
}

func newMemUsers() *memUsers {
	m := &memUsers{
		users:        map[string]*users.User{},
		positions:    map[string]users.Position{"01JH0000000000000000000001": {ID: "01JH0000000000000000000001", Name: "Staff"}},
		competencies: map[string]users.Competency{},
		links:        map[string][]string{},
	}
	for _, id := range []auth.Identity{coach, coachee, other, admin} {
		m.users[id.ID] = &users.User{ID: id.ID, Email: id.Email, Name: id.Name, Role: id.Role}
	}
	return m
}

func (m *memUsers) GetByID(_ context.Context, id string) (*users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) UpsertByEmail(_ context.Context, p users.UpsertParams) (*users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == p.Email {
			u.Name, u.Image = p.Name, p.Image
			cp := *u
			return &cp, nil
		}
	}
	u := &users.User{ID: p.ID, Email: p.Email, Name: p.Name, Image: p.Image}
	m.users[p.ID] = u
	cp := *u
	return &cp, nil
}

func (m *memUsers) UpdateRole(_ context.Context, userID string, role auth.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return users.ErrNotFound
	}
	u.Role = role
	return nil
}

func (m *memUsers) UpdatePosition(_ context.Context, userID, positionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.positions[positionID]; !ok {
		return users.ErrPositionNotFound
	}
	u, ok := m.users[userID]
	if !ok {
		return users.ErrNotFound
	}
	u.PositionID = positionID
	return nil
}

func (m *memUsers) ReplaceCompetencies(_ context.Context, userID string, competencyIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range competencyIDs {
		if _, ok := m.competencies[id]; !ok {
			return users.ErrCompetencyNotFound
		}
	}
	m.links[userID] = append([]string(nil), competencyIDs...)
	return nil
}

func (m *memUsers) CreatePosition(_ context.Context, id, name string) (*users.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.positions {
		if p.Name == name {
			return nil, users.ErrPositionExists
		}
	}
	p := users.Position{ID: id, Name: name}
	m.positions[id] = p
	return &p, nil
}

func (m *memUsers) ListPositions(context.Context) ([]users.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]users.Position, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memUsers) FindCompetencyByName(_ context.Context, name string) (*users.Competency, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.competencies {
		if strings.EqualFold(c.Name, name) {
			cp := c
			return &cp, nil
		}
	}
	return nil, users.ErrCompetencyNotFound
}

func (m *memUsers) CreateCompetency(_ context.Context, id, name string) (*users.Competency, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := users.Competency{ID: id, Name: name}
	m.competencies[id] = c
	return &c, nil
}

func (m *memUsers) ListCompetencies(context.Context) ([]users.Competency, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]users.Competency, 0, len(m.competencies))
	for _, c := range m.competencies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memUsers) Directory(context.Context) ([]users.DirectoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]users.DirectoryEntry, 0, len(m.users))
	for _, u := range m.users {
		entry := users.DirectoryEntry{User: *u}
		if p, ok := m.positions[u.PositionID]; ok {
			entry.Position = &p
		}
		for _, id := range m.links[u.ID] {
			entry.Competencies = append(entry.Competencies, m.competencies[id])
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].User.Name < out[j].User.Name })
	return out, nil
}

// memBookings is an in-memory bookings.Repository backed by memUsers.
type memBookings struct {
	mu       sync.Mutex
	users    *memUsers
	bookings map[string]*bookings.Booking
}

func (m *memBookings) Create(_ context.Context, b bookings.Booking) (*bookings.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users.users[b.CoachID]; !ok {
		return nil, bookings.ErrParticipantNotFound
	}
	if _, ok := m.users.users[b.CoacheeID]; !ok {
		return nil, bookings.ErrParticipantNotFound
	}
	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now
	m.bookings[b.ID] = &b
	cp := b
	return &cp, nil
}

func (m *memBookings) GetByID(_ context.Context, id string) (*bookings.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, bookings.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memBookings) update(id string, fn func(*bookings.Booking)) (*bookings.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, bookings.ErrNotFound
	}
	fn(b)
	b.UpdatedAt = b.UpdatedAt.Add(time.Millisecond)
	cp := *b
	return &cp, nil
}

func (m *memBookings) UpdateStatus(_ context.Context, id string, status bookings.Status) (*bookings.Booking, error) {
	return m.update(id, func(b *bookings.Booking) { b.Status = status })
}

func (m *memBookings) UpdateCoachReport(_ context.Context, id string, p bookings.ReportParams) (*bookings.Booking, error) {
	return m.update(id, func(b *bookings.Booking) {
		b.Feedback, b.NextAction, b.Status = p.Feedback, p.NextAction, p.Status
	})
}

func (m *memBookings) UpdateCoacheeFeedback(_ context.Context, id string, p bookings.FeedbackParams) (*bookings.Booking, error) {
	return m.update(id, func(b *bookings.Booking) {
		rating := p.Rating
		b.CoacheeRating, b.CoacheeFeedback = &rating, p.Feedback
	})
}

func (m *memBookings) list(match func(*bookings.Booking) bool, counterpart func(*bookings.Booking) string) []bookings.View {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []bookings.View
	for _, b := range m.bookings {
		if !match(b) {
			continue
		}
		u := m.users.users[counterpart(b)]
		out = append(out, bookings.View{
			Booking:     *b,
			Counterpart: bookings.Participant{ID: u.ID, Name: u.Name, Email: u.Email},
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}

func (m *memBookings) ListForCoach(_ context.Context, id string) ([]bookings.View, error) {
	return m.list(func(b *bookings.Booking) bool { return b.CoachID == id },
		func(b *bookings.Booking) string { return b.CoacheeID }), nil
}

func (m *memBookings) ListForCoachee(_ context.Context, id string) ([]bookings.View, error) {
	return m.list(func(b *bookings.Booking) bool { return b.CoacheeID == id },
		func(b *bookings.Booking) string { return b.CoachID }), nil
}

type testEnv struct {
	users      *memUsers
	bookings   *memBookings
	cache      *dashboard.Cache
	userSvc    *users.Service
	bookingSvc *bookings.Service
	dashSvc    *dashboard.Service
	mux        *http.ServeMux
}

func newTestEnv(t *testing.T, strict bool) *testEnv {
	t.Helper()
	logger := zerolog.Nop()
	auditLogger := audit.NewLoggerWithZerolog(logger)

	userRepo := newMemUsers()
	bookingRepo := &memBookings{users: userRepo, bookings: map[string]*bookings.Booking{}}
	cache := dashboard.NewCache(16, time.Minute)

	env := &testEnv{
		users:      userRepo,
		bookings:   bookingRepo,
		cache:      cache,
		userSvc:    users.NewService(userRepo, cache, auditLogger, logger),
		bookingSvc: bookings.NewService(bookingRepo, cache, auditLogger, bookings.Config{StrictTransitions: strict}, logger),
	}
	env.dashSvc = dashboard.NewService(bookingRepo, env.userSvc, cache)

	profile := NewProfileHandler(env.userSvc, "test")
	booking := NewBookingsHandler(env.bookingSvc, "test")
	dash := NewDashboardHandler(env.dashSvc, "test")
	dash.now = func() time.Time { return time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC) }

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/me", profile.Me)
	mux.HandleFunc("POST /api/v1/me/role", profile.SetRole)
	mux.HandleFunc("PUT /api/v1/me/position", profile.SetPosition)
	mux.HandleFunc("PUT /api/v1/me/competencies", profile.SetCompetencies)
	mux.HandleFunc("GET /api/v1/positions", profile.ListPositions)
	mux.HandleFunc("POST /api/v1/positions", profile.CreatePosition)
	mux.HandleFunc("GET /api/v1/competencies", profile.ListCompetencies)
	mux.HandleFunc("POST /api/v1/competencies", profile.AddCompetency)
	mux.HandleFunc("POST /api/v1/bookings", booking.CreateAsCoachee)
	mux.HandleFunc("POST /api/v1/coach/bookings", booking.CreateAsCoach)
	mux.HandleFunc("PUT /api/v1/bookings/{id}/status", booking.SetStatus)
	mux.HandleFunc("PUT /api/v1/bookings/{id}/report", booking.SubmitReport)
	mux.HandleFunc("PUT /api/v1/bookings/{id}/feedback", booking.SubmitFeedback)
	mux.HandleFunc("GET /api/v1/dashboard/coach", dash.Coach)
	mux.HandleFunc("GET /api/v1/dashboard/coachee", dash.Coachee)
	env.mux = mux
	return env
}

// do sends a request as caller; a zero identity is anonymous.
func (e *testEnv) do(caller auth.Identity, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if caller.Authenticated() {
		req = req.WithContext(auth.WithIdentity(req.Context(), caller))
	}
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, req)
	return w
}
