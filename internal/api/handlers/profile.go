package handlers

import (
	"net/http"

	"github.com/coachbook/server/internal/api/middleware"
	"github.com/coachbook/server/internal/auth"
	"github.com/coachbook/server/internal/domain/users"
)

// ProfileHandler serves the caller's own profile and the position and
// competency catalogues.
type ProfileHandler struct {
	users *users.Service
	env   string
}

func NewProfileHandler(userService *users.Service, env string) *ProfileHandler {
	return &ProfileHandler{users: userService, env: env}
}

type meResponse struct {
	Authenticated bool          `json:"authenticated"`
	User          *userResponse `json:"user,omitempty"`
	Landing       string        `json:"landing"`
}

// Me reports the caller and where the client should send them next. It
// answers anonymous callers too.
func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	if !identity.Authenticated() {
		writeJSON(w, http.StatusOK, meResponse{Landing: auth.Landing(identity)})
		return
	}

	user, err := h.users.Get(r.Context(), identity.ID)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	resp := toUserResponse(*user)
	writeJSON(w, http.StatusOK, meResponse{
		Authenticated: true,
		User:          &resp,
		Landing:       auth.Landing(identity),
	})
}

type csrfResponse struct {
	Token  string `json:"token"`
	Header string `json:"header"`
}

func (h *ProfileHandler) CSRF(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, csrfResponse{Token: middleware.CSRFToken(r), Header: middleware.CSRFHeader})
}

type setRoleRequest struct {
	Role string `json:"role"`
}

func (h *ProfileHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	var req setRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, h.env)
		return
	}
	identity := auth.IdentityFromContext(r.Context())
	if err := h.users.SetRole(r.Context(), identity, req.Role); err != nil {
		writeError(w, r, err, h.env)
		return
	}
	identity.Role = auth.NormalizeRole(req.Role)
	writeJSON(w, http.StatusOK, map[string]string{
		"role":    string(identity.Role),
		"landing": auth.Landing(identity),
	})
}

type setPositionRequest struct {
	PositionID string `json:"position_id"`
}

func (h *ProfileHandler) SetPosition(w http.ResponseWriter, r *http.Request) {
	var req setPositionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, h.env)
		return
	}
	if err := h.users.SetPosition(r.Context(), auth.IdentityFromContext(r.Context()), req.PositionID); err != nil {
		writeError(w, r, err, h.env)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setCompetenciesRequest struct {
	CompetencyIDs []string `json:"competency_ids"`
}

func (h *ProfileHandler) SetCompetencies(w http.ResponseWriter, r *http.Request) {
	var req setCompetenciesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, h.env)
		return
	}
	if err := h.users.SetCompetencies(r.Context(), auth.IdentityFromContext(r.Context()), req.CompetencyIDs); err != nil {
		writeError(w, r, err, h.env)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProfileHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.users.ListPositions(r.Context())
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	out := make([]positionResponse, 0, len(positions))
	for _, p := range positions {
		out = append(out, positionResponse{ID: p.ID, Name: p.Name})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

type nameRequest struct {
	Name string `json:"name"`
}

// CreatePosition is restricted to admins.
func (h *ProfileHandler) CreatePosition(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, h.env)
		return
	}
	position, err := h.users.CreatePosition(r.Context(), auth.IdentityFromContext(r.Context()), req.Name)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusCreated, positionResponse{ID: position.ID, Name: position.Name})
}

func (h *ProfileHandler) ListCompetencies(w http.ResponseWriter, r *http.Request) {
	competencies, err := h.users.ListCompetencies(r.Context())
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": toCompetencies(competencies)})
}

// AddCompetency returns the id of an existing case-insensitive match or of
// the newly created competency.
func (h *ProfileHandler) AddCompetency(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, h.env)
		return
	}
	id, err := h.users.AddCompetency(r.Context(), auth.IdentityFromContext(r.Context()), req.Name)
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}
