package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/coachbook/server/internal/auth"
	"github.com/coachbook/server/internal/domain/dashboard"
)

type DashboardHandler struct {
	dashboards *dashboard.Service
	env        string
	now        func() time.Time
}

func NewDashboardHandler(service *dashboard.Service, env string) *DashboardHandler {
	return &DashboardHandler{dashboards: service, env: env, now: time.Now}
}

func (h *DashboardHandler) Coach(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.dashboards.CoachView)
}

func (h *DashboardHandler) Coachee(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.dashboards.CoacheeView)
}

// serve composes the view and applies the optional ?q= directory filter.
func (h *DashboardHandler) serve(
	w http.ResponseWriter,
	r *http.Request,
	compose func(context.Context, auth.Identity, time.Time) (*dashboard.View, error),
) {
	view, err := compose(r.Context(), auth.IdentityFromContext(r.Context()), h.now().UTC())
	if err != nil {
		writeError(w, r, err, h.env)
		return
	}
	directory := dashboard.FilterDirectory(view.Directory, r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, toDashboardResponse(view, directory))
}
