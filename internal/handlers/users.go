package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/imzleep/abibuilder-sub000/internal/permission"
	"github.com/imzleep/abibuilder-sub000/internal/query"
	"github.com/imzleep/abibuilder-sub000/types"
	"go.uber.org/zap"
)

// ProfileService is the profile surface used by the user endpoints.
type ProfileService interface {
	GetByUsername(ctx context.Context, username string) (types.Profile, error)
	Summary(ctx context.Context, viewer permission.Viewer, username string) (types.ProfileSummary, error)
	UpdateProfile(ctx context.Context, viewer permission.Viewer, upd types.ProfileUpdate) (types.Profile, error)
	SetRoles(ctx context.Context, viewer permission.Viewer, userID int64, roles types.RoleFlags) error
}

// UserListings lists the builds and bookmarks of a single profile.
type UserListings interface {
	ListUserBuilds(ctx context.Context, viewer permission.Viewer, userID int64, f query.FilterSet, pageSize int) (types.BuildPage, error)
	ListUserBookmarks(ctx context.Context, viewer permission.Viewer, userID int64, f query.FilterSet, pageSize int) (types.BuildPage, error)
}

type UserHandler struct {
	profiles ProfileService
	listings UserListings
	logger   *zap.Logger
}

// NewUserHandler constructs a UserHandler with the provided services.
func NewUserHandler(profiles ProfileService, listings UserListings, logger *zap.Logger) *UserHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserHandler{profiles: profiles, listings: listings, logger: logger}
}

// UserRouter registers profile routes. requireAuth guards self-service
// updates.
func UserRouter(r chi.Router, h *UserHandler, requireAuth func(http.Handler) http.Handler) {
	r.With(requireAuth).Patch("/me", h.UpdateMe)
	r.Route("/{username}", func(r chi.Router) {
		r.Get("/", h.GetProfile)
		r.Get("/builds", h.ListBuilds)
		r.Get("/bookmarks", h.ListBookmarks)
		r.Put("/roles", h.SetRoles)
	})
}

func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	summary, err := h.profiles.Summary(r.Context(), viewerFromRequest(r), usernameParam(r))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *UserHandler) ListBuilds(w http.ResponseWriter, r *http.Request) {
	h.listFor(w, r, h.listings.ListUserBuilds)
}

func (h *UserHandler) ListBookmarks(w http.ResponseWriter, r *http.Request) {
	h.listFor(w, r, h.listings.ListUserBookmarks)
}

type userListFunc func(ctx context.Context, viewer permission.Viewer, userID int64, f query.FilterSet, pageSize int) (types.BuildPage, error)

func (h *UserHandler) listFor(w http.ResponseWriter, r *http.Request, list userListFunc) {
	f, pageSize, ok := listingRequest(w, r)
	if !ok {
		return
	}
	profile, err := h.profiles.GetByUsername(r.Context(), usernameParam(r))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	page, err := list(r.Context(), viewerFromRequest(r), profile.ID, f, pageSize)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var upd types.ProfileUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	profile, err := h.profiles.UpdateProfile(r.Context(), viewerFromRequest(r), upd)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// SetRoles replaces the role flags of a profile. Admin only.
func (h *UserHandler) SetRoles(w http.ResponseWriter, r *http.Request) {
	var roles types.RoleFlags
	if err := decodeJSON(w, r, &roles); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	viewer := viewerFromRequest(r)
	if !viewer.Authenticated() {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	profile, err := h.profiles.GetByUsername(r.Context(), usernameParam(r))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if err := h.profiles.SetRoles(r.Context(), viewer, profile.ID, roles); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func usernameParam(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "username"))
}
