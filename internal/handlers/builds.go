package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/imzleep/abibuilder-sub000/internal/permission"
	"github.com/imzleep/abibuilder-sub000/internal/query"
	"github.com/imzleep/abibuilder-sub000/internal/services"
	"github.com/imzleep/abibuilder-sub000/types"
	"go.uber.org/zap"
)

// BuildService is the build surface used by the HTTP layer.
type BuildService interface {
	ListBuilds(ctx context.Context, viewer permission.Viewer, f query.FilterSet, pageSize int) (types.BuildPage, error)
	FeedPage(ctx context.Context, viewer permission.Viewer, f query.FilterSet, pageSize int) (types.FeedPage, error)
	GetBuild(ctx context.Context, viewer permission.Viewer, id int64) (types.ProjectedBuild, error)
	CreateBuild(ctx context.Context, viewer permission.Viewer, payload types.BuildPayload) (types.Build, error)
	UpdateBuild(ctx context.Context, viewer permission.Viewer, id int64, payload types.BuildPayload) (types.ProjectedBuild, error)
	DeleteBuild(ctx context.Context, viewer permission.Viewer, id int64) error
}

// LedgerService toggles votes and bookmarks.
type LedgerService interface {
	ToggleVote(ctx context.Context, viewer permission.Viewer, buildID int64, dir types.VoteDirection) (types.VoteResult, error)
	ToggleBookmark(ctx context.Context, viewer permission.Viewer, buildID int64) (types.BookmarkResult, error)
}

// BuildHandler provides HTTP handlers for builds.
type BuildHandler struct {
	builds BuildService
	ledger LedgerService
	logger *zap.Logger
}

// NewBuildHandler constructs a handler with the provided build and ledger
// services.
func NewBuildHandler(builds BuildService, ledger LedgerService, logger *zap.Logger) *BuildHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BuildHandler{builds: builds, ledger: ledger, logger: logger}
}

// BuildRouter registers build routes on the given router. The viewer
// middleware must already be installed.
func BuildRouter(r chi.Router, h *BuildHandler) {
	r.Get("/", h.ListBuilds)
	r.Post("/", h.CreateBuild)
	r.Get("/feed", h.Feed)
	r.Route("/{buildID}", func(r chi.Router) {
		r.Get("/", h.GetBuild)
		r.Put("/", h.UpdateBuild)
		r.Delete("/", h.DeleteBuild)
		r.Post("/vote", h.Vote)
		r.Post("/bookmark", h.Bookmark)
	})
}

func (h *BuildHandler) ListBuilds(w http.ResponseWriter, r *http.Request) {
	f, pageSize, ok := listingRequest(w, r)
	if !ok {
		return
	}
	page, err := h.builds.ListBuilds(r.Context(), viewerFromRequest(r), f, pageSize)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *BuildHandler) Feed(w http.ResponseWriter, r *http.Request) {
	f, pageSize, ok := listingRequest(w, r)
	if !ok {
		return
	}
	feed, err := h.builds.FeedPage(r.Context(), viewerFromRequest(r), f, pageSize)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, feed)
}

func (h *BuildHandler) GetBuild(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "buildID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	build, err := h.builds.GetBuild(r.Context(), viewerFromRequest(r), id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, build)
}

func (h *BuildHandler) CreateBuild(w http.ResponseWriter, r *http.Request) {
	var payload types.BuildPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := h.builds.CreateBuild(r.Context(), viewerFromRequest(r), payload)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *BuildHandler) UpdateBuild(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "buildID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var payload types.BuildPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := h.builds.UpdateBuild(r.Context(), viewerFromRequest(r), id, payload)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *BuildHandler) DeleteBuild(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "buildID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.builds.DeleteBuild(r.Context(), viewerFromRequest(r), id); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// VoteRequest carries the direction of a vote toggle.
type VoteRequest struct {
	Direction string `json:"direction"`
}

func (h *BuildHandler) Vote(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "buildID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	viewer := viewerFromRequest(r)
	if !viewer.Authenticated() {
		writeServiceError(w, h.logger, services.ErrAuthRequired)
		return
	}
	var req VoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.ledger.ToggleVote(r.Context(), viewer, id, types.VoteDirection(req.Direction))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *BuildHandler) Bookmark(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "buildID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.ledger.ToggleBookmark(r.Context(), viewerFromRequest(r), id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
