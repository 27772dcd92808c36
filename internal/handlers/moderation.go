package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/imzleep/abibuilder-sub000/internal/permission"
	"github.com/imzleep/abibuilder-sub000/internal/query"
	"github.com/imzleep/abibuilder-sub000/types"
	"go.uber.org/zap"
)

// ModerationService is the review surface used by the HTTP layer.
type ModerationService interface {
	Queue(ctx context.Context, viewer permission.Viewer, f query.FilterSet, pageSize int) (types.BuildPage, error)
	ReviewBuild(ctx context.Context, viewer permission.Viewer, buildID int64, edits *types.BuildPayload, status types.BuildStatus) (types.ProjectedBuild, error)
}

type ModerationHandler struct {
	moderation ModerationService
	logger     *zap.Logger
}

// NewModerationHandler constructs a ModerationHandler.
func NewModerationHandler(moderation ModerationService, logger *zap.Logger) *ModerationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModerationHandler{moderation: moderation, logger: logger}
}

func ModerationRouter(r chi.Router, h *ModerationHandler) {
	r.Get("/queue", h.Queue)
	r.Post("/builds/{buildID}", h.Review)
}

func (h *ModerationHandler) Queue(w http.ResponseWriter, r *http.Request) {
	f, pageSize, ok := listingRequest(w, r)
	if !ok {
		return
	}
	page, err := h.moderation.Queue(r.Context(), viewerFromRequest(r), f, pageSize)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// ReviewRequest is a moderation decision with optional content edits.
type ReviewRequest struct {
	Status string              `json:"status"`
	Edits  *types.BuildPayload `json:"edits,omitempty"`
}

func (h *ModerationHandler) Review(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "buildID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req ReviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	build, err := h.moderation.ReviewBuild(r.Context(), viewerFromRequest(r), id, req.Edits, types.BuildStatus(req.Status))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, build)
}
