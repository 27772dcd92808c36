package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/imzleep/abibuilder-sub000/internal/permission"
	"github.com/imzleep/abibuilder-sub000/internal/query"
	"github.com/imzleep/abibuilder-sub000/internal/services"
	"go.uber.org/zap"
)

type contextKey string

const (
	contextSubjectKey contextKey = "sub"
	contextViewerKey  contextKey = "viewer"
)

const maxJSONBodyBytes = 1 << 20

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func userIDFromContext(ctx context.Context) (int64, error) {
	value := ctx.Value(contextSubjectKey)
	switch subject := value.(type) {
	case int64:
		if subject < 1 {
			return 0, errors.New("invalid subject")
		}
		return subject, nil
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(subject), 10, 64)
		if err != nil || parsed < 1 {
			return 0, errors.New("invalid subject")
		}
		return parsed, nil
	default:
		return 0, errors.New("missing subject")
	}
}

// viewerFromRequest returns the viewer resolved by the auth middleware.
// Requests that did not pass through it are anonymous.
func viewerFromRequest(r *http.Request) permission.Viewer {
	if v, ok := r.Context().Value(contextViewerKey).(permission.Viewer); ok {
		return v
	}
	return permission.Anonymous()
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeServiceError maps a service error onto its HTTP status. Unexpected
// failures are logged and reported without detail.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: verr.Error(), Field: verr.Field})
	case errors.Is(err, services.ErrAuthRequired):
		writeError(w, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, services.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, services.ErrConflict):
		writeError(w, http.StatusConflict, "already exists")
	case errors.Is(err, services.ErrUploadsDisabled):
		writeError(w, http.StatusServiceUnavailable, "image uploads are disabled")
	default:
		var serr *services.StoreError
		if errors.As(err, &serr) {
			logger.Error("store failure", zap.String("op", serr.Op), zap.Error(serr.Err))
		} else {
			logger.Error("unexpected service error", zap.Error(err))
		}
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid request")
	}
	return nil
}

func parseID(r *http.Request, param string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id < 1 {
		return 0, errors.New("invalid " + param)
	}
	return id, nil
}

// parsePageSize reads the optional limit parameter. Values above the
// maximum page size are clamped.
func parsePageSize(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, errors.New("invalid limit")
	}
	if limit > query.MaxPageSize {
		limit = query.MaxPageSize
	}
	return limit, nil
}

// listingRequest reads the filter set and page size of a listing request.
func listingRequest(w http.ResponseWriter, r *http.Request) (query.FilterSet, int, bool) {
	pageSize, err := parsePageSize(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return query.FilterSet{}, 0, false
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		if page, err := strconv.Atoi(raw); err != nil || page < 1 {
			writeError(w, http.StatusBadRequest, "invalid page")
			return query.FilterSet{}, 0, false
		}
	}
	return query.ParseFilterSet(r.URL.Query()), pageSize, true
}
