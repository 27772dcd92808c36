package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/imzleep/abibuilder-sub000/internal/permission"
	"github.com/imzleep/abibuilder-sub000/internal/services"
	"github.com/imzleep/abibuilder-sub000/internal/storage"
	"go.uber.org/zap"
)

// multipart overhead allowed on top of the image itself
const uploadFormSlack = 64 << 10

// ImageUploader stores uploaded images.
type ImageUploader interface {
	Upload(ctx context.Context, viewer permission.Viewer, kind, filename, contentType string, r io.Reader, size int64) (services.UploadedImage, error)
	MaxBytes() int64
}

// ObjectReader opens stored objects for serving.
type ObjectReader interface {
	Open(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error)
}

type ImageHandler struct {
	images  ImageUploader
	objects ObjectReader
	logger  *zap.Logger
}

// NewImageHandler constructs an ImageHandler. objects may be nil when
// images are served from an external public URL.
func NewImageHandler(images ImageUploader, objects ObjectReader, logger *zap.Logger) *ImageHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImageHandler{images: images, objects: objects, logger: logger}
}

func ImageRouter(r chi.Router, h *ImageHandler) {
	r.Post("/", h.Upload)
	r.Get("/*", h.Serve)
}

// Upload accepts a multipart form with a "file" part and an optional
// "kind" field (builds or avatars).
func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if !viewerFromRequest(r).Authenticated() {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	maxBytes := h.images.MaxBytes()
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+uploadFormSlack)
	if err := r.ParseMultipartForm(maxBytes + uploadFormSlack); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid upload", Field: "file"})
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "file is required", Field: "file"})
		return
	}
	defer file.Close()

	kind := strings.TrimSpace(r.FormValue("kind"))
	if kind == "" {
		kind = services.ImageKindBuild
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		sniff := make([]byte, 512)
		n, _ := io.ReadFull(file, sniff)
		contentType = http.DetectContentType(sniff[:n])
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to read upload")
			return
		}
	}

	uploaded, err := h.images.Upload(r.Context(), viewerFromRequest(r), kind, header.Filename, contentType, file, header.Size)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, uploaded)
}

// Serve streams a stored image.
func (h *ImageHandler) Serve(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if h.objects == nil || key == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	body, info, err := h.objects.Open(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		h.logger.Error("open image", zap.String("key", key), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	defer body.Close()

	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	}
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.Header().Set("Cache-Control", storage.ImageCacheControl)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("stream image", zap.String("key", key), zap.Error(err))
	}
}
