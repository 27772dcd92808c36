package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/imzleep/abibuilder-sub000/internal/permission"
)

// DefaultMaxImageBytes caps the size of a single uploaded image.
const DefaultMaxImageBytes = 5 << 20

// Image kinds, used as the first segment of object keys.
const (
	ImageKindBuild  = "builds"
	ImageKindAvatar = "avatars"
)

// ErrUploadsDisabled is returned when no object storage is configured.
var ErrUploadsDisabled = errors.New("image uploads are disabled")

var imageExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// ObjectStore is the object storage surface used for images.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
}

// UploadedImage is the stored location of an uploaded image.
type UploadedImage struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// ImageService stores build images and avatars and returns their public URL.
type ImageService struct {
	store    ObjectStore
	baseURL  string
	maxBytes int64
	now      func() time.Time
	newID    func() string
}

// NewImageService constructs an ImageService. A nil store disables uploads.
func NewImageService(store ObjectStore, publicBaseURL string, maxBytes int64) *ImageService {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	return &ImageService{
		store:    store,
		baseURL:  strings.TrimRight(publicBaseURL, "/"),
		maxBytes: maxBytes,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
}

// MaxBytes returns the upload size cap.
func (s *ImageService) MaxBytes() int64 {
	return s.maxBytes
}

// Upload stores an image of the given kind for the viewer.
func (s *ImageService) Upload(ctx context.Context, viewer permission.Viewer, kind, filename, contentType string, r io.Reader, size int64) (UploadedImage, error) {
	if !viewer.Authenticated() {
		return UploadedImage{}, ErrAuthRequired
	}
	if s.store == nil {
		return UploadedImage{}, ErrUploadsDisabled
	}
	if kind != ImageKindBuild && kind != ImageKindAvatar {
		return UploadedImage{}, invalid("kind", "must be builds or avatars")
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return UploadedImage{}, invalid("file", "must be an image")
	}
	if size <= 0 {
		return UploadedImage{}, invalid("file", "is empty")
	}
	if size > s.maxBytes {
		return UploadedImage{}, invalid("file", fmt.Sprintf("must be at most %d bytes", s.maxBytes))
	}

	key := s.objectKey(kind, filename, mediaType)
	if err := s.store.Put(ctx, key, io.LimitReader(r, s.maxBytes), size, mediaType); err != nil {
		return UploadedImage{}, &StoreError{Op: "put image", Err: err}
	}
	return UploadedImage{Key: key, URL: s.PublicURL(key)}, nil
}

// PublicURL returns the public URL of an object key.
func (s *ImageService) PublicURL(key string) string {
	return s.baseURL + "/" + key
}

// DeleteURL removes the object behind a public URL. URLs that do not point
// into this storage are ignored.
func (s *ImageService) DeleteURL(ctx context.Context, url string) error {
	if s.store == nil || s.baseURL == "" || !strings.HasPrefix(url, s.baseURL+"/") {
		return nil
	}
	return s.store.Delete(ctx, strings.TrimPrefix(url, s.baseURL+"/"))
}

// objectKey lays keys out as <kind>/<yyyy>/<mm>/<uuid><ext>.
func (s *ImageService) objectKey(kind, filename, mediaType string) string {
	ext := strings.ToLower(path.Ext(filename))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".webp", ".gif":
	default:
		ext = imageExtensions[mediaType]
	}
	now := s.now().UTC()
	return fmt.Sprintf("%s/%04d/%02d/%s%s", kind, now.Year(), int(now.Month()), s.newID(), ext)
}
