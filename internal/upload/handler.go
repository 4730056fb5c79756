package upload

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"kenalan/internal/constants"
	"kenalan/internal/errors"
	"kenalan/internal/metrics"
	"kenalan/internal/models"
	"kenalan/internal/security"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// Handler stores uploaded file bytes and hands back a retrievable URL. The
// chat core never touches file bytes; it only relays the returned URL as a
// message payload.
type Handler struct {
	dir           string
	maxSizeBytes  int64
	publicBaseURL string
	logger        *logrus.Logger
}

// NewHandler creates an upload handler rooted at cfg.Dir, creating the
// directory if needed.
func NewHandler(cfg models.UploadConfig, logger *logrus.Logger) (*Handler, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = constants.DefaultUploadDir
	}
	maxSizeMB := cfg.MaxSizeMB
	if maxSizeMB <= 0 {
		maxSizeMB = constants.DefaultMaxUploadSizeMB
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeUploadFailed, "failed to create upload directory")
	}

	return &Handler{
		dir:           dir,
		maxSizeBytes:  int64(maxSizeMB) * constants.BytesPerMegabyte,
		publicBaseURL: strings.TrimSuffix(cfg.PublicBaseURL, "/"),
		logger:        logger,
	}, nil
}

// UploadResponse is the body returned on a successful upload.
type UploadResponse struct {
	URL string `json:"url"`
}

// HandleUpload accepts a multipart "file" field, stores it under a fresh
// name, and returns its URL.
func (h *Handler) HandleUpload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxSizeBytes)

		file, header, err := r.FormFile("file")
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "missing or oversized file")
			return
		}
		defer file.Close()

		ext := strings.ToLower(filepath.Ext(header.Filename))
		if !allowedExtensions[ext] {
			h.writeError(w, http.StatusUnsupportedMediaType, fmt.Sprintf("unsupported file type: %s", ext))
			return
		}

		name := uuid.NewString() + ext
		if err := security.ValidateFilePathWithBase(name, h.dir); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid file name")
			return
		}

		dst, err := os.Create(filepath.Join(h.dir, name)) // #nosec G304 - name is a generated UUID validated against the base dir
		if err != nil {
			h.logger.WithError(err).Error("Failed to create upload file")
			h.writeError(w, http.StatusInternalServerError, "upload failed")
			return
		}
		defer dst.Close()

		if _, err := io.Copy(dst, file); err != nil {
			h.logger.WithError(err).Error("Failed to write upload file")
			h.writeError(w, http.StatusInternalServerError, "upload failed")
			return
		}

		metrics.IncrementCounter("uploads_total", nil, "Stored uploads")

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(UploadResponse{URL: h.publicURL(name)}); err != nil {
			h.logger.WithError(err).Error("Failed to encode upload response")
		}
	}
}

// ServeFiles returns a handler serving previously stored uploads.
func (h *Handler) ServeFiles() http.Handler {
	return http.FileServer(http.Dir(h.dir))
}

func (h *Handler) publicURL(name string) string {
	return h.publicBaseURL + "/uploads/" + name
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	metrics.IncrementCounter("upload_failures_total", nil, "Rejected uploads")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
