package api

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/starford/folio/internal/storage"
)

// DefaultMaxUploadBytes caps a single upload.
const DefaultMaxUploadBytes = 10 << 20

// ImageExtensions are the accepted upload types.
var ImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg"}

// UploadHandler stores images under unique names and serves them back.
type UploadHandler struct {
	store    storage.Provider
	maxBytes int64
	logger   *slog.Logger
}

// NewUploadHandler creates an UploadHandler writing through store.
func NewUploadHandler(store storage.Provider, maxBytes int64, logger *slog.Logger) *UploadHandler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadHandler{store: store, maxBytes: maxBytes, logger: logger}
}

func allowedExt(ext string) bool {
	for _, e := range ImageExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// plainName rejects anything that is not a single path element.
func plainName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("filename is required")
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") || strings.HasPrefix(cleaned, ".") {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	return cleaned, nil
}

// Upload handles POST /api/uploads (multipart/form-data, field "file").
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	// Leave room for multipart framing around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+1<<20)

	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	if header.Filename == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("no filename provided"))
		return
	}
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedExt(ext) {
		writeJSON(w, http.StatusBadRequest, errorBody("unsupported file type "+ext))
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read upload"))
		return
	}
	if int64(len(data)) > h.maxBytes {
		writeJSON(w, http.StatusBadRequest, errorBody(fmt.Sprintf("file too large (max %dMB)", h.maxBytes>>20)))
		return
	}

	name := strings.ReplaceAll(uuid.NewString(), "-", "") + ext
	if err := h.store.Write(name, data); err != nil {
		h.logger.Error("upload write failed", slog.String("name", name), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to write file"))
		return
	}

	writeJSON(w, http.StatusOK, UploadResponse{
		URL:      "/uploads/" + name,
		Filename: header.Filename,
	})
}

// ServeFile handles GET /uploads/{name}.
func (h *UploadHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	name, err := plainName(chi.URLParam(r, "name"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	info, err := h.store.Stat(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f, err := h.store.Open(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	http.ServeContent(w, r, name, info.ModTime, f)
}
