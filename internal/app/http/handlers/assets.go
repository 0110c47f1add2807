package handlers

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"quotedesk/go_backend/internal/domain/asset"
)

type assetResponse struct {
	URL      string `json:"url"`
	SourceID string `json:"source_id,omitempty"`
	MimeType string `json:"mime_type"`
}

// UploadAsset stores one multipart image ("file") and returns the canonical
// reference to put on a line item.
func (h *Handlers) UploadAsset(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxBodySize); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	file, fh, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "file read failed", http.StatusBadRequest)
		return
	}
	if len(data) == 0 {
		http.Error(w, "file is empty", http.StatusBadRequest)
		return
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mime.TypeByExtension(ext)
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mt
	}
	if !strings.HasPrefix(contentType, "image/") {
		http.Error(w, "file is not an image", http.StatusBadRequest)
		return
	}

	ref, err := h.Assets.Upload(r.Context(), asset.Inline(data, contentType), "")
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	h.writeJSON(w, http.StatusCreated, assetResponse{URL: ref.URL, SourceID: ref.SourceID, MimeType: contentType})
}
