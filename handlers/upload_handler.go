package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/Dosada05/esports-results/storage"
	"github.com/google/uuid"
)

const maxUploadSize = 10 << 20 // 10 MB

var allowedUploadTypes = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"image/webp":      true,
	"video/mp4":       true,
	"application/pdf": true,
}

var (
	errFileTooLarge       = errors.New("file exceeds the 10 MB upload limit")
	errUnsupportedMedia   = errors.New("unsupported file type, expected an image, mp4 or pdf")
	errMissingUploadField = errors.New("multipart form must contain a 'file' field")
)

type UploadHandler struct {
	uploader storage.FileUploader
}

func NewUploadHandler(uploader storage.FileUploader) *UploadHandler {
	return &UploadHandler{uploader: uploader}
}

// UploadEvidenceHandler stores a proof file and returns its public URL.
// The returned URL is meant to be submitted back as an evidence item or a
// proof_url entry in a result payload.
func (h *UploadHandler) UploadEvidenceHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		badRequestResponse(w, r, errFileTooLarge)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		badRequestResponse(w, r, errMissingUploadField)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !allowedUploadTypes[contentType] {
		errorResponse(w, r, http.StatusUnsupportedMediaType, errUnsupportedMedia.Error())
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	key := fmt.Sprintf("evidence/%s%s", uuid.NewString(), ext)

	result, err := h.uploader.Upload(r.Context(), key, contentType, file)
	if err != nil {
		serverErrorResponse(w, r, err)
		return
	}

	response := jsonResponse{
		"key": result.Key,
		"url": h.uploader.GetPublicURL(result.Key),
	}
	if err := writeJSON(w, http.StatusCreated, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
