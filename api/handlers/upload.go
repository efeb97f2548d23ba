package handlers

import (
	"encoding/base64"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/BaSui01/imageflow/types"
	"go.uber.org/zap"
)

// =============================================================================
// 📤 Reference image upload endpoints
// =============================================================================

// maxUploadBytes bounds one uploaded reference image.
const maxUploadBytes = 10 << 20

// UploadHandler turns uploaded reference images into data URLs the
// generation endpoints accept directly.
type UploadHandler struct {
	logger *zap.Logger
}

func NewUploadHandler(logger *zap.Logger) *UploadHandler {
	return &UploadHandler{logger: logger}
}

func encodeUpload(file multipart.File, header *multipart.FileHeader) (string, error) {
	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return "", types.NewError(types.ErrValidation,
			"unsupported upload type "+contentType+", expected image/*")
	}

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		return "", types.NewError(types.ErrInternalError, "read upload").WithCause(err)
	}
	if len(data) > maxUploadBytes {
		return "", types.NewError(types.ErrValidation, "upload exceeds the 10MB limit")
	}

	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// Upload handles POST /api/upload with a single "file" part.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrValidation, "invalid multipart form", h.logger)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrValidation, "missing file part", h.logger)
		return
	}
	defer file.Close()

	dataURL, err := encodeUpload(file, header)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]string{"image": dataURL, "filename": header.Filename})
}

// BatchUpload handles POST /api/batch-upload with repeated "files" parts.
// One bad file fails the whole batch so callers never get a partial list.
func (h *UploadHandler) BatchUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrValidation, "invalid multipart form", h.logger)
		return
	}
	if r.MultipartForm == nil || len(r.MultipartForm.File["files"]) == 0 {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrValidation, "missing files parts", h.logger)
		return
	}

	headers := r.MultipartForm.File["files"]
	images := make([]string, 0, len(headers))
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			WriteErrorMessage(w, http.StatusBadRequest, types.ErrValidation, "unreadable file "+header.Filename, h.logger)
			return
		}
		dataURL, encErr := encodeUpload(file, header)
		file.Close()
		if encErr != nil {
			WriteError(w, encErr, h.logger)
			return
		}
		images = append(images, dataURL)
	}
	WriteSuccess(w, map[string]any{"images": images, "count": len(images)})
}
