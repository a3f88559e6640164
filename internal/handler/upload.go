package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/product-registry/internal/apperror"
	"github.com/sakif/product-registry/internal/storage"
)

// UploadResponse carries the public URL of the stored file. The field name
// is kept from the first version of the API.
type UploadResponse struct {
	Filename string `json:"filename"`
}

// UploadHandler forwards multipart uploads to object storage.
type UploadHandler struct {
	uploader storage.Uploader // nil when storage is not configured
	maxBytes int64
	logger   *slog.Logger
}

func NewUploadHandler(uploader storage.Uploader, maxBytes int64, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{uploader: uploader, maxBytes: maxBytes, logger: logger}
}

// HandleUploadImage handles POST /upload/img with the file in the "file" part.
func (h *UploadHandler) HandleUploadImage(w http.ResponseWriter, r *http.Request) {
	if h.uploader == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Error:   "storage_unavailable",
			Message: "file storage is not configured",
		})
		return
	}

	// Leave some room for the multipart envelope around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+64<<10)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, apperror.ValidationFailed("file", "file is too large"))
			return
		}
		writeError(w, apperror.ValidationFailed("file", "a multipart \"file\" field is required"))
		return
	}
	defer file.Close()

	if header.Size > h.maxBytes {
		writeError(w, apperror.ValidationFailed("file", "file is too large"))
		return
	}

	url, err := h.uploader.Upload(r.Context(), storage.Object{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		h.logger.Error("upload failed",
			slog.String("filename", header.Filename),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "upload_failed",
			Message: "Something went wrong",
		})
		return
	}

	writeJSON(w, http.StatusOK, UploadResponse{Filename: url})
}
