package api

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/ashureev/chat-relay/internal/domain"
	"github.com/ashureev/chat-relay/internal/files"
)

const (
	uploadField       = "file"
	multipartOverhead = 64 << 10
)

var errNoFile = errors.New("no file uploaded")

// Upload stores one multipart file and returns its metadata.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	att, ok := h.receiveFile(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"file": att})
}

// ConvertToPDF stores one multipart file and labels it as a PDF.
// No conversion is performed.
func (h *Handler) ConvertToPDF(w http.ResponseWriter, r *http.Request) {
	att, ok := h.receiveFile(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, h.files.Convert(att))
}

func (h *Handler) receiveFile(w http.ResponseWriter, r *http.Request) (*domain.Attachment, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.files.MaxBytes()+multipartOverhead)

	att, err := h.saveFirstFile(r)
	if err == nil {
		return att, true
	}

	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, errNoFile):
		Error(w, http.StatusBadRequest, "No file uploaded")
	case errors.Is(err, files.ErrTooLarge), errors.As(err, &tooLarge):
		Error(w, http.StatusRequestEntityTooLarge, "File exceeds the "+h.files.LimitDescription()+" limit")
	default:
		h.logger.Error("File upload failed", "error", err)
		Error(w, http.StatusInternalServerError, "File upload failed")
	}
	return nil, false
}

func (h *Handler) saveFirstFile(r *http.Request) (*domain.Attachment, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, errNoFile
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, errNoFile
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() != uploadField || part.FileName() == "" {
			_ = part.Close()
			continue
		}
		return h.savePart(part)
	}
}

func (h *Handler) savePart(part *multipart.Part) (*domain.Attachment, error) {
	defer func() { _ = part.Close() }()
	return h.files.Save(part.FileName(), part.Header.Get("Content-Type"), part)
}
