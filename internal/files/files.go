// Package files stores uploaded files on disk and describes stub conversions.
package files

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ashureev/chat-relay/internal/domain"
	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const (
	// URLPrefix is the path stored files are served under.
	URLPrefix = "/uploads/"

	pdfMimeType    = "application/pdf"
	sniffLen       = 3072
	maxNameLength  = 200
	convertMessage = "File converted successfully"
)

// ErrTooLarge is returned when an upload exceeds the configured limit.
var ErrTooLarge = errors.New("file too large")

// Conversion is the descriptor returned by the stub PDF conversion.
// No conversion takes place; the stored file is labeled as a PDF.
type Conversion struct {
	Message      string `json:"message"`
	OriginalName string `json:"originalName"`
	URL          string `json:"url"`
	MimeType     string `json:"mimetype"`
}

// Storage writes uploads into a single directory.
type Storage struct {
	dir      string
	maxBytes int64
	newID    func() string
	logger   *slog.Logger
}

// NewStorage creates the upload directory if needed.
func NewStorage(dir string, maxBytes int64, logger *slog.Logger) (*Storage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Storage{dir: dir, maxBytes: maxBytes, newID: uuid.NewString, logger: logger}, nil
}

// MaxBytes returns the per-file size limit.
func (s *Storage) MaxBytes() int64 {
	return s.maxBytes
}

// LimitDescription renders the size limit for error messages.
func (s *Storage) LimitDescription() string {
	return humanize.IBytes(uint64(s.maxBytes))
}

// Save stores r as "<uuid>-<sanitized name>" and returns its metadata.
// declaredType is used when content sniffing is inconclusive.
func (s *Storage) Save(originalName, declaredType string, r io.Reader) (*domain.Attachment, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	mimeType := detectType(head, declaredType)

	filename := s.newID() + "-" + SanitizeName(originalName)
	path := filepath.Join(s.dir, filename)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}

	body := io.MultiReader(bytes.NewReader(head), r)
	written, copyErr := io.Copy(f, io.LimitReader(body, s.maxBytes+1))
	closeErr := f.Close()
	if copyErr == nil && written > s.maxBytes {
		copyErr = fmt.Errorf("%w: limit is %s", ErrTooLarge, s.LimitDescription())
	}
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			s.logger.Warn("Failed to remove partial upload", "path", path, "error", rmErr)
		}
		if errors.Is(copyErr, ErrTooLarge) {
			return nil, copyErr
		}
		return nil, fmt.Errorf("write upload: %w", copyErr)
	}

	s.logger.Info("File uploaded", "filename", filename, "size", humanize.IBytes(uint64(written)), "mimetype", mimeType)
	return &domain.Attachment{
		OriginalName: originalName,
		Filename:     filename,
		URL:          URLPrefix + filename,
		MimeType:     mimeType,
		Size:         written,
	}, nil
}

// Convert labels a stored file as a PDF without transforming it.
func (s *Storage) Convert(att *domain.Attachment) *Conversion {
	return &Conversion{
		Message:      convertMessage,
		OriginalName: att.OriginalName,
		URL:          att.URL,
		MimeType:     pdfMimeType,
	}
}

// Handler serves stored files under URLPrefix. Directory listings are refused.
func (s *Storage) Handler() http.Handler {
	fs := http.StripPrefix(URLPrefix, http.FileServer(http.Dir(s.dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		fs.ServeHTTP(w, r)
	})
}

// SanitizeName reduces a client-supplied file name to a safe base name.
func SanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	clean := strings.TrimLeft(b.String(), ".")
	if len(clean) > maxNameLength {
		clean = clean[len(clean)-maxNameLength:]
	}
	if clean == "" {
		return "file"
	}
	return clean
}

func detectType(head []byte, declared string) string {
	detected := mimetype.Detect(head)
	if detected.Is("application/octet-stream") && declared != "" {
		return declared
	}
	return detected.String()
}
