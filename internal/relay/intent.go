package relay

import (
	"path/filepath"
	"strings"

	"github.com/ashureev/chat-relay/internal/domain"
)

const pdfMimeType = "application/pdf"

// conversionPhrases trigger a PDF file output when an attachment is present.
var conversionPhrases = []string{
	"convert to pdf",
	"export as pdf",
	"make a pdf",
	"create pdf",
}

// WantsConversion reports whether message asks to turn the attachment into a PDF.
func WantsConversion(message string) bool {
	lower := strings.ToLower(message)
	for _, phrase := range conversionPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// conversionOutput builds the file descriptor for a conversion request.
// Producing the file itself is the upload collaborator's job.
func conversionOutput(message string, att *domain.Attachment) *domain.FileOutput {
	if att == nil || !WantsConversion(message) {
		return nil
	}
	name := strings.TrimSuffix(att.OriginalName, filepath.Ext(att.OriginalName))
	if name == "" {
		name = "document"
	}
	return &domain.FileOutput{
		Name:     name + ".pdf",
		URL:      att.URL,
		MimeType: pdfMimeType,
	}
}
