package domain

import (
	"time"
)

// Role identifies who authored a turn.
type Role string

const (
	// RoleUser marks a turn written by the person chatting.
	RoleUser Role = "user"
	// RoleModel marks a turn produced by the upstream model.
	RoleModel Role = "model"
)

// Turn is one message in a session. Turns are appended or evicted, never edited.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Session holds a conversation thread and its optional custom instructions.
type Session struct {
	ID                 string    `json:"id"`
	History            []Turn    `json:"history"`
	CustomInstructions string    `json:"custom_instructions,omitempty"`
	LastActivity       time.Time `json:"last_activity"`
}

// HasInstructions returns true if custom instructions are set.
func (s *Session) HasInstructions() bool {
	return s.CustomInstructions != ""
}

// Expired returns true if the session has been idle for longer than ttl.
func (s *Session) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.LastActivity) > ttl
}

// Attachment is upload metadata passed through to annotate a prompt.
// File contents are never read by the relay.
type Attachment struct {
	OriginalName string `json:"originalName" validate:"required,max=255"`
	Filename     string `json:"filename,omitempty" validate:"max=512"`
	URL          string `json:"url" validate:"max=2048"`
	MimeType     string `json:"mimetype,omitempty"`
	Size         int64  `json:"size,omitempty"`
}

// FileOutput describes a file the caller should offer for download.
type FileOutput struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	MimeType string `json:"mimetype"`
}
