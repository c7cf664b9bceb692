package relay

import "github.com/ashureev/chat-relay/internal/domain"

// Stage names a step of a chat exchange. Used in logs.
type Stage string

const (
	StageValidating       Stage = "validating"
	StageSessionResolved  Stage = "session_resolved"
	StagePromptAssembled  Stage = "prompt_assembled"
	StageAwaitingUpstream Stage = "awaiting_upstream"
	StageSanitizing       Stage = "sanitizing"
	StageCommitted        Stage = "committed"
	StageFailed           Stage = "failed"
)

// ChatRequest is one user message sent to the relay.
type ChatRequest struct {
	Message           string             `json:"message" validate:"max=32000"`
	SessionID         string             `json:"sessionId" validate:"omitempty,sessionid"`
	SystemInstruction string             `json:"systemInstruction" validate:"max=8000"`
	Attachment        *domain.Attachment `json:"attachment"`
	UserID            string             `json:"-"`
}

// ChatResult is the reply to a chat request.
type ChatResult struct {
	Response   string             `json:"response"`
	SessionID  string             `json:"sessionId"`
	FileOutput *domain.FileOutput `json:"fileOutput,omitempty"`
}

// InstructionsRequest sets custom instructions on a session.
type InstructionsRequest struct {
	Instructions string `json:"instructions" validate:"max=8000"`
	SessionID    string `json:"sessionId" validate:"omitempty,sessionid"`
}

// ClearRequest empties a session's history.
type ClearRequest struct {
	SessionID         string `json:"sessionId" validate:"omitempty,sessionid"`
	ResetInstructions bool   `json:"resetInstructions"`
}
