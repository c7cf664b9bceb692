// Package prompt builds the single text prompt sent upstream for a chat turn.
package prompt

import (
	"fmt"
	"strings"

	"github.com/ashureev/chat-relay/internal/domain"
)

const (
	transcriptHeader  = "\n\nPrevious conversation context:\n"
	messageHeader     = "\n\nUser's message: "
	instructionsJoin  = "\n\nUser message: "
	attachmentNoteFmt = "[User has attached a file: %s]"
)

// Input is everything the assembler needs for one request.
//
// History is the recent session history and, as its last element, the
// in-flight user turn that was just stored. When instructions are present
// that turn is dropped because the message is carried inside the
// instructions block instead.
type Input struct {
	Message      string
	Attachment   *domain.Attachment
	Instructions string
	History      []domain.Turn
}

// Assembler renders prompts for one persona and transcript window.
type Assembler struct {
	persona Persona
	window  int
}

// NewAssembler creates an assembler. window is the maximum number of turns
// rendered into the transcript.
func NewAssembler(persona Persona, window int) *Assembler {
	if window <= 0 {
		window = 8
	}
	return &Assembler{persona: persona, window: window}
}

// Window returns the transcript window size.
func (a *Assembler) Window() int {
	return a.window
}

// Assemble builds the outbound prompt. It never fails; empty inputs yield the
// persona directive followed by an empty message.
func (a *Assembler) Assemble(in Input) string {
	message := AnnotateAttachment(in.Message, in.Attachment)

	turns := in.History
	if in.Instructions != "" {
		message = in.Instructions + instructionsJoin + message
		if len(turns) > 0 {
			turns = turns[:len(turns)-1]
		}
	}
	if len(turns) > a.window {
		turns = turns[len(turns)-a.window:]
	}

	var b strings.Builder
	b.WriteString(a.persona.Directive())
	b.WriteString(RenderTranscript(turns))
	b.WriteString(messageHeader)
	b.WriteString(message)
	return b.String()
}

// AnnotateAttachment appends a bracketed note naming the attached file.
func AnnotateAttachment(message string, att *domain.Attachment) string {
	if att == nil {
		return message
	}
	note := fmt.Sprintf(attachmentNoteFmt, att.OriginalName)
	if message == "" {
		return note
	}
	return message + "\n\n" + note
}

// RenderTranscript flattens turns into "User:"/"Assistant:" lines under a
// fixed header. No turns renders as "".
func RenderTranscript(turns []domain.Turn) string {
	if len(turns) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(transcriptHeader)
	for _, t := range turns {
		switch t.Role {
		case domain.RoleUser:
			b.WriteString("User: ")
		case domain.RoleModel:
			b.WriteString("Assistant: ")
		default:
			continue
		}
		b.WriteString(t.Text)
		b.WriteByte('\n')
	}
	return b.String()
}
