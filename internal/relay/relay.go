// Package relay orchestrates one chat exchange: session lookup, prompt
// assembly, a single upstream completion, sanitization and commit.
package relay

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/chat-relay/internal/domain"
	"github.com/ashureev/chat-relay/internal/observability"
	"github.com/ashureev/chat-relay/internal/prompt"
	"github.com/ashureev/chat-relay/internal/sanitize"
	"github.com/ashureev/chat-relay/internal/session"
	"github.com/ashureev/chat-relay/internal/upstream"
	"github.com/google/uuid"
)

// Completer performs one upstream completion call.
type Completer interface {
	Complete(ctx context.Context, prompt string) (upstream.Completion, error)
}

// Config wires the relay's collaborators.
type Config struct {
	Store     *session.Store
	Assembler *prompt.Assembler
	Completer Completer
	Sanitizer *sanitize.Sanitizer
	Metrics   *observability.Metrics
	Logger    *slog.Logger
	// NewID generates session ids. Defaults to random UUIDs.
	NewID func() string
}

// Relay handles chat, instruction and clear operations.
type Relay struct {
	store     *session.Store
	assembler *prompt.Assembler
	completer Completer
	sanitizer *sanitize.Sanitizer
	metrics   *observability.Metrics
	logger    *slog.Logger
	newID     func() string
}

// New creates a relay.
func New(cfg Config) (*Relay, error) {
	if cfg.Store == nil {
		return nil, errors.New("relay: session store is required")
	}
	if cfg.Assembler == nil {
		return nil, errors.New("relay: prompt assembler is required")
	}
	if cfg.Completer == nil {
		return nil, errors.New("relay: completer is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return &Relay{
		store:     cfg.Store,
		assembler: cfg.Assembler,
		completer: cfg.Completer,
		sanitizer: cfg.Sanitizer,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		newID:     cfg.NewID,
	}, nil
}

// SessionCount returns the number of sessions held in memory.
func (r *Relay) SessionCount() int {
	return r.store.Len()
}

// Chat relays one user message. The user turn is stored before the
// upstream call and stays stored if the call fails. Blocked and empty
// completions are returned but never stored.
func (r *Relay) Chat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	if err := validateChat(&req); err != nil {
		r.trace(StageFailed, req.SessionID, "stage_failed", StageValidating, "error", err)
		r.metrics.RecordRequest(string(domain.KindValidation))
		return nil, err
	}

	id := req.SessionID
	if id == "" {
		id = r.newID()
	}
	log := r.logger.With("session_id", id)
	if req.UserID != "" {
		log = log.With("user_id", req.UserID)
	}

	turnText := req.Message
	if strings.TrimSpace(turnText) == "" {
		turnText = prompt.AnnotateAttachment("", req.Attachment)
	}
	r.store.AppendUserTurn(id, turnText)
	r.trace(StageSessionResolved, id)

	instructions := req.SystemInstruction
	if strings.TrimSpace(instructions) == "" {
		instructions = r.store.Instructions(id)
	}

	// One extra turn so the in-flight message can be dropped when
	// instructions carry it instead.
	history := r.store.Windowed(id, r.assembler.Window()+1)
	text := r.assembler.Assemble(prompt.Input{
		Message:      req.Message,
		Attachment:   req.Attachment,
		Instructions: instructions,
		History:      history,
	})
	r.trace(StagePromptAssembled, id, "prompt_length", len(text))

	r.trace(StageAwaitingUpstream, id)
	start := time.Now()
	completion, err := r.completer.Complete(ctx, text)
	elapsed := time.Since(start)
	if err != nil {
		err = classify(err)
		kind := string(domain.KindOf(err))
		r.metrics.RecordUpstream(kind, elapsed)
		r.metrics.RecordRequest(kind)
		log.Error("Upstream completion failed", "stage", StageAwaitingUpstream, "kind", kind, "error", err)
		return nil, err
	}

	outcome := outcomeOf(completion)
	r.metrics.RecordUpstream(outcome, elapsed)
	r.metrics.RecordRequest(outcome)

	reply := completion.Text
	if completion.Ephemeral() {
		log.Warn("Upstream returned no storable content", "outcome", outcome, "block_reason", completion.BlockReason)
	} else {
		r.trace(StageSanitizing, id)
		reply = r.sanitizer.Sanitize(reply)
		r.store.AppendModelTurn(id, reply)
	}
	r.metrics.SetActiveSessions(r.store.Len())
	r.trace(StageCommitted, id, "outcome", outcome, "duration", elapsed)

	return &ChatResult{
		Response:   reply,
		SessionID:  id,
		FileOutput: conversionOutput(req.Message, req.Attachment),
	}, nil
}

// SetInstructions stores custom instructions for a session and returns
// the session id used. A missing id starts a new session.
func (r *Relay) SetInstructions(req InstructionsRequest) (string, error) {
	if err := validateStruct(&req); err != nil {
		return "", err
	}
	id := req.SessionID
	if id == "" {
		id = r.newID()
	}
	if err := r.store.SetInstructions(id, req.Instructions); err != nil {
		return "", err
	}
	r.metrics.SetActiveSessions(r.store.Len())
	r.logger.Info("Custom instructions set", "session_id", id, "length", len(req.Instructions))
	return id, nil
}

// Clear empties a session's history. Instructions survive unless
// ResetInstructions is set.
func (r *Relay) Clear(req ClearRequest) (string, error) {
	if err := validateStruct(&req); err != nil {
		return "", err
	}
	id := req.SessionID
	if id == "" {
		id = r.newID()
	}
	r.store.Clear(id)
	if req.ResetInstructions {
		r.store.ForgetInstructions(id)
	}
	r.metrics.SetActiveSessions(r.store.Len())
	r.logger.Info("Chat cleared", "session_id", id, "reset_instructions", req.ResetInstructions)
	return id, nil
}

func (r *Relay) trace(stage Stage, id string, args ...any) {
	r.logger.Debug("Relay stage", append([]any{"stage", stage, "session_id", id}, args...)...)
}

// classify makes sure every completer failure carries an error kind.
func classify(err error) error {
	if domain.KindOf(err) != "" {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewError(domain.KindTimeout, "upstream request timed out", domain.WithCause(err))
	}
	return domain.NewError(domain.KindUnreachable, "no response from upstream", domain.WithCause(err))
}

func outcomeOf(c upstream.Completion) string {
	switch {
	case c.Blocked:
		return observability.OutcomeBlocked
	case c.Empty:
		return observability.OutcomeEmpty
	default:
		return observability.OutcomeOK
	}
}
