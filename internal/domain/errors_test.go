package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestErrorClassificationThroughWrapping(t *testing.T) {
	t.Parallel()

	base := NewError(KindUpstream, "upstream rate limited", WithStatus(http.StatusTooManyRequests), WithCause(errors.New("quota")))
	wrapped := fmt.Errorf("chat: %w", base)

	if !IsUpstream(wrapped) {
		t.Fatal("expected wrapped error to classify as upstream")
	}
	if IsTimeout(wrapped) {
		t.Fatal("did not expect timeout classification")
	}
	if got := StatusOf(wrapped); got != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", got)
	}
	if got := wrapped.Error(); got != "chat: upstream rate limited: quota" {
		t.Fatalf("unexpected message: %q", got)
	}
	if KindOf(errors.New("plain")) != "" {
		t.Fatal("expected plain error to have no kind")
	}
}

func TestSessionExpired(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	s := &Session{LastActivity: now.Add(-25 * time.Hour)}
	if !s.Expired(now, 24*time.Hour) {
		t.Fatal("expected session idle for 25h to be expired")
	}
	s.LastActivity = now.Add(-time.Hour)
	if s.Expired(now, 24*time.Hour) {
		t.Fatal("did not expect recently active session to be expired")
	}
}
