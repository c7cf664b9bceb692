//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/chat-relay/internal/auth"
	"github.com/ashureev/chat-relay/internal/domain"
	"github.com/ashureev/chat-relay/internal/files"
	"github.com/ashureev/chat-relay/internal/identity"
	"github.com/ashureev/chat-relay/internal/prompt"
	"github.com/ashureev/chat-relay/internal/relay"
	"github.com/ashureev/chat-relay/internal/sanitize"
	"github.com/ashureev/chat-relay/internal/session"
	"github.com/ashureev/chat-relay/internal/store"
	"github.com/ashureev/chat-relay/internal/upstream"
	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"
)

type fakeRepo struct {
	mu      sync.Mutex
	users   map[string]*domain.User
	pingErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: make(map[string]*domain.User)}
}

func (f *fakeRepo) CreateUser(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, user.Email) {
			return store.ErrEmailTaken
		}
	}
	copy := *user
	f.users[user.UserID] = &copy
	return nil
}

func (f *fakeRepo) GetUser(_ context.Context, userID string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := f.users[userID]
	if user == nil {
		return nil, nil
	}
	copy := *user
	return &copy, nil
}

func (f *fakeRepo) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			copy := *u
			return &copy, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) UpdateLastSeen(_ context.Context, _ string, _ time.Time) error { return nil }
func (f *fakeRepo) Ping(_ context.Context) error                                  { return f.pingErr }
func (f *fakeRepo) Close() error                                                  { return nil }

type fakeCompleter struct {
	mu      sync.Mutex
	prompts []string
	err     error
	reply   upstream.Completion
}

func (f *fakeCompleter) Complete(_ context.Context, p string) (upstream.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, p)
	if f.err != nil {
		return upstream.Completion{}, f.err
	}
	if f.reply.Text == "" {
		return upstream.Completion{Text: "hi there"}, nil
	}
	return f.reply, nil
}

func (f *fakeCompleter) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prompts[len(f.prompts)-1]
}

type testServer struct {
	router    http.Handler
	completer *fakeCompleter
	repo      *fakeRepo
	auth      *auth.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	completer := &fakeCompleter{}
	r, err := relay.New(relay.Config{
		Store:     session.NewStore(),
		Assembler: prompt.NewAssembler(prompt.Persona{Name: "Brahma AI", Creator: "Divyansh"}, 8),
		Completer: completer,
		Sanitizer: sanitize.ForPersona("Brahma AI", "Quant"),
	})
	if err != nil {
		t.Fatalf("relay.New failed: %v", err)
	}

	storage, err := files.NewStorage(filepath.Join(t.TempDir(), "uploads"), 1<<10, nil)
	if err != nil {
		t.Fatalf("files.NewStorage failed: %v", err)
	}

	repo := newFakeRepo()
	authSvc := auth.NewService(repo, "test-secret", time.Hour, auth.WithBcryptCost(bcrypt.MinCost))

	h := NewHandler(Deps{Chat: r, Auth: authSvc, Files: storage, Repo: repo, MaxBodyBytes: 4 << 10})
	router := chi.NewRouter()
	router.Use(identity.Middleware(authSvc))
	h.RegisterRoutes(router, nil)

	return &testServer{router: router, completer: completer, repo: repo, auth: authSvc}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var got map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return got
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestChatRoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/chat", map[string]string{"message": "hello"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	first := decode(t, rec)
	id, _ := first["sessionId"].(string)
	if id == "" || first["response"] != "hi there" {
		t.Fatalf("unexpected response %v", first)
	}
	if _, ok := first["fileOutput"]; ok {
		t.Fatalf("fileOutput must be omitted when absent: %v", first)
	}

	rec = s.do(t, http.MethodPost, "/api/chat", map[string]string{"message": "what did I say", "sessionId": id})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(s.completer.lastPrompt(), "User: hello") {
		t.Fatalf("expected transcript to contain the first message:\n%s", s.completer.lastPrompt())
	}
}

func TestChatSessionHeader(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/chat", map[string]string{"message": "hi"}, identity.SessionHeaderName, "tab-7")
	if got := decode(t, rec)["sessionId"]; got != "tab-7" {
		t.Fatalf("expected header session id, got %v", got)
	}
}

func TestChatErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		body   any
		status int
	}{
		{name: "empty message", body: map[string]string{"message": ""}, status: http.StatusBadRequest},
		{name: "malformed json", body: "{not json", status: http.StatusBadRequest},
		{name: "body too large", body: map[string]string{"message": strings.Repeat("x", 8<<10)}, status: http.StatusRequestEntityTooLarge},
		{name: "misconfigured", err: domain.NewError(domain.KindMisconfigured, "no key"), status: http.StatusInternalServerError},
		{name: "timeout", err: domain.NewError(domain.KindTimeout, "timed out"), status: http.StatusGatewayTimeout},
		{name: "unreachable", err: domain.NewError(domain.KindUnreachable, "down"), status: http.StatusBadGateway},
		{name: "upstream 500", err: domain.NewError(domain.KindUpstream, "fail", domain.WithStatus(500)), status: http.StatusBadGateway},
		{name: "upstream 429", err: domain.NewError(domain.KindUpstream, "slow down", domain.WithStatus(429)), status: http.StatusTooManyRequests},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := newTestServer(t)
			s.completer.err = tt.err
			body := tt.body
			if body == nil {
				body = map[string]string{"message": "hello"}
			}
			rec := s.do(t, http.MethodPost, "/api/chat", body)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			if msg, _ := decode(t, rec)["error"].(string); msg == "" {
				t.Fatal("expected an error message")
			}
		})
	}
}

func TestMessageForHidesTransportCause(t *testing.T) {
	t.Parallel()

	err := domain.NewError(domain.KindUnreachable, "no response from upstream", domain.WithCause(errors.New("dial tcp 10.0.0.1:443")))
	if got := messageFor(err); got != "no response from upstream" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := messageFor(errors.New("boom")); got != "internal server error" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestInstructionsAndClear(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/set-instructions", map[string]string{"instructions": "Be terse", "sessionId": "s1"})
	if rec.Code != http.StatusOK || decode(t, rec)["sessionId"] != "s1" {
		t.Fatalf("set-instructions failed: %d", rec.Code)
	}

	s.do(t, http.MethodPost, "/api/chat", map[string]string{"message": "hello", "sessionId": "s1"})
	p := s.completer.lastPrompt()
	if i, j := strings.Index(p, "Be terse"), strings.Index(p, "User message:"); i < 0 || j < i {
		t.Fatalf("instructions must precede the message marker:\n%s", p)
	}

	rec = s.do(t, http.MethodPost, "/api/clear-chat", map[string]string{"sessionId": "s1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("clear-chat failed: %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/api/set-instructions", map[string]string{"instructions": " ", "sessionId": "s1"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank instructions, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	s.do(t, http.MethodPost, "/api/chat", map[string]string{"message": "hello", "sessionId": "s1"})

	rec := s.do(t, http.MethodGet, "/api/health", nil)
	got := decode(t, rec)
	if got["status"] != "ok" || got["version"] != Version || got["sessions"] != float64(1) || got["database"] != "ok" {
		t.Fatalf("unexpected health %v", got)
	}

	s.repo.pingErr = errors.New("closed")
	if got := decode(t, s.do(t, http.MethodGet, "/api/health", nil)); got["database"] != "unavailable" {
		t.Fatalf("expected degraded database, got %v", got)
	}
}

func TestSignupLoginMe(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	creds := map[string]string{"email": "me@example.com", "password": "password123"}

	rec := s.do(t, http.MethodPost, "/api/signup", creds)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Fatalf("password material leaked: %s", rec.Body.String())
	}

	if rec := s.do(t, http.MethodPost, "/api/signup", creds); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate signup: expected 409, got %d", rec.Code)
	}
	if rec := s.do(t, http.MethodPost, "/api/signup", map[string]string{"email": "x@example.com", "password": "short"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("short password: expected 400, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/api/login", map[string]string{"email": "me@example.com", "password": "wrong-password"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: expected 401, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/api/login", creds)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", rec.Code)
	}
	token, _ := decode(t, rec)["token"].(string)
	if token == "" {
		t.Fatal("expected a token")
	}

	if rec := s.do(t, http.MethodGet, "/api/me", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous /me: expected 401, got %d", rec.Code)
	}
	rec = s.do(t, http.MethodGet, "/api/me", nil, "Authorization", "Bearer "+token)
	if rec.Code != http.StatusOK {
		t.Fatalf("/me: expected 200, got %d", rec.Code)
	}
	user, _ := decode(t, rec)["user"].(map[string]interface{})
	if user["email"] != "me@example.com" {
		t.Fatalf("unexpected user %v", user)
	}
}

func multipartBody(t *testing.T, field, name string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, name)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestUploadAndServe(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	body, ctype := multipartBody(t, "file", "notes.txt", []byte("some notes"))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	file, _ := decode(t, rec)["file"].(map[string]interface{})
	url, _ := file["url"].(string)
	if file["originalName"] != "notes.txt" || !strings.HasPrefix(url, "/uploads/") || !strings.HasSuffix(url, "-notes.txt") {
		t.Fatalf("unexpected file metadata %v", file)
	}

	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "some notes" {
		t.Fatalf("serve: got %d %q", rec.Code, rec.Body.String())
	}
}

func TestUploadErrors(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	body, ctype := multipartBody(t, "other", "notes.txt", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing file: expected 400, got %d", rec.Code)
	}

	body, ctype = multipartBody(t, "file", "big.bin", bytes.Repeat([]byte("a"), 2<<10))
	req = httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", ctype)
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversize: expected 413, got %d", rec.Code)
	}
	if msg, _ := decode(t, rec)["error"].(string); !strings.Contains(msg, "1.0 KiB") {
		t.Fatalf("expected limit in message, got %q", msg)
	}

	rec = s.do(t, http.MethodPost, "/api/upload", map[string]string{"not": "multipart"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("non-multipart: expected 400, got %d", rec.Code)
	}
}

func TestConvertToPDF(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	body, ctype := multipartBody(t, "file", "report.docx", []byte("docx bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/convert-to-pdf", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("convert: expected 200, got %d", rec.Code)
	}
	got := decode(t, rec)
	if got["mimetype"] != "application/pdf" || got["originalName"] != "report.docx" || got["message"] == "" {
		t.Fatalf("unexpected conversion %v", got)
	}
}

func TestChatConversionIntent(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/chat", map[string]any{
		"message":    "please export as PDF",
		"attachment": map[string]string{"originalName": "slides.pptx", "url": "/uploads/abc-slides.pptx"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	out, _ := decode(t, rec)["fileOutput"].(map[string]interface{})
	if out["name"] != "slides.pdf" || out["mimetype"] != "application/pdf" {
		t.Fatalf("unexpected fileOutput %v", out)
	}
}
