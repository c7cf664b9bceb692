// Package upstream calls the remote generative-language API.
package upstream

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ashureev/chat-relay/internal/domain"
)

const (
	// NoResponseText is returned when the upstream produced neither text nor a block reason.
	NoResponseText = "No response generated"

	blockedTextFormat = "I'm unable to provide a response to that query due to content safety policies. (Reason: %s)"
	maxErrorBodyBytes = 4096
	apiKeyHeader      = "x-goog-api-key"
)

// Completion is the outcome of a successful upstream call.
type Completion struct {
	Text         string
	FinishReason string
	// Blocked is set when the upstream withheld content by safety policy.
	// Text then holds an explanation for the user.
	Blocked     bool
	BlockReason string
	// Empty is set when the upstream returned no text and no block reason.
	Empty bool
}

// Ephemeral reports whether the completion must not be stored in history.
func (c Completion) Ephemeral() bool {
	return c.Blocked || c.Empty
}

// Client performs single, bounded completion calls.
type Client struct {
	opts       options
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a client.
func New(opts ...Option) *Client {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = newHTTPClient()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return &Client{opts: o, httpClient: o.httpClient, logger: o.logger}
}

// newHTTPClient builds a pooled client. The per-call deadline comes from
// the request context, not from http.Client.Timeout.
func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   15 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          64,
			MaxIdleConnsPerHost:   16,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
		},
	}
}

// Configured reports whether a credential is present.
func (c *Client) Configured() bool {
	return strings.TrimSpace(c.opts.apiKey) != ""
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.opts.model
}

// Complete sends prompt as the only user content and waits at most the
// configured timeout. It makes exactly one attempt.
func (c *Client) Complete(ctx context.Context, prompt string) (Completion, error) {
	if !c.Configured() {
		return Completion{}, domain.NewError(domain.KindMisconfigured, "upstream API key is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.timeout)
	defer cancel()

	payload := generateRequest{
		Contents:       []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		SafetySettings: defaultSafetySettings(),
	}
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return Completion{}, fmt.Errorf("encode upstream request: %w", err)
	}

	endpoint := strings.TrimRight(c.opts.baseURL, "/") + "/models/" + url.PathEscape(c.opts.model) + ":generateContent"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, buf)
	if err != nil {
		return Completion{}, domain.NewError(domain.KindMisconfigured, "invalid upstream endpoint", domain.WithCause(err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, c.opts.apiKey)

	c.logger.Debug("Sending upstream completion request", "model", c.opts.model, "prompt_length", len(prompt))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Completion{}, classifyTransportError(ctx, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close upstream response body", "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Completion{}, classifyStatus(resp)
	}

	var body generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		if ctx.Err() != nil {
			return Completion{}, classifyTransportError(ctx, err)
		}
		return Completion{}, domain.NewError(domain.KindUpstream, "malformed upstream response", domain.WithStatus(resp.StatusCode), domain.WithCause(err))
	}

	return interpret(body), nil
}

func interpret(body generateResponse) Completion {
	finish := ""
	if len(body.Candidates) > 0 {
		finish = body.Candidates[0].FinishReason
	}
	if text := body.text(); text != "" {
		return Completion{Text: text, FinishReason: finish}
	}
	if reason := body.blockReason(); reason != "" {
		return Completion{
			Text:         fmt.Sprintf(blockedTextFormat, reason),
			FinishReason: finish,
			Blocked:      true,
			BlockReason:  reason,
		}
	}
	return Completion{Text: NoResponseText, FinishReason: finish, Empty: true}
}

// classifyTransportError maps a failure with no HTTP response.
func classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.NewError(domain.KindTimeout, "upstream request timed out", domain.WithCause(err))
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.NewError(domain.KindTimeout, "upstream request timed out", domain.WithCause(err))
	}
	return domain.NewError(domain.KindUnreachable, "no response from upstream", domain.WithCause(err))
}

// classifyStatus maps an upstream error status to a classified error.
func classifyStatus(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	detail := strings.TrimSpace(string(data))
	var parsed errorResponse
	if err := json.Unmarshal(data, &parsed); err == nil && parsed.Error.Message != "" {
		detail = parsed.Error.Message
	}

	var msg string
	switch {
	case resp.StatusCode == http.StatusBadRequest:
		msg = "upstream rejected the request"
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		msg = "upstream rejected the credentials"
	case resp.StatusCode == http.StatusTooManyRequests:
		msg = "upstream rate limit exceeded"
	case resp.StatusCode >= 500:
		msg = "upstream service failure"
	default:
		msg = "upstream error"
	}
	msg = fmt.Sprintf("%s (status %d)", msg, resp.StatusCode)

	var cause error
	if detail != "" {
		cause = errors.New(detail)
	}
	return domain.NewError(domain.KindUpstream, msg, domain.WithStatus(resp.StatusCode), domain.WithCause(cause))
}
