// Package api is the HTTP client for the Aldebaran backend REST contract.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"AldebaranChat/internal/backend"
	"AldebaranChat/internal/telemetry"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// TokenSource supplies the bearer credential for outbound requests
type TokenSource interface {
	Token() (string, bool)
}

// Error is a non-2xx backend response. Message is the best-effort text
// extracted from the body and is what gets shown to the user.
type Error struct {
	Status  int
	Message string
	Body    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("HTTP error %d", e.Status)
}

// StatusOf returns the HTTP status carried by err, or 0
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsUnauthorized reports whether the backend rejected the credential
func IsUnauthorized(err error) bool {
	s := StatusOf(err)
	return s == http.StatusUnauthorized || s == http.StatusForbidden
}

// Client talks to the backend
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	inst       telemetry.Instruments
	service    string
	userAgent  string

	mu     sync.RWMutex
	tokens TokenSource
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithInstruments(inst telemetry.Instruments) Option {
	return func(c *Client) { c.inst = inst }
}

// WithService names the remote peer in spans, metrics and logs
func WithService(name string) Option {
	return func(c *Client) { c.service = name }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New creates a client for baseURL. Without WithHTTPClient requests have no
// deadline other than the caller's context.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     slog.Default(),
		service:    "backend",
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.inst.Tracer == nil {
		c.inst = telemetry.NewInstruments(nil, nil)
	}
	return c
}

// SetTokenSource installs the credential provider. The auth coordinator is
// built on top of the client, so this is wired after construction.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = ts
}

func (c *Client) token() (string, bool) {
	c.mu.RLock()
	ts := c.tokens
	c.mu.RUnlock()
	if ts == nil {
		return "", false
	}
	return ts.Token()
}

// Do sends a JSON request and decodes a JSON response into out (if non-nil).
// When out is a *[]byte the body is copied in undecoded.
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	ctx, span := c.inst.Tracer.Start(ctx, c.service+" "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		),
	)
	defer span.End()

	start := time.Now()
	err := c.do(ctx, method, path, in, out)
	c.inst.Record(ctx, start, metric.WithAttributes(
		attribute.String("peer.service", c.service),
		attribute.String("http.request.method", method),
		attribute.Int("http.response.status_code", StatusOf(err)),
	))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Error("request failed", "service", c.service, "method", method, "path", path, "error", err)
		return err
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if tok, ok := c.token(); ok {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	c.logger.Debug("outbound request", "service", c.service, "method", method, "path", path, "request_id", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{
			Status:  resp.StatusCode,
			Message: extractMessage(resp.StatusCode, respBody),
			Body:    string(respBody),
		}
	}

	if raw, ok := out.(*[]byte); ok {
		*raw = respBody
		return nil
	}
	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

const maxMessageRunes = 200

// extractMessage pulls a human-readable message out of an error body
func extractMessage(status int, body []byte) string {
	var errResp backend.ErrorResponse
	if json.Unmarshal(body, &errResp) == nil {
		if errResp.Message != "" {
			return errResp.Message
		}
		if errResp.Error != "" {
			return errResp.Error
		}
	}

	text := strings.TrimSpace(string(body))
	if text != "" && !strings.HasPrefix(text, "{") && !strings.HasPrefix(text, "<") {
		if runes := []rune(text); len(runes) > maxMessageRunes {
			text = string(runes[:maxMessageRunes])
		}
		return text
	}

	if st := http.StatusText(status); st != "" {
		return st
	}
	return fmt.Sprintf("HTTP error %d", status)
}
