// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend provides the HTTP client for the document question
// answering service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/docqa-tui/internal/model"
)

// SessionHeader carries the client session id on every request.
const SessionHeader = "X-Session-ID"

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the client.
type ClientConfig struct {
	// BaseURL is the service root (default: http://127.0.0.1:8000)
	BaseURL string

	// Timeout for non-streaming requests (default: 60s). Uploads include
	// server-side embedding, so this is generous.
	Timeout time.Duration

	// TeardownTimeout bounds the session end signal (default: 2s)
	TeardownTimeout time.Duration

	// SessionID is sent in SessionHeader when set.
	SessionID string
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:         "http://127.0.0.1:8000",
		Timeout:         60 * time.Second,
		TeardownTimeout: 2 * time.Second,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the answer service.
//
// The Client is thread-safe for concurrent use.
//
// Example:
//
//	client := backend.NewClient(backend.DefaultConfig(), logger)
//	body, err := client.Ask(ctx, backend.AskRequest{Question: "What is X?"})
//	if err != nil {
//	    return err
//	}
//	defer body.Close()
type Client struct {
	config *ClientConfig
	logger *zap.Logger

	// httpClient has the request timeout; streamClient has none, since a
	// stalled answer stream is allowed to stall.
	httpClient   *http.Client
	streamClient *http.Client

	mu        sync.RWMutex
	sessionID string
}

// NewClient creates a client. A nil config uses DefaultConfig and a nil
// logger discards output.
func NewClient(config *ClientConfig, logger *zap.Logger) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	defaults := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}
	if config.TeardownTimeout == 0 {
		config.TeardownTimeout = defaults.TeardownTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// Per-session server state may be keyed by cookie, so both clients
	// share one jar.
	jar, _ := cookiejar.New(nil)

	return &Client{
		config:       config,
		logger:       logger.Named("backend"),
		httpClient:   &http.Client{Timeout: config.Timeout, Jar: jar},
		streamClient: &http.Client{Jar: jar},
		sessionID:    config.SessionID,
	}
}

// BaseURL returns the service root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// SetSessionID changes the session id sent with later requests.
func (c *Client) SetSessionID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = id
}

// SessionID returns the current session id.
func (c *Client) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// =============================================================================
// ASK
// =============================================================================

// Ask posts a question and returns the NDJSON answer stream. The caller
// must close the returned body. No timeout applies to the stream; cancel
// ctx to abandon it.
func (c *Client) Ask(ctx context.Context, req AskRequest) (io.ReadCloser, error) {
	if req.ChatHistory == nil {
		req.ChatHistory = []model.Exchange{}
	}
	if req.SelectedSources == nil {
		req.SelectedSources = []string{}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeDecode, Message: "failed to marshal request", Cause: err}
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/ask", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson")

	c.logger.Debug("ask",
		zap.Int("question_len", len(req.Question)),
		zap.Int("history", len(req.ChatHistory)),
		zap.Strings("sources", req.SelectedSources))

	resp, err := c.streamClient.Do(httpReq)
	if err != nil {
		return nil, connectionError("ask request failed", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer drainAndClose(resp.Body)
		return nil, statusError("ask", resp)
	}
	return resp.Body, nil
}

// =============================================================================
// DOCUMENTS
// =============================================================================

// ListDocuments returns the names of the documents the service holds.
func (c *Client) ListDocuments(ctx context.Context) ([]string, error) {
	var out documentsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/documents", nil, "", &out); err != nil {
		return nil, err
	}
	if out.Documents == nil {
		out.Documents = []string{}
	}
	return out.Documents, nil
}

// DeleteDocument removes one document by name.
func (c *Client) DeleteDocument(ctx context.Context, name string) error {
	return c.doJSON(ctx, http.MethodDelete, "/documents/"+url.PathEscape(name), nil, "", nil)
}

// ClearAll removes every document and the server-side chat state.
func (c *Client) ClearAll(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodDelete, "/clear-all", nil, "", nil)
}

// Upload sends files as a multipart form, one "files" part per file, and
// returns the per-file outcome.
func (c *Client) Upload(ctx context.Context, files []File) ([]model.UploadResult, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := w.CreateFormFile("files", f.Name)
		if err != nil {
			return nil, &ClientError{Type: ErrTypeDecode, Message: "failed to build upload form", Cause: err}
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, &ClientError{Type: ErrTypeDecode, Message: "failed to build upload form", Cause: err}
		}
	}
	if err := w.Close(); err != nil {
		return nil, &ClientError{Type: ErrTypeDecode, Message: "failed to build upload form", Cause: err}
	}

	var out uploadResponse
	if err := c.doJSON(ctx, http.MethodPost, "/upload", &buf, w.FormDataContentType(), &out); err != nil {
		return nil, err
	}
	c.logger.Info("upload finished", zap.Int("files", len(files)), zap.Int("results", len(out.Results)))
	return out.Results, nil
}

// =============================================================================
// SESSION END
// =============================================================================

// EndSession tells the service to discard the state of sessionID, which
// need not be the client's current session. Delivery is best effort and
// bounded by TeardownTimeout; callers usually log and ignore the error.
func (c *Client) EndSession(ctx context.Context, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.TeardownTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodPost, "/cleanup", nil)
	if err != nil {
		return err
	}
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return connectionError("cleanup request failed", err)
	}
	drainAndClose(resp.Body)
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, body)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	if id := c.SessionID(); id != "" {
		req.Header.Set(SessionHeader, id)
	}
	return req, nil
}

// doJSON sends a request and decodes a JSON response into out (if not nil).
func (c *Client) doJSON(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return connectionError(method+" "+path+" failed", err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(method+" "+path, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ClientError{Type: ErrTypeDecode, Message: "failed to decode " + path + " response", Cause: err}
	}
	return nil
}

func connectionError(msg string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &ClientError{Type: ErrTypeConnection, Message: msg, Cause: err}
}

// statusError builds an error from a non-2xx response, preferring the
// service's own message.
func statusError(op string, resp *http.Response) error {
	typ := ErrTypeStatus
	if resp.StatusCode == http.StatusNotFound {
		typ = ErrTypeNotFound
	}

	msg := op + " returned " + resp.Status
	var body errorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err == nil && body.message() != "" {
		msg = body.message()
	}
	return &ClientError{Type: typ, Message: msg, StatusCode: resp.StatusCode}
}

// drainAndClose drains and closes a response body so the connection can
// be reused.
func drainAndClose(r io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r, 64<<10))
	_ = r.Close()
}
