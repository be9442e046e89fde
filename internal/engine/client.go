// Package engine is the request/response and event-stream client for the
// collaborator engine process. It is a thin boundary: it moves JSON over
// HTTP and frames over a websocket, maps failures onto coded errors, and
// leaves every reconciliation decision to the mirror.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	apperrors "github.com/xavierarpa/openwork/internal/errors"
)

// Client talks to one engine over its HTTP API plus websocket stream.
// All methods are safe for concurrent use; the underlying http.Client
// handles connection pooling.
type Client struct {
	// target is the engine's host:port, e.g. "127.0.0.1:4096".
	target string

	// httpClient performs the request/response calls. No global timeout
	// is set here: callers bound each call through its context (only
	// the health probe has a mandated bound).
	httpClient *http.Client
}

// NewClient creates a client for the engine at target (host:port).
func NewClient(target string) *Client {
	return &Client{
		target:     target,
		httpClient: &http.Client{},
	}
}

// Target returns the host:port this client talks to.
func (c *Client) Target() string {
	return c.target
}

// Close releases pooled connections. The client must not be used after.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) apiURL(path string) string {
	return (&url.URL{Scheme: "http", Host: c.target, Path: path}).String()
}

// getJSON performs a GET and decodes the response body into out.
func (c *Client) getJSON(ctx context.Context, call, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL(path), nil)
	if err != nil {
		return apperrors.Internal("build request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeEngineUnreachable, call+" failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperrors.BadStatus(call, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Wrap(apperrors.CodeEngineBadResponse, "decode "+call+" response", err)
	}
	return nil
}

// postJSON performs a POST with a JSON body and optionally decodes the
// response into out.
func (c *Client) postJSON(ctx context.Context, call, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return apperrors.Internal("encode "+call+" request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL(path), bytes.NewReader(payload))
	if err != nil {
		return apperrors.Internal("build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeEngineUnreachable, call+" failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperrors.BadStatus(call, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Wrap(apperrors.CodeEngineBadResponse, "decode "+call+" response", err)
	}
	return nil
}

// Health probes the engine and returns its version. Callers bound the
// probe through ctx; a failure here means the engine is not usable.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	if err := c.getJSON(ctx, "health probe", "/health", &h); err != nil {
		return Health{}, err
	}
	return h, nil
}

// ListSessions pulls the full session list.
func (c *Client) ListSessions(ctx context.Context) ([]Session, error) {
	var sessions []Session
	if err := c.getJSON(ctx, "session list", "/api/sessions", &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// createSessionRequest is the body for POST /api/sessions.
type createSessionRequest struct {
	Title string `json:"title,omitempty"`
}

// CreateSession creates a session with an optional title and returns
// the engine's session object.
func (c *Client) CreateSession(ctx context.Context, title string) (Session, error) {
	var sess Session
	if err := c.postJSON(ctx, "session create", "/api/sessions", createSessionRequest{Title: title}, &sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Messages pulls a session's full message history with parts.
func (c *Client) Messages(ctx context.Context, sessionID string) ([]MessageRecord, error) {
	var records []MessageRecord
	path := fmt.Sprintf("/api/sessions/%s/messages", url.PathEscape(sessionID))
	if err := c.getJSON(ctx, "message history", path, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Plan pulls a session's execution plan.
func (c *Client) Plan(ctx context.Context, sessionID string) ([]PlanItem, error) {
	var items []PlanItem
	path := fmt.Sprintf("/api/sessions/%s/plan", url.PathEscape(sessionID))
	if err := c.getJSON(ctx, "plan", path, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// PendingPermissions pulls the engine's current pending permission
// requests, in the engine's own order.
func (c *Client) PendingPermissions(ctx context.Context) ([]PermissionRequest, error) {
	var pending []PermissionRequest
	if err := c.getJSON(ctx, "pending permissions", "/api/permissions", &pending); err != nil {
		return nil, err
	}
	return pending, nil
}

// promptRequest is the body for POST /api/sessions/{id}/prompt. The ID
// is a client-generated correlation id so the engine can deduplicate a
// retried submission.
type promptRequest struct {
	ID    string       `json:"id"`
	Parts []promptPart `json:"parts"`
}

type promptPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// SendPrompt submits a text prompt to a session. Effects surface via
// the event channel and a follow-up history pull, not in the response.
func (c *Client) SendPrompt(ctx context.Context, sessionID, text string) error {
	body := promptRequest{
		ID:    uuid.NewString(),
		Parts: []promptPart{{Type: "text", Text: text}},
	}
	path := fmt.Sprintf("/api/sessions/%s/prompt", url.PathEscape(sessionID))
	return c.postJSON(ctx, "prompt", path, body, nil)
}

// replyRequest is the body for POST /api/permissions/{id}/reply.
type replyRequest struct {
	Decision Decision `json:"decision"`
}

// RespondPermission replies to a pending permission request. No
// structured response beyond success/failure.
func (c *Client) RespondPermission(ctx context.Context, requestID string, decision Decision) error {
	path := fmt.Sprintf("/api/permissions/%s/reply", url.PathEscape(requestID))
	return c.postJSON(ctx, "permission reply", path, replyRequest{Decision: decision}, nil)
}
