// Package watch keeps an in-memory view of sessions synchronized with the
// server by polling the status endpoint for every in-flight session.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SessionView mirrors the session JSON the API returns.
type SessionView struct {
	ID         string  `json:"id"`
	FileName   string  `json:"fileName"`
	FilePath   string  `json:"filePath"`
	Status     string  `json:"status"`
	AssemblyID *string `json:"assemblyId"`
	Duration   *int64  `json:"duration"`
	TokenCount int     `json:"tokenCount"`
	CreatedAt  string  `json:"createdAt"`
	UpdatedAt  string  `json:"updatedAt"`
}

// Client is a thin HTTP client for the Spark API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates an API client for the given base URL
// (e.g. "http://localhost:3002").
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// ListSessions fetches all sessions, newest first.
func (c *Client) ListSessions(ctx context.Context) ([]SessionView, error) {
	var body struct {
		Sessions []SessionView `json:"sessions"`
	}
	if err := c.get(ctx, "/api/sessions", &body); err != nil {
		return nil, err
	}
	return body.Sessions, nil
}

// SessionStatus fetches a session's reconciled state.
func (c *Client) SessionStatus(ctx context.Context, id string) (*SessionView, error) {
	var body struct {
		Session *SessionView `json:"session"`
	}
	if err := c.get(ctx, "/api/sessions/"+id+"/status", &body); err != nil {
		return nil, err
	}
	if body.Session == nil {
		return nil, fmt.Errorf("status response missing session")
	}
	return body.Session, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s returned %d", path, resp.StatusCode)
	}
	return json.Unmarshal(data, out)
}
