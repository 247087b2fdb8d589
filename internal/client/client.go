// Package client talks to the board server over its HTTP API and websocket
// streams, implementing backend.Backend for the reconciliation engine and the
// presence tracker.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Blackmamoth/collably-sub000/internal/backend"
	"github.com/Blackmamoth/collably-sub000/internal/model"
)

// Client is a backend.Backend bound to one member's access token.
type Client struct {
	baseURL *url.URL
	token   string
	http    *http.Client
}

var _ backend.Backend = (*Client)(nil)

// Identity is the member the token belongs to.
type Identity struct {
	MemberID    string `json:"memberId"`
	WorkspaceID string `json:"workspaceId"`
	Name        string `json:"name"`
}

// New builds a client for serverURL (http or https). A nil httpClient uses a
// client with a 10s timeout.
func New(serverURL, token string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: u, token: token, http: httpClient}, nil
}

func (c *Client) projectPath(projectID string, parts ...string) string {
	return c.baseURL.JoinPath(append([]string{"api", "projects", projectID}, parts...)...).String()
}

// do sends a JSON request and decodes a JSON response into out (if non-nil).
// 4xx answers other than 408/429 become backend.RejectionError with the
// server's reason; everything else is a transport failure.
func (c *Client) do(ctx context.Context, method, target string, body, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, r)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return statusError(method, req.URL.Path, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, req.URL.Path, err)
	}
	return nil
}

func statusError(method, path string, resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		body.Error = http.StatusText(resp.StatusCode)
	}

	code := resp.StatusCode
	if code < 500 && code != http.StatusRequestTimeout && code != http.StatusTooManyRequests {
		return backend.Reject("%s", body.Error)
	}
	return fmt.Errorf("%s %s: %d %s", method, path, code, body.Error)
}

// Me returns the identity behind the token.
func (c *Client) Me(ctx context.Context) (Identity, error) {
	var id Identity
	err := c.do(ctx, http.MethodGet, c.baseURL.JoinPath("api", "me").String(), nil, &id)
	return id, err
}

// GetWorkspaceMembers loads the member directory of the token's workspace.
func (c *Client) GetWorkspaceMembers(ctx context.Context) (model.MemberDirectory, error) {
	var members []model.Member
	if err := c.do(ctx, http.MethodGet, c.baseURL.JoinPath("api", "workspace", "members").String(), nil, &members); err != nil {
		return nil, err
	}
	return model.NewMemberDirectory(members), nil
}

// ListElements fetches one snapshot without subscribing.
func (c *Client) ListElements(ctx context.Context, projectID string) ([]model.Element, error) {
	var elements []model.Element
	err := c.do(ctx, http.MethodGet, c.projectPath(projectID, "elements"), nil, &elements)
	return elements, err
}

func (c *Client) InsertElement(ctx context.Context, projectID string, draft backend.ElementDraft) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, c.projectPath(projectID, "elements"), draft, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", errors.New("create element: server returned no id")
	}
	return out.ID, nil
}

func (c *Client) PatchElement(ctx context.Context, projectID, id string, patch model.ElementPatch) error {
	return c.do(ctx, http.MethodPatch, c.projectPath(projectID, "elements", id), patch, nil)
}

func (c *Client) DeleteElement(ctx context.Context, projectID, id string) error {
	return c.do(ctx, http.MethodDelete, c.projectPath(projectID, "elements", id), nil, nil)
}

func (c *Client) ToggleVote(ctx context.Context, projectID, id string) error {
	return c.do(ctx, http.MethodPost, c.projectPath(projectID, "elements", id, "vote"), nil, nil)
}

func (c *Client) AddComment(ctx context.Context, projectID, id, text string) error {
	body := map[string]string{"content": text}
	return c.do(ctx, http.MethodPost, c.projectPath(projectID, "elements", id, "comments"), body, nil)
}

// ListComments returns the comments of a note, oldest first.
func (c *Client) ListComments(ctx context.Context, projectID, id string) ([]model.Comment, error) {
	var comments []model.Comment
	err := c.do(ctx, http.MethodGet, c.projectPath(projectID, "elements", id, "comments"), nil, &comments)
	return comments, err
}

func (c *Client) UpsertPresence(ctx context.Context, projectID string, cursor *model.Cursor) error {
	body := map[string]*model.Cursor{"cursor": cursor}
	return c.do(ctx, http.MethodPut, c.projectPath(projectID, "presence"), body, nil)
}

func (c *Client) DeletePresence(ctx context.Context, projectID string) error {
	return c.do(ctx, http.MethodDelete, c.projectPath(projectID, "presence"), nil, nil)
}
