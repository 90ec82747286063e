// Package gateway is the console's client for the admin REST backend. All
// durable data lives behind that backend; the shell only ever reaches it
// through this client.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/KakaCheng2010/go-admin/internal/menu"
	"github.com/KakaCheng2010/go-admin/internal/platform/httpx"
	"github.com/KakaCheng2010/go-admin/internal/routes"
	"github.com/KakaCheng2010/go-admin/internal/session"
	"github.com/KakaCheng2010/go-admin/internal/shared"
)

// RefreshTokenHeader is the response header the backend uses to rotate a
// token that is close to expiry. Clients must adopt the new value
// transparently.
const RefreshTokenHeader = "X-Refresh-Token"

// DefaultTimeout bounds every backend call. A timed-out call behaves like any
// other fetch failure.
const DefaultTimeout = 10 * time.Second

// Client talks to the admin backend over JSON/HTTP with bearer auth.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient builds a Client for the backend at baseURL. A zero timeout falls
// back to DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// LoginResult is the backend's login response. Menus, when present, seed the
// menu store directly and no separate fetch is needed.
type LoginResult struct {
	Token string        `json:"token"`
	User  session.User  `json:"user"`
	Menus []menu.Record `json:"menus,omitempty"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges credentials for a token, the user record and optionally the
// user's menu set.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	body, err := json.Marshal(loginRequest{Username: username, Password: password})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway: login: %w", err)
	}
	defer drain(resp)

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, shared.ErrInvalidCredentials
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("gateway: login: unexpected status %d", resp.StatusCode)
	}

	var result LoginResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("gateway: login: decode: %w", err)
	}
	if result.Token == "" {
		return nil, fmt.Errorf("gateway: login: response carried no token")
	}
	return &result, nil
}

type menusResponse struct {
	Menus []menu.Record `json:"menus"`
}

// FetchUserMenus loads the current user's menu set. The second return value
// is a refreshed bearer token when the backend rotated it, empty otherwise.
// A 401 maps to httpx.ErrUnauthorized, the global session-invalid signal.
func (c *Client) FetchUserMenus(ctx context.Context, token string) ([]menu.Record, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/menus/user", nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("gateway: fetch menus: %w", err)
	}
	defer drain(resp)

	refreshed := resp.Header.Get(RefreshTokenHeader)
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, refreshed, httpx.ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		return nil, refreshed, fmt.Errorf("gateway: fetch menus: unexpected status %d", resp.StatusCode)
	}

	var result menusResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, refreshed, fmt.Errorf("gateway: fetch menus: decode: %w", err)
	}
	return result.Menus, refreshed, nil
}

// MenuFetcher adapts the client to the route resolver's fetch hook. A rotated
// token arriving on the menu response is adopted into the credentials before
// the records are handed back.
func (c *Client) MenuFetcher() routes.FetchFunc {
	return func(ctx context.Context, creds routes.Credentials) ([]menu.Record, error) {
		records, refreshed, err := c.FetchUserMenus(ctx, creds.Token())
		if refreshed != "" {
			creds.SetToken(refreshed)
		}
		return records, err
	}
}

// Logout tells the backend to invalidate the token. Best effort: callers log
// failures and tear the local session down regardless.
func (c *Client) Logout(ctx context.Context, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/logout", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway: logout: %w", err)
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("gateway: logout: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
