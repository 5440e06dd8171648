// Package store is the client for the remote row store (PostgREST-style data
// API plus password auth). The client is constructed once at startup and
// passed to every component that syncs; there is no package-level singleton.
// Row-level isolation is enforced server-side, but every query filters by
// user_id anyway.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/bowerhall/daylog/internal/logger"
)

// ErrNoSession is returned by row operations when nobody is signed in.
// Callers treat it as a silent no-op: during startup the collectors can race
// the sign-in and that is expected, not an error worth surfacing.
var ErrNoSession = errors.New("no active session")

type Config struct {
	URL     string
	AnonKey string
	// TokenPath persists the auth session across restarts. Empty disables
	// persistence.
	TokenPath string
}

// Session is the authenticated user.
type Session struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
}

type Client struct {
	baseURL   string
	anonKey   string
	tokenPath string
	http      *http.Client

	mu      sync.Mutex
	session *Session
}

func New(cfg Config) *Client {
	c := &Client{
		baseURL:   cfg.URL,
		anonKey:   cfg.AnonKey,
		tokenPath: cfg.TokenPath,
		http:      &http.Client{Timeout: 30 * time.Second},
	}
	c.loadSession()
	return c
}

// CurrentUser returns the active session, or nil when signed out.
func (c *Client) CurrentUser() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

type authResponse struct {
	AccessToken string `json:"access_token"`
	User        struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
	Msg              string `json:"msg,omitempty"`
}

// SignInWithPassword exchanges credentials for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) error {
	return c.authRequest(ctx, "/auth/v1/token?grant_type=password", email, password)
}

// SignUp registers a new account and signs it in.
func (c *Client) SignUp(ctx context.Context, email, password string) error {
	return c.authRequest(ctx, "/auth/v1/signup", email, password)
}

func (c *Client) authRequest(ctx context.Context, path, email, password string) error {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.anonKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var auth authResponse
	if err := json.Unmarshal(respBody, &auth); err != nil {
		return fmt.Errorf("auth response: %w", err)
	}

	if resp.StatusCode != 200 {
		msg := auth.ErrorDescription
		if msg == "" {
			msg = auth.Msg
		}
		if msg == "" {
			msg = string(respBody)
		}
		return fmt.Errorf("auth error (status %d): %s", resp.StatusCode, msg)
	}

	if auth.AccessToken == "" {
		return fmt.Errorf("auth response missing access token")
	}

	c.mu.Lock()
	c.session = &Session{
		AccessToken: auth.AccessToken,
		UserID:      auth.User.ID,
		Email:       auth.User.Email,
	}
	c.mu.Unlock()

	c.saveSession()
	logger.Info("signed in", "user", auth.User.ID)
	return nil
}

// SignOut drops the session locally and revokes it remotely (best-effort).
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	session := c.session
	c.session = nil
	c.mu.Unlock()

	if c.tokenPath != "" {
		os.Remove(c.tokenPath)
	}

	if session == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/auth/v1/logout", nil)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+session.AccessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// Online is the proactive connectivity probe. Collectors and the message
// syncer consult it before any remote write; a false answer means "skip or
// defer, don't attempt".
func (c *Client) Online(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/auth/v1/health", nil)
	if err != nil {
		return false
	}
	req.Header.Set("apikey", c.anonKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}

func (c *Client) loadSession() {
	if c.tokenPath == "" {
		return
	}

	data, err := os.ReadFile(c.tokenPath)
	if err != nil {
		return
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		logger.Warn("ignoring corrupt session file", "path", c.tokenPath)
		return
	}

	if s.AccessToken != "" && s.UserID != "" {
		c.session = &s
		logger.Debug("session restored", "user", s.UserID)
	}
}

func (c *Client) saveSession() {
	if c.tokenPath == "" {
		return
	}

	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session == nil {
		return
	}

	data, err := json.Marshal(session)
	if err != nil {
		return
	}

	if err := os.WriteFile(c.tokenPath, data, 0o600); err != nil {
		logger.Warn("failed to persist session", "error", err)
	}
}

// --- row plumbing ---

func (c *Client) bearer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		return c.session.AccessToken
	}
	return c.anonKey
}

func (c *Client) rowRequest(ctx context.Context, method, table string, params url.Values, body any, prefer string) (*http.Response, error) {
	u := c.baseURL + "/rest/v1/" + table
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+c.bearer())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	return c.http.Do(req)
}

func (c *Client) insert(ctx context.Context, table string, rows any) error {
	return c.write(ctx, "POST", table, nil, rows, "return=minimal")
}

// upsert inserts rows, resolving conflicts on the given natural-key columns.
// merge=true overwrites the existing row (message sync); merge=false keeps it
// (photo/calendar dedup: insert-if-absent without a read-then-write race).
func (c *Client) upsert(ctx context.Context, table, onConflict string, rows any, merge bool) error {
	params := url.Values{}
	params.Set("on_conflict", onConflict)

	resolution := "ignore-duplicates"
	if merge {
		resolution = "merge-duplicates"
	}

	return c.write(ctx, "POST", table, params, rows, "resolution="+resolution+",return=minimal")
}

func (c *Client) update(ctx context.Context, table string, params url.Values, patch any) error {
	return c.write(ctx, "PATCH", table, params, patch, "return=minimal")
}

func (c *Client) write(ctx context.Context, method, table string, params url.Values, body any, prefer string) error {
	resp, err := c.rowRequest(ctx, method, table, params, body, prefer)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("store error (status %d): %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func (c *Client) selectInto(ctx context.Context, table string, params url.Values, dest any) error {
	resp, err := c.rowRequest(ctx, "GET", table, params, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 300 {
		return fmt.Errorf("store error (status %d): %s", resp.StatusCode, string(respBody))
	}

	return json.Unmarshal(respBody, dest)
}
