// Package qq connects the relay to the QQ Open Platform: it obtains app
// access tokens, receives group and C2C messages from the websocket
// gateway, and posts replies through the OpenAPI.
package qq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// refreshMargin is how long before expiry a cached token is replaced.
	refreshMargin = time.Minute
	// tokenRequestTimeout bounds the shared request, which outlives the
	// caller that started it.
	tokenRequestTimeout = 30 * time.Second
)

// ErrNoAccessToken is returned when the token endpoint answers without a
// token, which usually means the app id or secret is wrong.
var ErrNoAccessToken = errors.New("token response has no access_token")

// TokenSource fetches and caches the app access token. Safe for concurrent
// use; concurrent refreshes collapse into a single request.
type TokenSource struct {
	httpClient *http.Client
	tokenURL   string
	appID      string
	secret     string
	log        *slog.Logger

	mu      sync.RWMutex
	token   string
	expires time.Time
	group   singleflight.Group
	now     func() time.Time
}

// NewTokenSource creates a token source for the given app credentials.
func NewTokenSource(httpClient *http.Client, tokenURL, appID, secret string, log *slog.Logger) *TokenSource {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = slog.Default()
	}
	return &TokenSource{
		httpClient: httpClient,
		tokenURL:   tokenURL,
		appID:      appID,
		secret:     secret,
		log:        log.With("component", "qq_token"),
		now:        time.Now,
	}
}

// Token returns a valid access token, fetching a new one when the cached
// token is missing or about to expire.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.mu.RLock()
	token, expires := s.token, s.expires
	s.mu.RUnlock()

	if token != "" && s.now().Add(refreshMargin).Before(expires) {
		return token, nil
	}
	return s.fetch(ctx)
}

// Refresh unconditionally fetches a new access token.
func (s *TokenSource) Refresh(ctx context.Context) error {
	_, err := s.fetch(ctx)
	return err
}

// ExpiresAt reports when the cached token expires (zero if none).
func (s *TokenSource) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expires
}

type tokenRequest struct {
	AppID        string `json:"appId"`
	ClientSecret string `json:"clientSecret"`
}

type tokenResponse struct {
	AccessToken string          `json:"access_token"`
	ExpiresIn   json.RawMessage `json:"expires_in"`
	Code        int             `json:"code,omitempty"`
	Message     string          `json:"message,omitempty"`
}

// fetch joins the in-flight token request or starts one. Each caller stops
// waiting when its own ctx ends; the request itself is not cancelled by it.
func (s *TokenSource) fetch(ctx context.Context) (string, error) {
	ch := s.group.DoChan("token", func() (any, error) {
		reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), tokenRequestTimeout)
		defer cancel()
		return s.requestToken(reqCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *TokenSource) requestToken(ctx context.Context) (string, error) {
	body, err := json.Marshal(tokenRequest{AppID: s.appID, ClientSecret: s.secret})
	if err != nil {
		return "", fmt.Errorf("failed to marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("token request returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out tokenResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("%w (code %d: %s)", ErrNoAccessToken, out.Code, out.Message)
	}

	ttl, err := parseExpiresIn(out.ExpiresIn)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.token = out.AccessToken
	s.expires = s.now().Add(ttl)
	s.mu.Unlock()

	s.log.InfoContext(ctx, "Access token refreshed", "expires_in", ttl)
	return out.AccessToken, nil
}

// parseExpiresIn accepts expires_in as a JSON number or a numeric string.
func parseExpiresIn(raw json.RawMessage) (time.Duration, error) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" {
		return 0, errors.New("token response has no expires_in")
	}
	secs, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid expires_in %q: %w", s, err)
	}
	return time.Duration(secs) * time.Second, nil
}
