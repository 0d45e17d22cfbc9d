package qq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// MsgTypeText is the msg_type of plain text messages.
const MsgTypeText = 0

// MessageToCreate is the body of the group and C2C send endpoints.
type MessageToCreate struct {
	Content string `json:"content"`
	MsgType int    `json:"msg_type"`
	MsgID   string `json:"msg_id,omitempty"`
}

// MessageResponse is returned by the send endpoints.
type MessageResponse struct {
	ID        string `json:"id"`
	Timestamp any    `json:"timestamp,omitempty"`
}

// APIError is a non-2xx OpenAPI response.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("qq openapi returned HTTP %d: %s", e.Status, e.Body)
}

// Client is a minimal QQ OpenAPI client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     *TokenSource
}

// NewClient creates an OpenAPI client for baseURL.
func NewClient(httpClient *http.Client, baseURL string, tokens *TokenSource) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
	}
}

// PostGroupMessage sends msg to the group identified by groupOpenID.
func (c *Client) PostGroupMessage(ctx context.Context, groupOpenID string, msg MessageToCreate) (*MessageResponse, error) {
	var out MessageResponse
	path := "/v2/groups/" + url.PathEscape(groupOpenID) + "/messages"
	if err := c.do(ctx, http.MethodPost, path, msg, &out); err != nil {
		return nil, fmt.Errorf("post group message: %w", err)
	}
	return &out, nil
}

// PostC2CMessage sends msg to the user identified by openID.
func (c *Client) PostC2CMessage(ctx context.Context, openID string, msg MessageToCreate) (*MessageResponse, error) {
	var out MessageResponse
	path := "/v2/users/" + url.PathEscape(openID) + "/messages"
	if err := c.do(ctx, http.MethodPost, path, msg, &out); err != nil {
		return nil, fmt.Errorf("post c2c message: %w", err)
	}
	return &out, nil
}

type gatewayResponse struct {
	URL string `json:"url"`
}

// GatewayURL returns the websocket URL to connect to.
func (c *Client) GatewayURL(ctx context.Context) (string, error) {
	var out gatewayResponse
	if err := c.do(ctx, http.MethodGet, "/gateway", nil, &out); err != nil {
		return "", fmt.Errorf("get gateway: %w", err)
	}
	if out.URL == "" {
		return "", fmt.Errorf("get gateway: empty url")
	}
	return out.URL, nil
}

// AuthHeader returns the Authorization header value for the current token.
func (c *Client) AuthHeader(ctx context.Context) (string, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return "", err
	}
	return "QQBot " + token, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, response any) error {
	auth, err := c.AuthHeader(ctx)
	if err != nil {
		return fmt.Errorf("failed to get access token: %w", err)
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", auth)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if response == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, response); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
