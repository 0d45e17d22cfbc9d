package completion

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

	"github.com/edgard/cozerelay/internal/config"
)

const (
	answerType = "answer"

	// maxErrorBody caps how much of an error response ends up in HTTPError.
	maxErrorBody = 4 << 10
)

type cozeRequest struct {
	BotID           string            `json:"bot_id"`
	User            string            `json:"user"`
	Query           string            `json:"query"`
	Stream          bool              `json:"stream"`
	CustomVariables map[string]string `json:"custom_variables"`
}

type cozeMessage struct {
	Type        string `json:"type"`
	Content     string `json:"content"`
	ContentType string `json:"content_type,omitempty"`
}

type cozeResponse struct {
	Messages       []cozeMessage `json:"messages"`
	Model          string        `json:"model,omitempty"`
	ConversationID string        `json:"conversation_id,omitempty"`
	Code           int           `json:"code"`
	Msg            string        `json:"msg"`
}

// CozeClient calls the Coze v2 chat endpoint in non-streaming mode.
// Each call is a single attempt; there is no retry.
type CozeClient struct {
	httpClient *http.Client
	endpoint   string
	token      string
	botID      string
	log        *slog.Logger
}

// NewCozeClient creates a client for the configured bot. The HTTP timeout
// is taken from cfg.Timeout.
func NewCozeClient(cfg config.CozeConfig, log *slog.Logger) (*CozeClient, error) {
	if cfg.Token == "" {
		return nil, errors.New("coze token is required")
	}
	if cfg.BotID == "" {
		return nil, errors.New("coze bot id is required")
	}
	if log == nil {
		log = slog.Default()
	}

	return &CozeClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		endpoint:   cfg.Endpoint,
		token:      cfg.Token,
		botID:      cfg.BotID,
		log:        log.With("component", "coze_client"),
	}, nil
}

// Complete sends query for recipientID and returns the content of the first
// answer-typed message in the response.
func (c *CozeClient) Complete(ctx context.Context, recipientID, query string) (string, error) {
	payload := cozeRequest{
		BotID:           c.botID,
		User:            recipientID,
		Query:           query,
		Stream:          false,
		CustomVariables: map[string]string{},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "*/*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &HTTPError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var out cozeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode completion response: %w", err)
	}

	if out.Messages == nil {
		c.log.WarnContext(ctx, "Completion response has no messages field", "code", out.Code, "msg", out.Msg)
		return "", &MalformedResponseError{Reason: ReasonMissingMessages}
	}

	for _, m := range out.Messages {
		if m.Type != answerType {
			continue
		}
		c.log.InfoContext(ctx, "Completion answer received",
			"model", valueOr(out.Model, "unknown"),
			"conversation_id", valueOr(out.ConversationID, "none"),
			"answer_len", len(m.Content))
		return m.Content, nil
	}

	return "", &MalformedResponseError{Reason: ReasonNoAnswer}
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
