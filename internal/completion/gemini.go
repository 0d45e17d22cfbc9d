package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/edgard/cozerelay/internal/config"
)

// GeminiClient is a Completer backed by the Gemini API. Like CozeClient it
// performs a single attempt per call.
type GeminiClient struct {
	models        *genai.Models
	model         string
	contentConfig *genai.GenerateContentConfig
	log           *slog.Logger
}

// NewGeminiClient creates a Gemini-backed completer.
func NewGeminiClient(ctx context.Context, cfg config.GeminiConfig, log *slog.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	if log == nil {
		log = slog.Default()
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	temperature := cfg.Temperature
	contentCfg := &genai.GenerateContentConfig{Temperature: &temperature}
	if cfg.SystemInstruction != "" {
		contentCfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: cfg.SystemInstruction}}}
	}

	logger := log.With("component", "gemini_client")
	logger.Info("Gemini client initialized", "model", cfg.Model)

	return &GeminiClient{
		models:        gi.Models,
		model:         cfg.Model,
		contentConfig: contentCfg,
		log:           logger,
	}, nil
}

// Complete sends query as a single user turn and returns the response text.
func (c *GeminiClient) Complete(ctx context.Context, recipientID, query string) (string, error) {
	c.log.DebugContext(ctx, "Generating answer", "recipient_id", recipientID, "query_len", len(query))

	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(query), c.contentConfig)
	if err != nil {
		if httpErr, ok := asHTTPError(err); ok {
			return "", httpErr
		}
		return "", fmt.Errorf("completion request failed: %w", err)
	}

	return answerFromGemini(resp)
}

// asHTTPError maps a genai API error to *HTTPError. The SDK returns
// APIError by value; the pointer form is accepted as well.
func asHTTPError(err error) (*HTTPError, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &HTTPError{Status: apiErr.Code, Body: apiErr.Message}, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &HTTPError{Status: apiErrPtr.Code, Body: apiErrPtr.Message}, true
	}
	return nil, false
}

func answerFromGemini(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", &MalformedResponseError{Reason: ReasonMissingMessages}
	}
	if len(resp.Candidates) == 0 {
		return "", &MalformedResponseError{Reason: ReasonNoAnswer}
	}
	answer := strings.TrimSpace(resp.Text())
	if answer == "" {
		return "", &MalformedResponseError{Reason: ReasonNoAnswer}
	}
	return answer, nil
}
