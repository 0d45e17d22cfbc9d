package completion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"google.golang.org/genai"

	"github.com/edgard/cozerelay/internal/config"
)

func TestAnswerFromGemini(t *testing.T) {
	t.Parallel()

	textResponse := func(parts ...string) *genai.GenerateContentResponse {
		var ps []*genai.Part
		for _, p := range parts {
			ps = append(ps, &genai.Part{Text: p})
		}
		return &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: ps, Role: genai.RoleModel}}},
		}
	}

	tests := []struct {
		name       string
		resp       *genai.GenerateContentResponse
		want       string
		wantReason string
	}{
		{name: "single part", resp: textResponse("你好"), want: "你好"},
		{name: "trimmed", resp: textResponse("  answer \n"), want: "answer"},
		{name: "nil response", resp: nil, wantReason: ReasonMissingMessages},
		{name: "no candidates", resp: &genai.GenerateContentResponse{}, wantReason: ReasonNoAnswer},
		{name: "blank text", resp: textResponse("   "), wantReason: ReasonNoAnswer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := answerFromGemini(tt.resp)
			if tt.wantReason != "" {
				var mErr *MalformedResponseError
				if !errors.As(err, &mErr) || mErr.Reason != tt.wantReason {
					t.Fatalf("answerFromGemini() error = %v, want reason %q", err, tt.wantReason)
				}
				return
			}
			if err != nil {
				t.Fatalf("answerFromGemini() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("answerFromGemini() = %q, want %q", got, tt.want)
			}
		})
	}
}

func newTestGeminiClient(t *testing.T, handler http.HandlerFunc) *GeminiClient {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewGeminiClient(context.Background(), config.GeminiConfig{
		APIKey:      "test-key",
		Model:       "gemini-2.0-flash",
		Temperature: 1,
		BaseURL:     srv.URL + "/",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewGeminiClient() error = %v", err)
	}
	return c
}

func TestGeminiClientComplete(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if !strings.Contains(r.URL.Path, "gemini-2.0-flash:generateContent") {
			t.Errorf("request path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":" 你好 "}]}}]}`)
	})

	got, err := c.Complete(context.Background(), "u1", "hi")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "你好" {
		t.Errorf("Complete() = %q, want %q", got, "你好")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("API calls = %d, want 1", n)
	}
}

func TestGeminiClientCompleteErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantBody   string
		wantReason string
	}{
		{
			name:       "server error",
			status:     http.StatusInternalServerError,
			body:       `{"error":{"code":500,"message":"boom","status":"INTERNAL"}}`,
			wantStatus: http.StatusInternalServerError,
			wantBody:   "boom",
		},
		{
			name:       "bad request",
			status:     http.StatusBadRequest,
			body:       `{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   "API key not valid",
		},
		{
			name:       "no candidates",
			status:     http.StatusOK,
			body:       `{"candidates":[]}`,
			wantReason: ReasonNoAnswer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := newTestGeminiClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})

			_, err := c.Complete(context.Background(), "u1", "hi")
			if err == nil {
				t.Fatal("Complete() error = nil, want error")
			}

			if tt.wantReason != "" {
				var mErr *MalformedResponseError
				if !errors.As(err, &mErr) || mErr.Reason != tt.wantReason {
					t.Fatalf("Complete() error = %v, want reason %q", err, tt.wantReason)
				}
				return
			}

			var hErr *HTTPError
			if !errors.As(err, &hErr) {
				t.Fatalf("Complete() error = %v (%T), want *HTTPError", err, err)
			}
			if hErr.Status != tt.wantStatus || hErr.Body != tt.wantBody {
				t.Errorf("HTTPError = %+v, want status %d body %q", hErr, tt.wantStatus, tt.wantBody)
			}
		})
	}
}

func TestAsHTTPError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		want   *HTTPError
		wantOK bool
	}{
		{name: "value", err: genai.APIError{Code: 503, Message: "overloaded"}, want: &HTTPError{Status: 503, Body: "overloaded"}, wantOK: true},
		{name: "wrapped value", err: fmt.Errorf("call: %w", genai.APIError{Code: 429, Message: "quota"}), want: &HTTPError{Status: 429, Body: "quota"}, wantOK: true},
		{name: "pointer", err: &genai.APIError{Code: 401, Message: "denied"}, want: &HTTPError{Status: 401, Body: "denied"}, wantOK: true},
		{name: "other", err: errors.New("dial tcp: timeout")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := asHTTPError(tt.err)
			if ok != tt.wantOK {
				t.Fatalf("asHTTPError() ok = %v, want %v", ok, tt.wantOK)
			}
			if tt.wantOK && *got != *tt.want {
				t.Errorf("asHTTPError() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
