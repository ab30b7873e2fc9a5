package chat

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

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Responder produces a conversational reply. Implementations never fail
// outward: the caller always receives a usable string.
type Responder interface {
	Reply(ctx context.Context, message, speakerName string) string
}

// Options configures the Gemini responder.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *zerolog.Logger
}

// GeminiResponder wraps the Gemini text API. Without an API key it degrades
// to a stub reply; a failed remote call degrades to a fixed fallback line.
type GeminiResponder struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     zerolog.Logger
	titler     cases.Caser
}

const fallbackReply = "I'm here. What part worries you most?"

// NewGeminiResponder constructs a responder with sane defaults.
func NewGeminiResponder(opts Options) *GeminiResponder {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	logger := zerolog.New(io.Discard)
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &GeminiResponder{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		logger:     logger,
		titler:     cases.Title(language.English),
	}
}

// Reply returns the avatar's response to message. It never returns an empty
// string and never propagates an error.
func (r *GeminiResponder) Reply(ctx context.Context, message, speakerName string) string {
	name := r.titler.String(strings.TrimSpace(speakerName))
	if name == "" {
		name = "You"
	}
	if r.apiKey == "" {
		return fmt.Sprintf("(stub) Future %s: '%s' — tell me more.", name, message)
	}

	prompt := fmt.Sprintf(
		"You are %s, speaking to your past self from 5 years in the future. "+
			"Warm, concise, supportive. Ask one gentle follow-up question.\n\nUser: %s",
		name, message,
	)
	text, err := r.generate(ctx, prompt)
	if err != nil {
		r.logger.Warn().Err(err).Str("model", r.model).Msg("chat: remote reply failed, using fallback")
		return fallbackReply
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return fallbackReply
	}
	return text
}

type generateContentRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text,omitempty"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (r *GeminiResponder) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateContentRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("chat: encode request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", r.baseURL, url.PathEscape(r.model), url.QueryEscape(r.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("chat: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat: http request: %w", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("chat: read response: %w", err)
	}

	var decoded generateContentResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return "", fmt.Errorf("chat: decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := decoded.Error.Message
		if msg == "" {
			msg = resp.Status
		}
		return "", fmt.Errorf("chat: backend error: %s", msg)
	}
	for _, cand := range decoded.Candidates {
		for _, p := range cand.Content.Parts {
			if p.Text != "" {
				return p.Text, nil
			}
		}
	}
	return "", fmt.Errorf("chat: backend returned no text")
}

var _ Responder = (*GeminiResponder)(nil)
