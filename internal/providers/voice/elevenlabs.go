package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/anishko/Ekho/internal/domain"
)

// Options configures the ElevenLabs client.
type Options struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zerolog.Logger
}

// Client wraps the ElevenLabs voice API: one call to clone a voice from a
// sample and one call to synthesize speech with a cloned voice.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// ErrDisabled is returned when no API key is configured.
var ErrDisabled = errors.New("voice: no api key configured")

// NewClient constructs a client with sane defaults.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.elevenlabs.io/v1"
	}
	logger := zerolog.New(io.Discard)
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Enabled reports whether the client can reach the remote API.
func (c *Client) Enabled() bool { return c.apiKey != "" }

// CloneVoice creates a voice from a recorded sample and returns its id.
func (c *Client) CloneVoice(ctx context.Context, userID string, audio []byte) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}
	if len(audio) == 0 {
		return "", fmt.Errorf("%w: audio sample is required", domain.ErrInvalidRequest)
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("name", "Ekho User - "+userID); err != nil {
		return "", fmt.Errorf("voice: build form: %w", err)
	}
	if err := form.WriteField("description", "Voice clone for Ekho user "+userID); err != nil {
		return "", fmt.Errorf("voice: build form: %w", err)
	}
	file, err := form.CreateFormFile("files", "sample.mp3")
	if err != nil {
		return "", fmt.Errorf("voice: build form: %w", err)
	}
	if _, err := file.Write(audio); err != nil {
		return "", fmt.Errorf("voice: build form: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("voice: build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/voices/add", &body)
	if err != nil {
		return "", fmt.Errorf("voice: build request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("voice: clone request: %w", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("voice: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: clone failed: %s", domain.ErrProviderFailure, strings.TrimSpace(string(payload)))
	}

	var decoded struct {
		VoiceID string `json:"voice_id"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return "", fmt.Errorf("voice: decode response: %w", err)
	}
	if decoded.VoiceID == "" {
		return "", fmt.Errorf("%w: backend returned no voice id", domain.ErrProviderFailure)
	}
	c.logger.Info().Str("user_id", userID).Str("voice_id", decoded.VoiceID).Msg("voice: cloned")
	return decoded.VoiceID, nil
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

type synthesizeRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// Synthesize converts text to speech with a previously cloned voice and
// returns the raw audio bytes.
func (c *Client) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is required", domain.ErrInvalidRequest)
	}
	if strings.TrimSpace(voiceID) == "" {
		return nil, fmt.Errorf("%w: voice id is required", domain.ErrInvalidRequest)
	}

	body, err := json.Marshal(synthesizeRequest{
		Text:    text,
		ModelID: "eleven_multilingual_v2",
		VoiceSettings: voiceSettings{
			Stability:       0.35,
			SimilarityBoost: 0.75,
			Style:           0.2,
			UseSpeakerBoost: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("voice: encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/text-to-speech/%s", c.baseURL, url.PathEscape(voiceID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("voice: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voice: speech request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, fmt.Errorf("%w: speech failed: %s", domain.ErrProviderFailure, strings.TrimSpace(string(payload)))
	}
	audio, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("voice: read audio: %w", err)
	}
	c.logger.Debug().Str("voice_id", voiceID).Int("bytes", len(audio)).Msg("voice: synthesized")
	return audio, nil
}
