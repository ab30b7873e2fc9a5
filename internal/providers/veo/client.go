package veo

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/anishko/Ekho/internal/storage"
)

// Params describes one video synthesis request at the provider boundary.
type Params struct {
	Prompt          string
	ReferenceImages []string
	DurationSeconds int
	Style           string
	RequestID       string
}

// State is the coarse progress of a remote operation.
type State string

const (
	StatePending State = "pending"
	StateDone    State = "done"
	StateError   State = "error"
)

// Operation is an opaque handle for an in-flight remote synthesis.
type Operation struct {
	Name      string
	StartedAt time.Time

	synthetic    bool
	syntheticEnd time.Time
	params       Params
}

// PollResult is one observation of a remote operation.
type PollResult struct {
	State       State
	Progress    int
	ArtifactRef string
	ErrorDetail string
}

// Client is the contract the job lifecycle manager depends on. Poll must be
// safely callable repeatedly until a terminal state is observed.
type Client interface {
	Begin(ctx context.Context, p Params) (*Operation, error)
	Poll(ctx context.Context, op *Operation) (*PollResult, error)
}

// ClientError reports a failure from the generation backend. Transient errors
// may be retried by the caller; anything else is terminal for the job.
type ClientError struct {
	Op         string
	StatusCode int
	Message    string
	Transient  bool
	Err        error
}

func (e *ClientError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("veo: %s: %s", e.Op, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("veo: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("veo: %s failed", e.Op)
}

func (e *ClientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retryable backend failure.
func IsTransient(err error) bool {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Transient
	}
	return false
}

// Options configures the HTTP client. When APIKey is empty the client runs in
// synthetic mode: operations resolve locally with a deterministic placeholder
// artifact written through the store, so the rest of the pipeline stays
// exercisable in local and CI environments.
type Options struct {
	APIKey           string
	BaseURL          string
	Model            string
	HTTPClient       *http.Client
	Logger           *zerolog.Logger
	Store            *storage.FileStore
	SyntheticLatency time.Duration
}

// HTTPClient talks to a Veo-style long-running operation API.
type HTTPClient struct {
	apiKey           string
	baseURL          string
	model            string
	httpClient       *http.Client
	logger           zerolog.Logger
	store            *storage.FileStore
	syntheticLatency time.Duration
}

// NewClient constructs a client with sane defaults.
func NewClient(opts Options) (*HTTPClient, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := opts.Model
	if model == "" {
		model = "veo-2.0-generate-001"
	}
	logger := zerolog.New(io.Discard)
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	latency := opts.SyntheticLatency
	if latency <= 0 {
		latency = 3 * time.Second
	}
	return &HTTPClient{
		apiKey:           strings.TrimSpace(opts.APIKey),
		baseURL:          baseURL,
		model:            model,
		httpClient:       httpClient,
		logger:           logger,
		store:            opts.Store,
		syntheticLatency: latency,
	}, nil
}

// Model returns the configured model identifier.
func (c *HTTPClient) Model() string { return c.model }

type beginRequest struct {
	Instances []beginInstance `json:"instances"`
	Params    beginParams     `json:"parameters"`
}

type beginInstance struct {
	Prompt string   `json:"prompt"`
	Images []string `json:"referenceImages,omitempty"`
}

type beginParams struct {
	DurationSeconds int    `json:"durationSeconds,omitempty"`
	Style           string `json:"style,omitempty"`
}

type operationResponse struct {
	Name     string `json:"name"`
	Done     bool   `json:"done"`
	Metadata struct {
		ProgressPercent int `json:"progressPercent"`
	} `json:"metadata"`
	Response struct {
		GeneratedVideos []struct {
			URI string `json:"uri"`
		} `json:"generatedVideos"`
	} `json:"response"`
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Begin starts a remote operation and returns its handle without waiting for
// completion.
func (c *HTTPClient) Begin(ctx context.Context, p Params) (*Operation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.apiKey == "" {
		return c.beginSynthetic(p), nil
	}

	body, err := json.Marshal(beginRequest{
		Instances: []beginInstance{{Prompt: p.Prompt, Images: p.ReferenceImages}},
		Params:    beginParams{DurationSeconds: p.DurationSeconds, Style: p.Style},
	})
	if err != nil {
		return nil, &ClientError{Op: "begin", Message: "encode request", Err: err}
	}

	endpoint := fmt.Sprintf("%s/models/%s:predictLongRunning?key=%s", c.baseURL, url.PathEscape(c.model), url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &ClientError{Op: "begin", Message: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	var op operationResponse
	if err := c.do(req, "begin", &op); err != nil {
		return nil, err
	}
	if op.Name == "" {
		return nil, &ClientError{Op: "begin", Message: "backend returned no operation name"}
	}
	c.logger.Debug().Str("operation", op.Name).Str("request_id", p.RequestID).Msg("veo: operation started")
	return &Operation{Name: op.Name, StartedAt: time.Now(), params: p}, nil
}

// Poll reports the current state of an operation.
func (c *HTTPClient) Poll(ctx context.Context, op *Operation) (*PollResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if op == nil {
		return nil, &ClientError{Op: "poll", Message: "nil operation"}
	}
	if op.synthetic {
		return c.pollSynthetic(ctx, op)
	}

	endpoint := fmt.Sprintf("%s/%s?key=%s", c.baseURL, op.Name, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &ClientError{Op: "poll", Message: "build request", Err: err}
	}

	var decoded operationResponse
	if err := c.do(req, "poll", &decoded); err != nil {
		return nil, err
	}
	if decoded.Error.Message != "" {
		return &PollResult{State: StateError, ErrorDetail: decoded.Error.Message}, nil
	}
	if !decoded.Done {
		return &PollResult{State: StatePending, Progress: decoded.Metadata.ProgressPercent}, nil
	}
	if len(decoded.Response.GeneratedVideos) == 0 {
		return &PollResult{State: StateError, ErrorDetail: "operation finished without an artifact"}, nil
	}
	return &PollResult{
		State:       StateDone,
		Progress:    100,
		ArtifactRef: decoded.Response.GeneratedVideos[0].URI,
	}, nil
}

func (c *HTTPClient) do(req *http.Request, op string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ClientError{Op: op, Message: "http request", Transient: true, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return &ClientError{Op: op, Message: "read response", Transient: true, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		msg := decodeErrorMessage(payload)
		return &ClientError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    msg,
			Transient:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
		}
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &ClientError{Op: op, Message: "decode response", Err: err}
	}
	return nil
}

func decodeErrorMessage(payload []byte) string {
	var decoded struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(payload, &decoded); err == nil && decoded.Error.Message != "" {
		return decoded.Error.Message
	}
	return strings.TrimSpace(string(payload))
}

func (c *HTTPClient) beginSynthetic(p Params) *Operation {
	now := time.Now()
	sum := sha256.Sum256([]byte(p.RequestID + "|" + p.Prompt))
	name := "operations/synthetic-" + hex.EncodeToString(sum[:8])
	c.logger.Debug().Str("operation", name).Msg("veo: api key missing, running synthetic operation")
	return &Operation{
		Name:         name,
		StartedAt:    now,
		synthetic:    true,
		syntheticEnd: now.Add(c.syntheticLatency),
		params:       p,
	}
}

func (c *HTTPClient) pollSynthetic(ctx context.Context, op *Operation) (*PollResult, error) {
	now := time.Now()
	if now.Before(op.syntheticEnd) {
		total := op.syntheticEnd.Sub(op.StartedAt)
		elapsed := now.Sub(op.StartedAt)
		progress := 0
		if total > 0 {
			progress = int(elapsed * 100 / total)
		}
		return &PollResult{State: StatePending, Progress: progress}, nil
	}

	ref := fmt.Sprintf("generated/videos/%s/video.mp4", op.params.RequestID)
	if c.store != nil {
		data := syntheticMP4(op.params)
		key, err := c.store.Write(ctx, ref, data)
		if err != nil {
			return &PollResult{State: StateError, ErrorDetail: "persist synthetic artifact: " + err.Error()}, nil
		}
		ref = key
	}
	return &PollResult{State: StateDone, Progress: 100, ArtifactRef: ref}, nil
}

// syntheticMP4 produces a tiny deterministic payload standing in for encoded
// video. Content depends only on the request so reruns are reproducible.
func syntheticMP4(p Params) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x00\x00\x00\x18ftypmp42")
	fmt.Fprintf(&buf, "ekho synthetic video request=%s duration=%d style=%s prompt=%s",
		p.RequestID, p.DurationSeconds, p.Style, p.Prompt)
	return buf.Bytes()
}

var _ Client = (*HTTPClient)(nil)
