package veo

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/anishko/Ekho/internal/storage"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func TestSyntheticOperationCompletes(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}
	client, err := NewClient(Options{Store: store, SyntheticLatency: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	op, err := client.Begin(context.Background(), Params{Prompt: "sunset", RequestID: "job-1"})
	if err != nil {
		t.Fatalf("Begin returned error: %v", err)
	}
	if op.Name == "" {
		t.Fatal("expected synthetic operation name")
	}

	res, err := client.Poll(context.Background(), op)
	if err != nil {
		t.Fatalf("Poll returned error: %v", err)
	}
	if res.State != StatePending {
		t.Fatalf("State = %q, want %q", res.State, StatePending)
	}

	time.Sleep(20 * time.Millisecond)
	res, err = client.Poll(context.Background(), op)
	if err != nil {
		t.Fatalf("Poll returned error: %v", err)
	}
	if res.State != StateDone {
		t.Fatalf("State = %q, want %q", res.State, StateDone)
	}
	if res.ArtifactRef != "generated/videos/job-1/video.mp4" {
		t.Fatalf("ArtifactRef = %q", res.ArtifactRef)
	}
	if res.Progress != 100 {
		t.Fatalf("Progress = %d, want 100", res.Progress)
	}
}

func TestSyntheticOperationIsDeterministic(t *testing.T) {
	client, err := NewClient(Options{SyntheticLatency: time.Millisecond})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	p := Params{Prompt: "sunset", RequestID: "job-1"}
	op1 := client.beginSynthetic(p)
	op2 := client.beginSynthetic(p)
	if op1.Name != op2.Name {
		t.Fatalf("operation names differ: %q vs %q", op1.Name, op2.Name)
	}
}

func TestBeginParsesOperationName(t *testing.T) {
	client, err := NewClient(Options{
		APIKey: "dummy",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if r.Method != http.MethodPost {
				t.Fatalf("method = %q, want POST", r.Method)
			}
			return jsonResponse(http.StatusOK, `{"name":"operations/abc123"}`), nil
		})},
	})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	op, err := client.Begin(context.Background(), Params{Prompt: "p", RequestID: "j"})
	if err != nil {
		t.Fatalf("Begin returned error: %v", err)
	}
	if op.Name != "operations/abc123" {
		t.Fatalf("operation name = %q", op.Name)
	}
}

func TestBeginMapsServerErrorsTransient(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantTransient bool
	}{
		{"bad request", http.StatusBadRequest, false},
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusInternalServerError, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client, err := NewClient(Options{
				APIKey: "dummy",
				HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
					return jsonResponse(tc.status, `{"error":{"message":"nope"}}`), nil
				})},
			})
			if err != nil {
				t.Fatalf("NewClient returned error: %v", err)
			}
			_, err = client.Begin(context.Background(), Params{Prompt: "p"})
			if err == nil {
				t.Fatal("expected error")
			}
			var ce *ClientError
			if !errors.As(err, &ce) {
				t.Fatalf("error type = %T, want *ClientError", err)
			}
			if ce.Transient != tc.wantTransient {
				t.Fatalf("Transient = %v, want %v", ce.Transient, tc.wantTransient)
			}
			if ce.Message != "nope" {
				t.Fatalf("Message = %q, want %q", ce.Message, "nope")
			}
		})
	}
}

func TestPollStates(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		want     State
		artifact string
		detail   string
	}{
		{
			name: "pending with progress",
			body: `{"name":"op","done":false,"metadata":{"progressPercent":42}}`,
			want: StatePending,
		},
		{
			name:     "done with artifact",
			body:     `{"name":"op","done":true,"response":{"generatedVideos":[{"uri":"vid://abc"}]}}`,
			want:     StateDone,
			artifact: "vid://abc",
		},
		{
			name:   "backend error",
			body:   `{"name":"op","done":true,"error":{"code":8,"message":"quota exceeded"}}`,
			want:   StateError,
			detail: "quota exceeded",
		},
		{
			name:   "done without artifact",
			body:   `{"name":"op","done":true,"response":{}}`,
			want:   StateError,
			detail: "operation finished without an artifact",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client, err := NewClient(Options{
				APIKey: "dummy",
				HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
					return jsonResponse(http.StatusOK, tc.body), nil
				})},
			})
			if err != nil {
				t.Fatalf("NewClient returned error: %v", err)
			}
			res, err := client.Poll(context.Background(), &Operation{Name: "op"})
			if err != nil {
				t.Fatalf("Poll returned error: %v", err)
			}
			if res.State != tc.want {
				t.Fatalf("State = %q, want %q", res.State, tc.want)
			}
			if res.ArtifactRef != tc.artifact {
				t.Fatalf("ArtifactRef = %q, want %q", res.ArtifactRef, tc.artifact)
			}
			if tc.detail != "" && res.ErrorDetail != tc.detail {
				t.Fatalf("ErrorDetail = %q, want %q", res.ErrorDetail, tc.detail)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	if IsTransient(errors.New("plain")) {
		t.Fatal("plain error reported transient")
	}
	if !IsTransient(&ClientError{Transient: true}) {
		t.Fatal("transient client error not detected")
	}
	if IsTransient(&ClientError{}) {
		t.Fatal("terminal client error reported transient")
	}
}
