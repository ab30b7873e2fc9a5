package chat

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func TestReplyWithoutKeyReturnsStub(t *testing.T) {
	responder := NewGeminiResponder(Options{})
	got := responder.Reply(context.Background(), "I'm worried about exams", "maya")
	if !strings.HasPrefix(got, "(stub) Future Maya:") {
		t.Fatalf("Reply = %q, want stub prefix with title-cased name", got)
	}
	if !strings.Contains(got, "I'm worried about exams") {
		t.Fatalf("Reply = %q, want original message echoed", got)
	}
}

func TestReplyUsesRemoteText(t *testing.T) {
	responder := NewGeminiResponder(Options{
		APIKey: "dummy",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			body := io.NopCloser(strings.NewReader(
				`{"candidates":[{"content":{"parts":[{"text":"You have grown more than you realize."}]}}]}`))
			return &http.Response{StatusCode: http.StatusOK, Body: body}, nil
		})},
	})
	got := responder.Reply(context.Background(), "hello", "u1")
	if got != "You have grown more than you realize." {
		t.Fatalf("Reply = %q", got)
	}
}

func TestReplyFallsBackOnRemoteFailure(t *testing.T) {
	responder := NewGeminiResponder(Options{
		APIKey: "dummy",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return nil, errors.New("boom")
		})},
	})
	got := responder.Reply(context.Background(), "hello", "u1")
	if got != fallbackReply {
		t.Fatalf("Reply = %q, want %q", got, fallbackReply)
	}
}

func TestReplyFallsBackOnBackendError(t *testing.T) {
	responder := NewGeminiResponder(Options{
		APIKey: "dummy",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			body := io.NopCloser(strings.NewReader(`{"error":{"message":"quota exceeded"}}`))
			return &http.Response{StatusCode: http.StatusTooManyRequests, Body: body}, nil
		})},
	})
	got := responder.Reply(context.Background(), "hello", "u1")
	if got != fallbackReply {
		t.Fatalf("Reply = %q, want %q", got, fallbackReply)
	}
}

func TestReplyFallsBackOnEmptyCandidates(t *testing.T) {
	responder := NewGeminiResponder(Options{
		APIKey: "dummy",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			body := io.NopCloser(strings.NewReader(`{"candidates":[]}`))
			return &http.Response{StatusCode: http.StatusOK, Body: body}, nil
		})},
	})
	got := responder.Reply(context.Background(), "hello", "u1")
	if got != fallbackReply {
		t.Fatalf("Reply = %q, want %q", got, fallbackReply)
	}
}
