package voice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDisabledClient(t *testing.T) {
	client := NewClient(Options{})
	if client.Enabled() {
		t.Fatal("client without key reported enabled")
	}
	if _, err := client.CloneVoice(context.Background(), "u1", []byte("audio")); !errors.Is(err, ErrDisabled) {
		t.Fatalf("CloneVoice error = %v, want ErrDisabled", err)
	}
	if _, err := client.Synthesize(context.Background(), "hi", "v1"); !errors.Is(err, ErrDisabled) {
		t.Fatalf("Synthesize error = %v, want ErrDisabled", err)
	}
}

func TestCloneVoice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/voices/add" {
			t.Fatalf("path = %q", r.URL.Path)
		}
		if r.Header.Get("xi-api-key") != "key" {
			t.Fatalf("missing xi-api-key header")
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.FormValue("name"); got != "Ekho User - u1" {
			t.Fatalf("name = %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"voice_id": "voice-123"})
	}))
	defer srv.Close()

	client := NewClient(Options{APIKey: "key", BaseURL: srv.URL})
	voiceID, err := client.CloneVoice(context.Background(), "u1", []byte("fake-audio"))
	if err != nil {
		t.Fatalf("CloneVoice returned error: %v", err)
	}
	if voiceID != "voice-123" {
		t.Fatalf("voiceID = %q", voiceID)
	}
}

func TestSynthesizeSendsVoiceSettings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/text-to-speech/") {
			t.Fatalf("path = %q", r.URL.Path)
		}
		var req synthesizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.ModelID != "eleven_multilingual_v2" {
			t.Fatalf("ModelID = %q", req.ModelID)
		}
		if req.VoiceSettings.Stability != 0.35 || req.VoiceSettings.SimilarityBoost != 0.75 {
			t.Fatalf("voice settings = %+v", req.VoiceSettings)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	client := NewClient(Options{APIKey: "key", BaseURL: srv.URL})
	audio, err := client.Synthesize(context.Background(), "hello there", "voice-123")
	if err != nil {
		t.Fatalf("Synthesize returned error: %v", err)
	}
	if string(audio) != "mp3-bytes" {
		t.Fatalf("audio = %q", audio)
	}
}

func TestSynthesizeRejectsEmptyInput(t *testing.T) {
	client := NewClient(Options{APIKey: "key"})
	if _, err := client.Synthesize(context.Background(), "", "v1"); err == nil {
		t.Fatal("expected error for empty text")
	}
	if _, err := client.Synthesize(context.Background(), "hi", ""); err == nil {
		t.Fatal("expected error for empty voice id")
	}
}
