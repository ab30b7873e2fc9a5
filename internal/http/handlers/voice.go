package handlers

import (
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/anishko/Ekho/internal/domain"
	"github.com/anishko/Ekho/internal/providers/voice"
)

type voiceCloneRequest struct {
	UserID      string `json:"user_id"`
	AudioBase64 string `json:"audio_base64"`
}

// VoiceClone creates a cloned voice from a recorded sample.
func (a *App) VoiceClone(w http.ResponseWriter, r *http.Request) {
	var req voiceCloneRequest
	if err := decodeJSON(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.UserID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "user_id is required")
		return
	}
	audio, err := base64.StdEncoding.DecodeString(req.AudioBase64)
	if err != nil || len(audio) == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "audio_base64 must be a non-empty base64 payload")
		return
	}

	voiceID, err := a.Voice.CloneVoice(r.Context(), req.UserID, audio)
	if err != nil {
		if errors.Is(err, voice.ErrDisabled) {
			a.error(w, http.StatusServiceUnavailable, "voice_disabled", "voice cloning is not configured")
			return
		}
		if errors.Is(err, domain.ErrInvalidRequest) {
			a.error(w, http.StatusBadRequest, "bad_request", "invalid voice sample")
			return
		}
		a.Logger.Error().Err(err).Str("user_id", req.UserID).Msg("handlers: voice clone failed")
		a.error(w, http.StatusBadGateway, "provider_failure", "voice cloning failed")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"voice_id": voiceID})
}

type voiceSpeechRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voice_id"`
}

// VoiceSpeech synthesizes speech for text with a cloned voice and streams the
// audio back.
func (a *App) VoiceSpeech(w http.ResponseWriter, r *http.Request) {
	var req voiceSpeechRequest
	if err := decodeJSON(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.Text == "" || req.VoiceID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "text and voice_id are required")
		return
	}

	audio, err := a.Voice.Synthesize(r.Context(), req.Text, req.VoiceID)
	if err != nil {
		if errors.Is(err, voice.ErrDisabled) {
			a.error(w, http.StatusServiceUnavailable, "voice_disabled", "speech synthesis is not configured")
			return
		}
		if errors.Is(err, domain.ErrInvalidRequest) {
			a.error(w, http.StatusBadRequest, "bad_request", "invalid synthesis request")
			return
		}
		a.Logger.Error().Err(err).Str("voice_id", req.VoiceID).Msg("handlers: speech synthesis failed")
		a.error(w, http.StatusBadGateway, "provider_failure", "speech synthesis failed")
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio)
}
