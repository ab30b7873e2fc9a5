package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/anishko/Ekho/internal/domain"
	"github.com/anishko/Ekho/internal/middleware"
)

type chatRequest struct {
	UserID         string  `json:"user_id"`
	Message        string  `json:"message"`
	MakeVideo      bool    `json:"make_video"`
	EmotionalTag   string  `json:"emotional_tag"`
	SentimentScore float64 `json:"sentiment_score"`
}

type chatResponse struct {
	Text       string `json:"text"`
	VideoJobID string `json:"video_job_id,omitempty"`
}

// Chat returns the avatar's reply for a user message. With make_video set it
// also kicks off a video of the avatar speaking the reply; a failed kickoff
// never fails the chat itself.
func (a *App) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.UserID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "user_id is required")
		return
	}
	if req.Message == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "message is required")
		return
	}

	reply := a.Responder.Reply(r.Context(), req.Message, req.UserID)

	var videoJobID string
	mode := "chat"
	if req.MakeVideo {
		mode = "chat_video"
		params := domain.VideoParams{
			Prompt:          reply,
			DurationSeconds: 10,
			Style:           "conversational",
			Locale:          middleware.LocaleFromContext(r.Context()),
		}
		jobID, err := a.Jobs.Start(r.Context(), req.UserID, domain.JobKindChatVideo, params)
		if err != nil {
			a.Logger.Warn().Err(err).Str("user_id", req.UserID).Msg("handlers: chat video kickoff failed")
		} else {
			videoJobID = jobID
		}
	}

	a.logConversation(req, mode, middleware.CountryFromContext(r.Context()))

	a.json(w, http.StatusOK, chatResponse{Text: reply, VideoJobID: videoJobID})
}

// logConversation ships the analytics event off the request path. Warehouse
// failures are swallowed and logged.
func (a *App) logConversation(req chatRequest, mode, country string) {
	if a.Analytics == nil {
		return
	}
	ev := domain.ConversationEvent{
		UserID:           req.UserID,
		EmotionalTag:     req.EmotionalTag,
		ConversationMode: mode,
		SentimentScore:   req.SentimentScore,
		CountryCode:      country,
		Timestamp:        time.Now().UTC(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.Analytics.LogConversation(ctx, ev); err != nil {
			a.Logger.Warn().Err(err).Str("user_id", ev.UserID).Msg("handlers: analytics insert failed")
		}
	}()
}

// EmotionalTrends returns the 30-day sentiment trend for a user. An
// unavailable warehouse yields an empty trend, not an error.
func (a *App) EmotionalTrends(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	if userID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "user_id required")
		return
	}
	points := []map[string]any{}
	if a.Analytics != nil {
		trend, err := a.Analytics.EmotionalTrends(r.Context(), userID)
		if err != nil {
			a.Logger.Warn().Err(err).Str("user_id", userID).Msg("handlers: trends query failed")
		} else {
			for _, p := range trend {
				points = append(points, map[string]any{
					"date":               p.Date.Format("2006-01-02"),
					"avg_emotion":        p.AvgSentiment,
					"conversation_count": p.ConversationCount,
				})
			}
		}
	}
	a.json(w, http.StatusOK, map[string]any{"user_id": userID, "trend": points})
}
