package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/anishko/Ekho/internal/domain"
	"github.com/anishko/Ekho/internal/middleware"
)

// JobView is the wire representation of a job record.
type JobView struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	Progress  int    `json:"progress"`
	VideoURL  string `json:"video_url,omitempty"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func newJobView(job *domain.Job) JobView {
	return JobView{
		JobID:     job.ID,
		Status:    string(job.Status),
		Progress:  job.Progress,
		VideoURL:  job.OutputRef,
		Error:     job.ErrorMessage,
		CreatedAt: job.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: job.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

type generationResponse struct {
	JobID                string `json:"job_id"`
	Status               string `json:"status"`
	Message              string `json:"message"`
	EstimatedTimeSeconds int    `json:"estimated_time_seconds"`
}

type avatarRequest struct {
	UserID              string   `json:"user_id"`
	FaceCaptures        []string `json:"face_captures"`
	AgeProgressionYears int      `json:"age_progression_years"`
}

// GenerateAvatar creates an aged-avatar video job. Main endpoint for the
// onboarding flow.
func (a *App) GenerateAvatar(w http.ResponseWriter, r *http.Request) {
	var req avatarRequest
	if err := decodeJSON(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.UserID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "user_id is required")
		return
	}
	if len(req.FaceCaptures) == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "at least one face capture is required")
		return
	}
	if len(req.FaceCaptures) > a.Cfg.MaxReferenceImages {
		a.error(w, http.StatusBadRequest, "bad_request",
			fmt.Sprintf("at most %d face captures are allowed", a.Cfg.MaxReferenceImages))
		return
	}
	ageYears := req.AgeProgressionYears
	if ageYears <= 0 {
		ageYears = 5
	}

	params := domain.VideoParams{
		Prompt: fmt.Sprintf(
			"A photorealistic talking-head video of the person in the reference images, aged %d years into the future, looking into the camera with a warm expression.",
			ageYears,
		),
		FaceCaptures:    req.FaceCaptures,
		DurationSeconds: 8,
		Style:           "portrait",
		AgeYears:        ageYears,
		Locale:          middleware.LocaleFromContext(r.Context()),
	}
	jobID, err := a.Jobs.Start(r.Context(), req.UserID, domain.JobKindAvatar, params)
	if err != nil {
		a.Logger.Error().Err(err).Str("user_id", req.UserID).Msg("handlers: avatar job start failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to start avatar generation")
		return
	}

	a.json(w, http.StatusAccepted, generationResponse{
		JobID:  jobID,
		Status: string(domain.JobStatusQueued),
		Message: fmt.Sprintf(
			"Avatar generation started. Creating your future self aged %d years...", ageYears),
		EstimatedTimeSeconds: 60,
	})
}

type videoRequest struct {
	UserID          string   `json:"user_id"`
	Prompt          string   `json:"prompt"`
	ReferenceImages []string `json:"reference_images"`
	Duration        int      `json:"duration"`
	Style           string   `json:"style"`
}

// GenerateVideo creates a custom video job. Used for monthly recaps and
// custom content.
func (a *App) GenerateVideo(w http.ResponseWriter, r *http.Request) {
	var req videoRequest
	if err := decodeJSON(r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.UserID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "user_id is required")
		return
	}
	if req.Prompt == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "prompt is required")
		return
	}
	if req.Duration <= 0 {
		req.Duration = 10
	}
	if req.Duration > a.Cfg.MaxVideoDuration {
		a.error(w, http.StatusBadRequest, "bad_request",
			fmt.Sprintf("duration must be at most %d seconds", a.Cfg.MaxVideoDuration))
		return
	}
	if len(req.ReferenceImages) > a.Cfg.MaxReferenceImages {
		a.error(w, http.StatusBadRequest, "bad_request",
			fmt.Sprintf("at most %d reference images are allowed", a.Cfg.MaxReferenceImages))
		return
	}

	params := domain.VideoParams{
		Prompt:          req.Prompt,
		ReferenceImages: req.ReferenceImages,
		DurationSeconds: req.Duration,
		Style:           req.Style,
		Locale:          middleware.LocaleFromContext(r.Context()),
	}
	jobID, err := a.Jobs.Start(r.Context(), req.UserID, domain.JobKindVideo, params)
	if err != nil {
		a.Logger.Error().Err(err).Str("user_id", req.UserID).Msg("handlers: video job start failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to start video generation")
		return
	}

	a.json(w, http.StatusAccepted, generationResponse{
		JobID:                jobID,
		Status:               string(domain.JobStatusQueued),
		Message:              "Video generation started",
		EstimatedTimeSeconds: req.Duration * 3,
	})
}

// VideoStatus reports the current state of one job. Frontend polls this
// endpoint for updates; a failed job is still a successful read.
func (a *App) VideoStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}
	job, err := a.Jobs.Status(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("handlers: status read failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to read job status")
		return
	}
	a.json(w, http.StatusOK, newJobView(job))
}

// UserJobs lists all generation jobs for a user, oldest first.
func (a *App) UserJobs(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	if userID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "user_id required")
		return
	}
	list, err := a.Jobs.ListForOwner(r.Context(), userID)
	if err != nil {
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("handlers: job listing failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list jobs")
		return
	}
	views := make([]JobView, 0, len(list))
	for _, job := range list {
		views = append(views, newJobView(job))
	}
	a.json(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"jobs":    views,
		"count":   len(views),
	})
}
