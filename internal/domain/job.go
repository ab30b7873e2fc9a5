package domain

import "time"

// JobKind enumerates supported generation job categories.
type JobKind string

const (
	JobKindAvatar    JobKind = "avatar"
	JobKindVideo     JobKind = "video"
	JobKindChatVideo JobKind = "chat_video"
)

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// VideoParams captures the synthesis request exactly as received. The struct
// is stored on the job at creation and never mutated afterwards.
type VideoParams struct {
	Prompt          string   `json:"prompt"`
	FaceCaptures    []string `json:"face_captures,omitempty"`
	ReferenceImages []string `json:"reference_images,omitempty"`
	DurationSeconds int      `json:"duration_seconds"`
	Style           string   `json:"style,omitempty"`
	AgeYears        int      `json:"age_years,omitempty"`
	Locale          string   `json:"locale,omitempty"`
}

// Job encapsulates the lifecycle of one avatar/video generation request.
//
// Exactly one of OutputRef and ErrorMessage is set once the job is terminal:
// OutputRef for succeeded, ErrorMessage for failed. While the job is queued or
// running both are empty.
type Job struct {
	ID           string
	OwnerID      string
	Kind         JobKind
	Status       JobStatus
	Progress     int
	OutputRef    string
	ErrorMessage string
	Params       VideoParams
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Clone returns a copy safe to hand to callers while the background runner
// keeps mutating the canonical record.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	out := *j
	out.Params.FaceCaptures = append([]string(nil), j.Params.FaceCaptures...)
	out.Params.ReferenceImages = append([]string(nil), j.Params.ReferenceImages...)
	return &out
}
