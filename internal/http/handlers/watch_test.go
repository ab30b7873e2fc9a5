package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestJobsWatchStreamsUpdates(t *testing.T) {
	_, router := newTestApp(t, nil)
	srv := httptest.NewServer(router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/jobs/watch?user_id=u1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	rec := doJSON(t, router, http.MethodPost, "/api/v1/generate-video",
		`{"user_id":"u1","prompt":"a mountain"}`)
	var created struct {
		JobID string `json:"job_id"`
	}
	decodeBody(t, rec, &created)

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var msg struct {
			Type string `json:"type"`
			Job  struct {
				JobID  string `json:"job_id"`
				Status string `json:"status"`
			} `json:"job"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if msg.Type != "job_update" {
			t.Fatalf("type = %q", msg.Type)
		}
		if msg.Job.JobID != created.JobID {
			t.Fatalf("job_id = %q, want %q", msg.Job.JobID, created.JobID)
		}
		if msg.Job.Status == "succeeded" {
			return
		}
	}
}

func TestJobsWatchFiltersByOwner(t *testing.T) {
	_, router := newTestApp(t, nil)
	srv := httptest.NewServer(router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/jobs/watch?user_id=watched"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	doJSON(t, router, http.MethodPost, "/api/v1/generate-video", `{"user_id":"other","prompt":"p"}`)
	rec := doJSON(t, router, http.MethodPost, "/api/v1/generate-video", `{"user_id":"watched","prompt":"p"}`)
	var created struct {
		JobID string `json:"job_id"`
	}
	decodeBody(t, rec, &created)

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var msg struct {
			Job struct {
				JobID string `json:"job_id"`
			} `json:"job"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if msg.Job.JobID != created.JobID {
			t.Fatalf("received update for foreign job %q", msg.Job.JobID)
		}
		return
	}
}
