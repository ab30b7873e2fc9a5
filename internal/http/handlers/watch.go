package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type jobUpdateMessage struct {
	Type string  `json:"type"`
	Job  JobView `json:"job"`
}

// JobsWatch streams job status transitions over a WebSocket. An optional
// user_id query parameter narrows the stream to one owner. Polling
// /video-status remains the primary interface; this is a push convenience for
// frontends that keep a socket open.
func (a *App) JobsWatch(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("user_id")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("handlers: websocket upgrade failed")
		return
	}
	defer conn.Close()

	updates, cancel := a.Jobs.Watch()
	defer cancel()

	// Detect client disconnect; no inbound messages are expected.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case job, ok := <-updates:
			if !ok {
				return
			}
			if owner != "" && job.OwnerID != owner {
				continue
			}
			msg := jobUpdateMessage{Type: "job_update", Job: newJobView(&job)}
			if err := conn.WriteJSON(msg); err != nil {
				a.Logger.Debug().Err(err).Msg("handlers: websocket write failed")
				return
			}
		}
	}
}
