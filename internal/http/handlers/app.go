package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/anishko/Ekho/internal/adapter/repo"
	"github.com/anishko/Ekho/internal/infra"
	"github.com/anishko/Ekho/internal/jobs"
	"github.com/anishko/Ekho/internal/providers/chat"
	"github.com/anishko/Ekho/internal/providers/voice"
	"github.com/anishko/Ekho/internal/storage"
)

// App is the handler container. Collaborators are constructed once at process
// start and injected; handlers never reach for ambient state.
type App struct {
	Jobs      *jobs.Manager
	Responder chat.Responder
	Voice     *voice.Client
	Analytics *repo.AnalyticsRepo
	Store     *storage.FileStore
	Cfg       *infra.Config
	Logger    infra.Logger
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, msg string) {
	a.json(w, code, errorResponse{Error: kind, Message: msg})
}
