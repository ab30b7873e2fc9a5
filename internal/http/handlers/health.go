package handlers

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status           string `json:"status"`
	Service          string `json:"service"`
	Timestamp        string `json:"timestamp"`
	StorageConnected bool   `json:"storage_connected"`
}

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	storageOK := a.Store.Check(r.Context()) == nil
	status := "healthy"
	if !storageOK {
		status = "degraded"
	}
	a.json(w, http.StatusOK, healthResponse{
		Status:           status,
		Service:          "ekho-api",
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
		StorageConnected: storageOK,
	})
}
