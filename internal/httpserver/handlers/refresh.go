package handlers

import (
	"errors"
	"net/http"

	"github.com/MrSnakeDoc/shelf/internal/httpserver/deps"
	"github.com/MrSnakeDoc/shelf/internal/logger"
	"github.com/MrSnakeDoc/shelf/internal/refresh"
)

type refreshResponse struct {
	Status string `json:"status"`
}

// Refresh queues a manual refresh of the bookmark list.
func Refresh(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := d.View.Refresh()
		switch {
		case err == nil:
			d.Logger.Info("manual refresh triggered via endpoint",
				logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, http.StatusAccepted, refreshResponse{Status: "triggered"}, d.Logger)
		case errors.Is(err, refresh.ErrTriggerPending):
			d.Logger.Warn("refresh already pending",
				logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, http.StatusTooManyRequests, refreshResponse{Status: "pending"}, d.Logger)
		default:
			writeJSON(w, http.StatusUnauthorized, refreshResponse{Status: "signed-out"}, d.Logger)
		}
	}
}
