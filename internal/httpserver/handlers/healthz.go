package handlers

import (
	"net/http"
	"time"

	"github.com/MrSnakeDoc/shelf/internal/httpserver/deps"
)

type healthzResponse struct {
	Status    string  `json:"status"`
	Uptime    float64 `json:"uptime_seconds"`
	Store     string  `json:"store"`
	Feed      string  `json:"feed"`
	Version   string  `json:"version,omitempty"`
	Commit    string  `json:"commit,omitempty"`
	BuildDate string  `json:"build_date,omitempty"`
	GoVersion string  `json:"go_version,omitempty"`
}

// Healthz reports liveness only; it never touches the store.
func Healthz(d deps.Deps) http.HandlerFunc {
	now := d.TimeNow
	if now == nil {
		now = time.Now
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthzResponse{
			Status:    "ok",
			Uptime:    now().Sub(d.StartTime).Seconds(),
			Store:     d.StoreKind,
			Feed:      d.FeedKind,
			Version:   d.Version,
			Commit:    d.Commit,
			BuildDate: d.BuildDate,
			GoVersion: d.GoVersion,
		}, d.Logger)
	}
}
