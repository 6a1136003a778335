package handlers

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/MrSnakeDoc/shelf/internal/httpserver/deps"
)

type componentStatus struct {
	OK          bool   `json:"ok"`
	Kind        string `json:"kind,omitempty"`
	Mode        string `json:"mode,omitempty"`
	Impact      string `json:"impact,omitempty"`
	Count       *int   `json:"count,omitempty"`
	LastRefresh string `json:"last_refresh,omitempty"`
	Error       string `json:"error,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
}

// Infra reports the state of every moving part.
func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := d.View.Stats()
		state := d.View.State()

		lastRefresh := "never"
		if !stats.LastRefresh.IsZero() {
			lastRefresh = stats.LastRefresh.Format(time.RFC3339)
		}

		components := map[string]componentStatus{
			"store":   checkStore(r, d),
			"feed":    checkFeed(r, d, stats.Subscribed),
			"session": {OK: state.Session != nil, Kind: providers(d)},
			"refresh": {
				OK:          !stats.Running || stats.Applied > 0,
				Mode:        refreshMode(stats.Interval),
				Count:       &stats.Count,
				LastRefresh: lastRefresh,
			},
		}

		writeJSON(w, http.StatusOK, infraResponse{
			Mode:       determineMode(components),
			Components: components,
		}, d.Logger)
	}
}

func determineMode(components map[string]componentStatus) string {
	if store, ok := components["store"]; ok && !store.OK {
		return "critical" // nothing can be read or written
	}
	if feed, ok := components["feed"]; ok && !feed.OK {
		return "degraded" // polling only
	}
	return "optimal"
}

func checkStore(r *http.Request, d deps.Deps) componentStatus {
	if err := probe(r.Context(), d.Store); err != nil {
		return componentStatus{OK: false, Kind: d.StoreKind, Impact: "bookmarks-unavailable", Error: "unreachable"}
	}
	return componentStatus{OK: true, Kind: d.StoreKind}
}

func checkFeed(r *http.Request, d deps.Deps, subscribed bool) componentStatus {
	if err := probe(r.Context(), d.Feed); err != nil {
		return componentStatus{OK: false, Kind: d.FeedKind, Mode: "polling", Impact: "push-refresh-disabled", Error: "unreachable"}
	}
	mode := "idle"
	if subscribed {
		mode = "subscribed"
	}
	return componentStatus{OK: true, Kind: d.FeedKind, Mode: mode}
}

func refreshMode(interval time.Duration) string {
	if interval <= 0 {
		return "push-only"
	}
	return "push+poll " + interval.String()
}

func providers(d deps.Deps) string {
	if d.Auth == nil {
		return ""
	}
	names := d.Auth.Providers()
	if len(names) == 0 {
		return "none"
	}
	slices.Sort(names)
	return strings.Join(names, ",")
}
