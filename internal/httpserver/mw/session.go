package mw

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/logger"
	"github.com/MrSnakeDoc/shelf/internal/view"
)

// Restorer adopts a session token carried by a request.
type Restorer interface {
	Restore(ctx context.Context, token string) (domain.Session, bool)
}

// RequireSession lets a request through only when its own cookie carries the
// active session, or restores that session when none is active. Anything else
// gets 401 with an empty view state, so nothing of the active owner leaks out.
func RequireSession(auth Restorer, cookieName string, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := r.Cookie(cookieName)
			if err != nil || c.Value == "" {
				unauthorized(w, log)
				return
			}
			if _, ok := auth.Restore(r.Context(), c.Value); !ok {
				log.Debug("session cookie refused", logger.String("path", r.URL.Path))
				unauthorized(w, log)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, log logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusUnauthorized)
	if err := json.NewEncoder(w).Encode(view.State{Bookmarks: []domain.Bookmark{}}); err != nil {
		log.Debug("failed to write response", logger.Error(err))
	}
}
