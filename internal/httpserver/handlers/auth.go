package handlers

import (
	"errors"
	"net/http"

	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/httpserver/deps"
	"github.com/MrSnakeDoc/shelf/internal/logger"
)

const defaultProvider = "google"

// SignIn redirects to the identity provider named by ?provider= (default google).
func SignIn(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider := r.URL.Query().Get("provider")
		if provider == "" {
			provider = defaultProvider
		}

		redirect, err := d.View.SignIn(r.Context(), provider)
		if err != nil {
			if errors.Is(err, domain.ErrUnknownProvider) {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown provider"}, d.Logger)
				return
			}
			d.Logger.Warn("sign-in handoff failed", logger.String("provider", provider), logger.Error(err))
			writeJSON(w, http.StatusBadGateway, errorResponse{Error: "sign-in unavailable"}, d.Logger)
			return
		}

		http.Redirect(w, r, redirect, http.StatusFound)
	}
}

// Callback completes the handoff. Any failure only means the session stays absent.
func Callback(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		if reason := q.Get("error"); reason != "" {
			d.Logger.Warn("sign-in refused by provider", logger.String("reason", reason))
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}

		session, err := d.Auth.CompleteSignIn(r.Context(), q.Get("state"), q.Get("code"))
		if err != nil {
			d.Logger.Warn("sign-in failed", logger.Error(err))
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}

		http.SetCookie(w, sessionCookie(d, session))
		http.Redirect(w, r, "/", http.StatusFound)
	}
}

// SignOut ends the session and clears the cookie.
func SignOut(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := d.View.SignOut(r.Context())
		http.SetCookie(w, &http.Cookie{
			Name:     d.CookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   d.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
		writeJSON(w, http.StatusOK, state, d.Logger)
	}
}

func sessionCookie(d deps.Deps, s domain.Session) *http.Cookie {
	c := &http.Cookie{
		Name:     d.CookieName,
		Value:    s.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   d.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if !s.ExpiresAt.IsZero() {
		c.Expires = s.ExpiresAt
	}
	return c
}
