package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/shelf/internal/httpserver/deps"
	"github.com/MrSnakeDoc/shelf/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/shelf/internal/httpserver/mw"
)

func init() { Register(registerAPI) }

func registerAPI(r chi.Router, d deps.Deps) {
	r.Route("/api", func(r chi.Router) {
		r.Use(mw.EnforceHost(d.AllowedHosts, d.Logger))
		r.Use(mw.RequireSession(d.Auth, d.CookieName, d.Logger))

		r.Get("/view", handlers.ViewState(d))

		r.Get("/bookmarks", handlers.ListBookmarks(d))
		r.Post("/bookmarks", handlers.AddBookmark(d))
		r.Put("/bookmarks/{id}", handlers.SaveBookmark(d))
		r.Delete("/bookmarks/{id}", handlers.DeleteBookmark(d))
		r.Post("/bookmarks/{id}/edit", handlers.BeginEdit(d))

		r.Patch("/edit", handlers.UpdateEdit(d))
		r.Delete("/edit", handlers.CancelEdit(d))

		r.Post("/refresh", handlers.Refresh(d))
	})
}
