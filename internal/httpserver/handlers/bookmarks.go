package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/shelf/internal/httpserver/deps"
	"github.com/MrSnakeDoc/shelf/internal/logger"
	"github.com/MrSnakeDoc/shelf/internal/view"
)

type addRequest struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// editRequest fields left out of the body keep their pending value.
type editRequest struct {
	Title *string `json:"title"`
	URL   *string `json:"url"`
}

// ViewState returns the full presentation state.
func ViewState(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.View.State(), d.Logger)
	}
}

// ListBookmarks returns the current list only.
func ListBookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.View.State().Bookmarks, d.Logger)
	}
}

func AddBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addRequest
		if err := decodeBody(w, r, &req); err != nil {
			respondState(w, d, http.StatusBadRequest, d.View.State())
			return
		}
		respondState(w, d, http.StatusOK, d.View.Add(r.Context(), req.Title, req.URL))
	}
}

// SaveBookmark applies the optional body to the pending edit of {id} and saves it.
func SaveBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req editRequest
		if err := decodeBody(w, r, &req); err != nil {
			respondState(w, d, http.StatusBadRequest, d.View.State())
			return
		}
		if req.Title != nil || req.URL != nil {
			d.View.UpdateEdit(req.Title, req.URL)
		}
		respondState(w, d, http.StatusOK, d.View.SaveEdit(r.Context(), chi.URLParam(r, "id")))
	}
}

func DeleteBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondState(w, d, http.StatusOK, d.View.Delete(r.Context(), chi.URLParam(r, "id")))
	}
}

func BeginEdit(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondState(w, d, http.StatusOK, d.View.BeginEdit(chi.URLParam(r, "id")))
	}
}

func UpdateEdit(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req editRequest
		if err := decodeBody(w, r, &req); err != nil {
			respondState(w, d, http.StatusBadRequest, d.View.State())
			return
		}
		respondState(w, d, http.StatusOK, d.View.UpdateEdit(req.Title, req.URL))
	}
}

func CancelEdit(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondState(w, d, http.StatusOK, d.View.CancelEdit())
	}
}

// respondState answers an intent. Without a session the state is sent with 401.
func respondState(w http.ResponseWriter, d deps.Deps, status int, state view.State) {
	if state.Session == nil {
		status = http.StatusUnauthorized
		d.Logger.Debug("intent without session", logger.Int("status", status))
	}
	writeJSON(w, status, state, d.Logger)
}
