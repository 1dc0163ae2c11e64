package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"cmo/internal/social"
)

// EnqueueSocialBatch queues a batch for the worker and answers 202.
func (a *App) EnqueueSocialBatch(w http.ResponseWriter, r *http.Request) {
	if a.Social == nil {
		a.fail(w, r, errNotConfigured)
		return
	}
	var req social.BatchRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	req.Language = a.language(r, req.Language)
	batch, err := a.Social.Enqueue(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, http.StatusAccepted, batch)
}

func (a *App) GetSocialBatch(w http.ResponseWriter, r *http.Request) {
	if a.Social == nil {
		a.fail(w, r, errNotConfigured)
		return
	}
	view, err := a.Social.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, http.StatusOK, view)
}
