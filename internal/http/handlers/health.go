package handlers

import (
	"net/http"
)

type healthStatus struct {
	Status string          `json:"status"`
	Tools  map[string]bool `json:"tools"`
}

// Health reports liveness and which tools have their integrations configured.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, healthStatus{
		Status: "ok",
		Tools: map[string]bool{
			"research_keywords": a.Keywords != nil,
			"generate_article":  a.Articles != nil,
			"content_plan":      a.Planner != nil,
			"social_batch":      a.Social != nil,
		},
	})
}
