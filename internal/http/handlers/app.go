// Package handlers exposes the agent tools and the social batch queue over
// HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"cmo/internal/contentplan"
	"cmo/internal/domain"
	"cmo/internal/infra"
	"cmo/internal/middleware"
	"cmo/internal/providers/n8n"
	"cmo/internal/social"
)

const maxBodyBytes = 1 << 20

type KeywordResearcher interface {
	ResearchKeywords(ctx context.Context, req n8n.KeywordRequest) (n8n.KeywordResult, error)
}

type ArticleGenerator interface {
	GenerateArticle(ctx context.Context, req n8n.ArticleRequest) (n8n.ArticleResult, error)
}

type ContentPlanner interface {
	Plan(ctx context.Context, req contentplan.Request) (contentplan.Plan, error)
}

// SocialBatches queues, reads and synchronously generates social batches.
type SocialBatches interface {
	Enqueue(ctx context.Context, req social.BatchRequest) (domain.SocialBatch, error)
	Get(ctx context.Context, id string) (social.BatchView, error)
	Generate(ctx context.Context, req social.BatchRequest) ([]social.Candidate, error)
}

// App holds the collaborators of every handler. A nil collaborator disables
// the tools that need it.
type App struct {
	Keywords        KeywordResearcher
	KeywordStore    domain.KeywordRepository
	Articles        ArticleGenerator
	Planner         ContentPlanner
	Social          SocialBatches
	Logger          *infra.Logger
	DefaultLanguage string
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) ok(w http.ResponseWriter, code int, data any) {
	a.json(w, code, envelope{Success: true, Data: data})
}

func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, message := presentError(err)
	log := a.logger()
	event := log.Warn()
	if code >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).
		Str("request_id", middleware.RequestIDFromContext(r.Context())).
		Int("status", code).
		Msg("request failed")
	a.json(w, code, envelope{Success: false, Message: message})
}

// presentError maps an error to a status code and a message that can be shown
// to the end user.
func presentError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "Not found."
	case errors.Is(err, domain.ErrTimedOut):
		return http.StatusGatewayTimeout, "The operation took too long. Please try again."
	case errors.Is(err, domain.ErrUninterpretable):
		return http.StatusBadGateway, "Could not interpret the AI response."
	case errors.Is(err, domain.ErrNoCandidates):
		return http.StatusBadGateway, "No content could be generated. Please try again."
	case errors.Is(err, domain.ErrMalformedResponse):
		return http.StatusBadGateway, "An upstream service returned an unexpected response."
	case errors.Is(err, domain.ErrTransport):
		return http.StatusBadGateway, "An upstream service failed. Please try again."
	case errors.Is(err, errNotConfigured):
		return http.StatusServiceUnavailable, err.Error()
	default:
		return http.StatusInternalServerError, "Internal server error."
	}
}

var errNotConfigured = errors.New("this tool is not configured on the server")

// decode reads an optional JSON body into dst. An empty body leaves dst
// untouched.
func decode(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("%w: invalid JSON payload", domain.ErrInvalidRequest)
}

func (a *App) logger() *infra.Logger {
	return infra.LoggerOrDiscard(a.Logger)
}

func (a *App) language(r *http.Request, requested string) string {
	if requested != "" {
		return requested
	}
	return middleware.LanguageFromContext(r.Context(), a.DefaultLanguage)
}
