package handlers

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"cmo/internal/contentplan"
	"cmo/internal/domain"
	"cmo/internal/middleware"
	"cmo/internal/providers/n8n"
	"cmo/internal/social"
)

type toolFunc func(a *App, r *http.Request) (any, error)

var tools = map[string]toolFunc{
	"research_keywords": (*App).researchKeywords,
	"generate_article":  (*App).generateArticle,
	"content_plan":      (*App).contentPlan,
	"social_batch":      (*App).socialBatch,
}

// ToolNames lists the tools served by Tool, sorted.
func ToolNames() []string {
	names := make([]string, 0, len(tools))
	for name := range tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tool dispatches POST /v1/tools/{name}.
func (a *App) Tool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	fn, ok := tools[name]
	if !ok {
		a.fail(w, r, fmt.Errorf("%w: unknown tool %q", domain.ErrNotFound, name))
		return
	}
	data, err := fn(a, r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.ok(w, http.StatusOK, data)
}

func (a *App) researchKeywords(r *http.Request) (any, error) {
	if a.Keywords == nil {
		return nil, errNotConfigured
	}
	var req n8n.KeywordRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	res, err := a.Keywords.ResearchKeywords(r.Context(), req)
	if err != nil {
		return nil, err
	}
	if a.KeywordStore != nil {
		// A failed save is logged only.
		if err := a.KeywordStore.SaveKeywords(context.WithoutCancel(r.Context()), req.Idea, res.Keywords); err != nil {
			a.logger().Warn().Err(err).
				Str("request_id", middleware.RequestIDFromContext(r.Context())).
				Msg("save keyword research failed")
		}
	}
	return res, nil
}

func (a *App) generateArticle(r *http.Request) (any, error) {
	if a.Articles == nil {
		return nil, errNotConfigured
	}
	var req n8n.ArticleRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	req.Language = a.language(r, req.Language)
	return a.Articles.GenerateArticle(r.Context(), req)
}

func (a *App) contentPlan(r *http.Request) (any, error) {
	if a.Planner == nil {
		return nil, errNotConfigured
	}
	var req contentplan.Request
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	req.Language = a.language(r, req.Language)
	return a.Planner.Plan(r.Context(), req)
}

type socialBatchResult struct {
	Count      int                `json:"count"`
	Candidates []social.Candidate `json:"candidates"`
}

func (a *App) socialBatch(r *http.Request) (any, error) {
	if a.Social == nil {
		return nil, errNotConfigured
	}
	var req social.BatchRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	req.Language = a.language(r, req.Language)
	cands, err := a.Social.Generate(r.Context(), req)
	if err != nil {
		return nil, err
	}
	return socialBatchResult{Count: len(cands), Candidates: cands}, nil
}
