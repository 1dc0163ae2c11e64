package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"cmo/internal/contentplan"
	"cmo/internal/domain"
	"cmo/internal/providers/n8n"
	"cmo/internal/social"
)

type fakeKeywords struct {
	req n8n.KeywordRequest
	res n8n.KeywordResult
	err error
}

func (f *fakeKeywords) ResearchKeywords(_ context.Context, req n8n.KeywordRequest) (n8n.KeywordResult, error) {
	f.req = req
	return f.res, f.err
}

type fakeKeywordStore struct {
	idea  string
	saved []domain.Keyword
	err   error
}

func (f *fakeKeywordStore) RecentKeywords(context.Context, int) ([]domain.KeywordRecord, error) {
	return nil, nil
}

func (f *fakeKeywordStore) SaveKeywords(_ context.Context, idea string, keywords []domain.Keyword) error {
	f.idea = idea
	f.saved = keywords
	return f.err
}

type fakeArticles struct {
	req n8n.ArticleRequest
	err error
}

func (f *fakeArticles) GenerateArticle(_ context.Context, req n8n.ArticleRequest) (n8n.ArticleResult, error) {
	f.req = req
	if f.err != nil {
		return n8n.ArticleResult{}, f.err
	}
	return n8n.ArticleResult{Ticket: n8n.Ticket{ID: 9}, Article: domain.Article{Title: req.Title, Content: "<p>body</p>"}}, nil
}

type fakePlanner struct{ err error }

func (f fakePlanner) Plan(context.Context, contentplan.Request) (contentplan.Plan, error) {
	return contentplan.Plan{}, f.err
}

type fakeSocial struct {
	enqueued social.BatchRequest
	view     social.BatchView
	getErr   error
	cands    []social.Candidate
}

func (f *fakeSocial) Enqueue(_ context.Context, req social.BatchRequest) (domain.SocialBatch, error) {
	f.enqueued = req
	return domain.SocialBatch{ID: "b1", Target: req.Target, Status: domain.BatchStatusQueued}, nil
}

func (f *fakeSocial) Get(_ context.Context, id string) (social.BatchView, error) {
	return f.view, f.getErr
}

func (f *fakeSocial) Generate(_ context.Context, req social.BatchRequest) ([]social.Candidate, error) {
	return f.cands, nil
}

func serve(app *App, method, target, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Post("/v1/tools/{name}", app.Tool)
	r.Post("/v1/social-batches", app.EnqueueSocialBatch)
	r.Get("/v1/social-batches/{id}", app.GetSocialBatch)
	r.Get("/v1/healthz", app.Health)

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) response {
	t.Helper()
	var out response
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not JSON: %v (%s)", err, rec.Body.String())
	}
	return out
}

func TestResearchKeywordsStoresHistory(t *testing.T) {
	kw := &fakeKeywords{res: n8n.KeywordResult{
		Ticket:   n8n.Ticket{ID: 501},
		Keywords: []domain.Keyword{{Phrase: "dora metrics", Volume: 880}},
	}}
	store := &fakeKeywordStore{}
	app := &App{Keywords: kw, KeywordStore: store}

	rec := serve(app, http.MethodPost, "/v1/tools/research_keywords", `{"idea":"devops metrics","limit":5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeResponse(t, rec)
	if !body.Success || !strings.Contains(string(body.Data), `"dora metrics"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
	if kw.req.Idea != "devops metrics" || kw.req.Limit != 5 {
		t.Fatalf("unexpected request: %+v", kw.req)
	}
	if store.idea != "devops metrics" || len(store.saved) != 1 {
		t.Fatalf("history not stored: %+v", store)
	}
}

func TestResearchKeywordsIgnoresHistoryFailure(t *testing.T) {
	app := &App{
		Keywords:     &fakeKeywords{res: n8n.KeywordResult{Keywords: []domain.Keyword{{Phrase: "x"}}}},
		KeywordStore: &fakeKeywordStore{err: errors.New("db down")},
	}
	rec := serve(app, http.MethodPost, "/v1/tools/research_keywords", `{"idea":"x"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}

func TestToolErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    int
		message string
	}{
		{"timeout", fmt.Errorf("%w: keyword research task 7", domain.ErrTimedOut), http.StatusGatewayTimeout, "The operation took too long. Please try again."},
		{"uninterpretable", fmt.Errorf("%w: bad json", domain.ErrUninterpretable), http.StatusBadGateway, "Could not interpret the AI response."},
		{"transport", fmt.Errorf("enqueue keywords: %w: status 502: bad gateway", domain.ErrTransport), http.StatusBadGateway, "An upstream service failed. Please try again."},
		{"invalid", fmt.Errorf("%w: idea is required", domain.ErrInvalidRequest), http.StatusBadRequest, "invalid request: idea is required"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "Internal server error."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			app := &App{Keywords: &fakeKeywords{err: tc.err}}
			rec := serve(app, http.MethodPost, "/v1/tools/research_keywords", `{"idea":"x"}`)
			if rec.Code != tc.code {
				t.Fatalf("status = %d, want %d", rec.Code, tc.code)
			}
			body := decodeResponse(t, rec)
			if body.Success || body.Message != tc.message {
				t.Fatalf("unexpected body: %+v", body)
			}
		})
	}
}

func TestGenerateArticleDefaultsLanguage(t *testing.T) {
	articles := &fakeArticles{}
	app := &App{Articles: articles, DefaultLanguage: "pt-BR"}
	rec := serve(app, http.MethodPost, "/v1/tools/generate_article", `{"title":"DORA metrics"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if articles.req.Language != "pt-BR" || articles.req.Title != "DORA metrics" {
		t.Fatalf("unexpected request: %+v", articles.req)
	}
}

func TestContentPlanUninterpretable(t *testing.T) {
	app := &App{Planner: fakePlanner{err: fmt.Errorf("%w: x", domain.ErrUninterpretable)}}
	rec := serve(app, http.MethodPost, "/v1/tools/content_plan", "")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}

func TestToolRejectsBadJSON(t *testing.T) {
	app := &App{Planner: fakePlanner{}}
	rec := serve(app, http.MethodPost, "/v1/tools/content_plan", `{"topic":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}

func TestUnknownAndUnconfiguredTools(t *testing.T) {
	rec := serve(&App{}, http.MethodPost, "/v1/tools/launch_rocket", `{}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown tool status = %d", rec.Code)
	}
	rec = serve(&App{}, http.MethodPost, "/v1/tools/social_batch", `{}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unconfigured tool status = %d", rec.Code)
	}
}

func TestSocialBatchTool(t *testing.T) {
	sb := &fakeSocial{cands: []social.Candidate{{Lane: "blog", Platform: "x", Hook: "h", Content: "c"}}}
	rec := serve(&App{Social: sb}, http.MethodPost, "/v1/tools/social_batch", `{"target":1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var data socialBatchResult
	if err := json.Unmarshal(decodeResponse(t, rec).Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data.Count != 1 || data.Candidates[0].Lane != "blog" {
		t.Fatalf("unexpected data: %+v", data)
	}
}

func TestSocialBatchQueueEndpoints(t *testing.T) {
	sb := &fakeSocial{view: social.BatchView{
		SocialBatch: domain.SocialBatch{ID: "b1", Status: domain.BatchStatusSucceeded},
		Candidates:  []social.Candidate{{Lane: "changelog"}},
	}}
	app := &App{Social: sb, DefaultLanguage: "en"}

	rec := serve(app, http.MethodPost, "/v1/social-batches", `{"target":8,"platforms":["linkedin"]}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("enqueue status = %d", rec.Code)
	}
	if sb.enqueued.Target != 8 || sb.enqueued.Language != "en" {
		t.Fatalf("unexpected enqueue request: %+v", sb.enqueued)
	}

	rec = serve(app, http.MethodGet, "/v1/social-batches/b1", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"SUCCEEDED"`) {
		t.Fatalf("unexpected get response: %d %s", rec.Code, rec.Body.String())
	}

	sb.getErr = domain.ErrNotFound
	rec = serve(app, http.MethodGet, "/v1/social-batches/b2", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing batch status = %d", rec.Code)
	}
}

func TestHealthReportsConfiguredTools(t *testing.T) {
	app := &App{Planner: fakePlanner{}, Social: &fakeSocial{}}
	rec := serve(app, http.MethodGet, "/v1/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var body healthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" {
		t.Fatalf("unexpected status %q", body.Status)
	}
	want := map[string]bool{"research_keywords": false, "generate_article": false, "content_plan": true, "social_batch": true}
	for name, configured := range want {
		if body.Tools[name] != configured {
			t.Fatalf("tool %s configured=%v, want %v", name, body.Tools[name], configured)
		}
	}
	if len(body.Tools) != len(ToolNames()) {
		t.Fatalf("health lists %d tools, dispatcher has %d", len(body.Tools), len(ToolNames()))
	}
}
