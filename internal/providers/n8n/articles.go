package n8n

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"cmo/internal/domain"
	"cmo/internal/poller"
)

// ArticleRequest describes an article generation job.
type ArticleRequest struct {
	Title               string `json:"title"`
	Keyword             string `json:"keyword,omitempty"`
	Language            string `json:"language,omitempty"`
	ResearchWeb         *bool  `json:"researchWeb,omitempty"`
	ResearchCompetitors *bool  `json:"researchCompetitors,omitempty"`
}

// ArticleResult is a completed article generation job.
type ArticleResult struct {
	Ticket  Ticket         `json:"ticket"`
	Article domain.Article `json:"article"`
}

var articleListKeys = []string{"results", "data", "articles"}

// EnqueueArticle starts an article generation job.
func (c *Client) EnqueueArticle(ctx context.Context, req ArticleRequest) (Ticket, error) {
	if strings.TrimSpace(req.Title) == "" && strings.TrimSpace(req.Keyword) == "" {
		return Ticket{}, fmt.Errorf("%w: title or keyword is required", domain.ErrInvalidRequest)
	}
	return c.enqueue(ctx, "enqueue article", c.articlePath, compact(map[string]any{
		"title":                req.Title,
		"keyword":              req.Keyword,
		"language":             req.Language,
		"research_web":         req.ResearchWeb,
		"research_competitors": req.ResearchCompetitors,
	}))
}

// PollArticle checks an article job once. The job is ready only when an
// article with body content is present.
func (c *Client) PollArticle(ctx context.Context, taskID int64) (poller.Result[*domain.Article], error) {
	raw, err := c.status(ctx, "poll article", c.articleStatusPath, taskID)
	if err != nil {
		return poller.Result[*domain.Article]{}, err
	}
	article, ok := NormalizeArticle(raw)
	if !ok {
		return poller.Result[*domain.Article]{}, nil
	}
	return poller.Result[*domain.Article]{Ready: true, Payload: &article}, nil
}

// GenerateArticle enqueues an article job and polls it to completion.
func (c *Client) GenerateArticle(ctx context.Context, req ArticleRequest) (ArticleResult, error) {
	ticket, err := c.EnqueueArticle(ctx, req)
	if err != nil {
		return ArticleResult{}, err
	}
	res, err := poller.Poll(ctx, func(ctx context.Context) (poller.Result[*domain.Article], error) {
		return c.PollArticle(ctx, ticket.ID)
	}, c.articlePoll)
	if err != nil {
		return ArticleResult{}, err
	}
	if !res.Ready {
		return ArticleResult{}, fmt.Errorf("%w: article generation task %d", domain.ErrTimedOut, ticket.ID)
	}
	article := *res.Payload
	if article.Keyword == "" {
		article.Keyword = req.Keyword
	}
	if article.Title == "" {
		article.Title = req.Title
	}
	return ArticleResult{Ticket: ticket, Article: article}, nil
}

// NormalizeArticle finds the first article with content in raw.
func NormalizeArticle(raw []byte) (domain.Article, bool) {
	if !gjson.ValidBytes(raw) {
		return domain.Article{}, false
	}
	for _, obj := range articleObjects(gjson.ParseBytes(raw)) {
		content := firstString(obj, "content", "html", "article", "body")
		if content == "" {
			continue
		}
		return domain.Article{
			Title:           firstString(obj, "title"),
			Slug:            firstString(obj, "slug"),
			Keyword:         firstString(obj, "keyword", "focus_keyword"),
			MetaDescription: firstString(obj, "meta_description", "metaDescription"),
			Content:         content,
		}, true
	}
	return domain.Article{}, false
}

func articleObjects(doc gjson.Result) []gjson.Result {
	if doc.IsArray() {
		var out []gjson.Result
		for _, item := range doc.Array() {
			out = append(out, articleObjects(item)...)
		}
		return out
	}
	if !doc.IsObject() {
		return nil
	}
	out := []gjson.Result{doc}
	for _, key := range articleListKeys {
		if v := doc.Get(key); v.IsArray() || v.IsObject() {
			out = append(out, articleObjects(v)...)
		}
	}
	return out
}
