package n8n

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"cmo/internal/domain"
	"cmo/internal/poller"
)

// KeywordRequest describes a keyword research job. Zero fields are omitted
// from the enqueue payload.
type KeywordRequest struct {
	Idea         string `json:"idea"`
	Limit        int    `json:"limit,omitempty"`
	LocationCode int    `json:"locationCode,omitempty"`
	LanguageCode string `json:"languageCode,omitempty"`
}

// KeywordResult is a completed keyword research job.
type KeywordResult struct {
	Ticket   Ticket           `json:"ticket"`
	Keywords []domain.Keyword `json:"keywords"`
}

// keywordListKeys are the envelope keys under which n8n nests keyword rows.
var keywordListKeys = []string{"keywords", "results", "data", "items"}

// EnqueueKeywords starts a keyword research job.
func (c *Client) EnqueueKeywords(ctx context.Context, req KeywordRequest) (Ticket, error) {
	if strings.TrimSpace(req.Idea) == "" {
		return Ticket{}, fmt.Errorf("%w: idea is required", domain.ErrInvalidRequest)
	}
	return c.enqueue(ctx, "enqueue keywords", c.keywordPath, compact(map[string]any{
		"idea":          req.Idea,
		"limit":         req.Limit,
		"location_code": req.LocationCode,
		"language_code": req.LanguageCode,
	}))
}

// PollKeywords checks a keyword research job once. An empty array, or a
// payload that normalizes to no keywords, is reported as not ready.
func (c *Client) PollKeywords(ctx context.Context, taskID int64) (poller.Result[[]domain.Keyword], error) {
	raw, err := c.status(ctx, "poll keywords", c.keywordStatusPath, taskID)
	if err != nil {
		return poller.Result[[]domain.Keyword]{}, err
	}
	keywords := NormalizeKeywords(raw)
	if len(keywords) == 0 {
		return poller.Result[[]domain.Keyword]{}, nil
	}
	return poller.Result[[]domain.Keyword]{Ready: true, Payload: keywords}, nil
}

// ResearchKeywords enqueues a job and polls it until keywords arrive. Running
// out of attempts yields domain.ErrTimedOut.
func (c *Client) ResearchKeywords(ctx context.Context, req KeywordRequest) (KeywordResult, error) {
	ticket, err := c.EnqueueKeywords(ctx, req)
	if err != nil {
		return KeywordResult{}, err
	}
	res, err := poller.Poll(ctx, func(ctx context.Context) (poller.Result[[]domain.Keyword], error) {
		return c.PollKeywords(ctx, ticket.ID)
	}, c.keywordPoll)
	if err != nil {
		return KeywordResult{}, err
	}
	if !res.Ready {
		return KeywordResult{}, fmt.Errorf("%w: keyword research task %d", domain.ErrTimedOut, ticket.ID)
	}
	return KeywordResult{Ticket: ticket, Keywords: res.Payload}, nil
}

// NormalizeKeywords extracts keyword rows from any of the payload shapes the
// status webhook returns. Rows without a phrase are dropped.
func NormalizeKeywords(raw []byte) []domain.Keyword {
	if !gjson.ValidBytes(raw) {
		return nil
	}
	var out []domain.Keyword
	for _, row := range keywordRows(gjson.ParseBytes(raw)) {
		if kw, ok := keywordFrom(row); ok {
			out = append(out, kw)
		}
	}
	return out
}

func keywordRows(doc gjson.Result) []gjson.Result {
	switch {
	case doc.IsArray():
		var rows []gjson.Result
		for _, item := range doc.Array() {
			if nested := nestedList(item); nested != nil {
				rows = append(rows, nested...)
				continue
			}
			rows = append(rows, item)
		}
		return rows
	case doc.IsObject():
		if nested := nestedList(doc); nested != nil {
			return nested
		}
		return []gjson.Result{doc}
	default:
		return nil
	}
}

func nestedList(obj gjson.Result) []gjson.Result {
	if !obj.IsObject() {
		return nil
	}
	for _, key := range keywordListKeys {
		if v := obj.Get(key); v.IsArray() {
			return v.Array()
		}
	}
	return nil
}

func keywordFrom(row gjson.Result) (domain.Keyword, bool) {
	if !row.IsObject() {
		return domain.Keyword{}, false
	}
	phrase := firstString(row, "keyword", "phrase", "term")
	if phrase == "" {
		return domain.Keyword{}, false
	}
	difficulty, label := difficultyOf(row.Get("difficulty"))
	if !row.Get("difficulty").Exists() {
		difficulty, label = difficultyOf(row.Get("competition_level"))
	}
	return domain.Keyword{
		Phrase:          phrase,
		Volume:          int(firstNumber(row, "search_volume", "volume")),
		CPC:             firstNumber(row, "cpc"),
		Difficulty:      difficulty,
		DifficultyLabel: label,
	}, true
}

// difficultyOf maps a categorical or numeric difficulty to a 0-100 score
// and its label.
func difficultyOf(v gjson.Result) (int, string) {
	switch v.Type {
	case gjson.Number:
		score := int(math.Round(v.Float()))
		return score, difficultyLabel(score)
	case gjson.String:
		s := strings.ToUpper(strings.TrimSpace(v.String()))
		switch s {
		case "LOW":
			return 25, "Baixa"
		case "MEDIUM":
			return 55, "Média"
		case "HIGH":
			return 85, "Alta"
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			score := int(math.Round(n))
			return score, difficultyLabel(score)
		}
	}
	return 0, "N/A"
}

func difficultyLabel(score int) string {
	switch {
	case score < 35:
		return "Baixa"
	case score < 70:
		return "Média"
	default:
		return "Alta"
	}
}

func firstString(obj gjson.Result, keys ...string) string {
	for _, k := range keys {
		if v := obj.Get(k); v.Type == gjson.String {
			if s := strings.TrimSpace(v.String()); s != "" {
				return s
			}
		}
	}
	return ""
}

func firstNumber(obj gjson.Result, keys ...string) float64 {
	for _, k := range keys {
		v := obj.Get(k)
		switch v.Type {
		case gjson.Number:
			return v.Float()
		case gjson.String:
			if n, err := strconv.ParseFloat(strings.TrimSpace(v.String()), 64); err == nil {
				return n
			}
		}
	}
	return 0
}
