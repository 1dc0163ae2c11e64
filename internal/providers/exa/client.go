// Package exa searches community discussions through the Exa search API.
package exa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cmo/internal/domain"
	"cmo/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("exa: api key is required")

// CommunityDomains are the sites searched for practitioner discussions.
var CommunityDomains = []string{
	"reddit.com",
	"news.ycombinator.com",
	"dev.to",
	"stackoverflow.com",
	"lobste.rs",
}

// Options configures the Exa client.
type Options struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
	// Lookback bounds how old a discussion may be. Defaults to 180 days.
	Lookback time.Duration
	Now      func() time.Time
}

// Client performs HTTP calls to the Exa search API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
	lookback   time.Duration
	now        func() time.Time
}

type searchRequest struct {
	Query              string         `json:"query"`
	Type               string         `json:"type"`
	NumResults         int            `json:"numResults"`
	IncludeDomains     []string       `json:"includeDomains,omitempty"`
	StartPublishedDate string         `json:"startPublishedDate,omitempty"`
	Contents           searchContents `json:"contents"`
}

type searchContents struct {
	Text struct {
		MaxCharacters int `json:"maxCharacters"`
	} `json:"text"`
}

type searchResponse struct {
	Results []struct {
		Title         string   `json:"title"`
		URL           string   `json:"url"`
		PublishedDate string   `json:"publishedDate"`
		Text          string   `json:"text"`
		Highlights    []string `json:"highlights"`
	} `json:"results"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	key := strings.TrimSpace(opts.APIKey)
	if key == "" {
		return nil, ErrMissingAPIKey
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.exa.ai"
	}
	lookback := opts.Lookback
	if lookback <= 0 {
		lookback = 180 * 24 * time.Hour
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Client{
		apiKey:     key,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     infra.LoggerOrDiscard(opts.Logger),
		lookback:   lookback,
		now:        now,
	}, nil
}

// SearchCommunity returns recent community discussions about topic.
func (c *Client) SearchCommunity(ctx context.Context, topic string, limit int) ([]domain.CommunityResult, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	payload := searchRequest{
		Query:              topic,
		Type:               "auto",
		NumResults:         limit,
		IncludeDomains:     CommunityDomains,
		StartPublishedDate: c.now().Add(-c.lookback).UTC().Format(time.RFC3339),
	}
	payload.Contents.Text.MaxCharacters = 600

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("exa: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", &buf)
	if err != nil {
		return nil, fmt.Errorf("exa: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: exa: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: exa: status %d: %s", domain.ErrTransport, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: exa: decode response: %v", domain.ErrMalformedResponse, err)
	}
	results := make([]domain.CommunityResult, 0, len(out.Results))
	for _, r := range out.Results {
		if strings.TrimSpace(r.URL) == "" {
			continue
		}
		snippet := strings.TrimSpace(r.Text)
		if len(r.Highlights) > 0 {
			snippet = strings.TrimSpace(r.Highlights[0])
		}
		results = append(results, domain.CommunityResult{
			Title:       strings.TrimSpace(r.Title),
			URL:         r.URL,
			Snippet:     snippet,
			Source:      sourceOf(r.URL),
			PublishedAt: parseDate(r.PublishedDate),
		})
	}
	c.logger.Debug().Str("topic", topic).Int("results", len(results)).Msg("exa community search")
	return results, nil
}

func sourceOf(rawURL string) string {
	for _, d := range CommunityDomains {
		if strings.Contains(rawURL, d) {
			return d
		}
	}
	return ""
}

func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
