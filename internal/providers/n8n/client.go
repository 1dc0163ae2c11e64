// Package n8n enqueues keyword research and article generation jobs on the
// n8n automation backend and polls them to completion.
package n8n

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cmo/internal/domain"
	"cmo/internal/infra"
	"cmo/internal/poller"
)

// ErrMissingBaseURL indicates that the client was configured without a backend.
var ErrMissingBaseURL = errors.New("n8n: base url is required")

// Options configures the n8n client.
type Options struct {
	BaseURL           string
	APIKey            string
	KeywordPath       string
	KeywordStatusPath string
	ArticlePath       string
	ArticleStatusPath string
	HTTPClient        *http.Client
	Logger            *infra.Logger
	RequestTimeout    time.Duration
	KeywordPoll       poller.Options
	ArticlePoll       poller.Options
}

// Client talks to the n8n webhooks. It holds no per-job state and is safe for
// concurrent use.
type Client struct {
	baseURL           string
	apiKey            string
	keywordPath       string
	keywordStatusPath string
	articlePath       string
	articleStatusPath string
	httpClient        *http.Client
	logger            *infra.Logger
	keywordPoll       poller.Options
	articlePoll       poller.Options
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, ErrMissingBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	keywordPoll := opts.KeywordPoll
	if keywordPoll.InitialDelay == 0 && keywordPoll.MaxDelay == 0 && keywordPoll.MaxAttempts == 0 {
		keywordPoll.InitialDelay = 2 * time.Second
		keywordPoll.MaxDelay = 6 * time.Second
		keywordPoll.MaxAttempts = 40
	}
	keywordPoll.Name = "n8n.keywords"
	// Articles take minutes, so they wait longer between and across attempts.
	articlePoll := opts.ArticlePoll
	if articlePoll.InitialDelay == 0 && articlePoll.MaxDelay == 0 && articlePoll.MaxAttempts == 0 {
		articlePoll.InitialDelay = 5 * time.Second
		articlePoll.MaxDelay = 15 * time.Second
		articlePoll.MaxAttempts = 60
	}
	articlePoll.Name = "n8n.article"

	logger := infra.LoggerOrDiscard(opts.Logger)
	keywordPoll.Logger = logger
	articlePoll.Logger = logger

	return &Client{
		baseURL:           baseURL,
		apiKey:            strings.TrimSpace(opts.APIKey),
		keywordPath:       defaultPath(opts.KeywordPath, "/webhook/keyword-research"),
		keywordStatusPath: defaultPath(opts.KeywordStatusPath, "/webhook/keyword-research/status"),
		articlePath:       defaultPath(opts.ArticlePath, "/webhook/article-generation"),
		articleStatusPath: defaultPath(opts.ArticleStatusPath, "/webhook/article-generation/status"),
		httpClient:        httpClient,
		logger:            logger,
		keywordPoll:       keywordPoll,
		articlePoll:       articlePoll,
	}, nil
}

func defaultPath(p, fallback string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return fallback
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// enqueue posts payload to path and parses the returned ticket. Enqueue is
// not idempotent, so it is never retried here.
func (c *Client) enqueue(ctx context.Context, op, path string, payload map[string]any) (Ticket, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Ticket{}, fmt.Errorf("n8n %s: encode payload: %w", op, err)
	}
	raw, err := c.do(ctx, op, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return Ticket{}, err
	}
	ticket, ok := ParseTicket(raw)
	if !ok {
		return Ticket{}, fmt.Errorf("%w: n8n %s: could not find task identifier in response: %s", domain.ErrMalformedResponse, op, truncate(raw))
	}
	c.logger.Info().Str("op", op).Int64("task_id", ticket.ID).Str("status", ticket.Status).Msg("n8n task enqueued")
	return ticket, nil
}

// status fetches the current state of task id from path.
func (c *Client) status(ctx context.Context, op, path string, id int64) ([]byte, error) {
	endpoint := c.baseURL + path + "?" + url.Values{"task_id": {strconv.FormatInt(id, 10)}}.Encode()
	return c.do(ctx, op, http.MethodGet, endpoint, nil)
}

func (c *Client) do(ctx context.Context, op, method, endpoint string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("n8n %s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-N8N-API-KEY", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: n8n %s: %v", domain.ErrTransport, op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: n8n %s: read body: %v", domain.ErrTransport, op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: n8n %s: status %d: %s", domain.ErrTransport, op, resp.StatusCode, truncate(raw))
	}
	return raw, nil
}

func truncate(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 512 {
		return s[:512] + "..."
	}
	return s
}

// compact keeps only the entries of payload that carry a value.
func compact(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			if strings.TrimSpace(val) == "" {
				continue
			}
			out[k] = strings.TrimSpace(val)
		case int:
			if val == 0 {
				continue
			}
			out[k] = val
		case *bool:
			if val == nil {
				continue
			}
			out[k] = *val
		default:
			out[k] = val
		}
	}
	return out
}
