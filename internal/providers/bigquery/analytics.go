// Package bigquery reads search-console and pageview aggregates from the
// marketing warehouse.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"cmo/internal/domain"
	"cmo/internal/infra"
)

var identPattern = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)

// Options configures the warehouse reader.
type Options struct {
	ProjectID       string
	Dataset         string
	CredentialsFile string
	// SearchTable and PageviewTable name the tables inside Dataset.
	SearchTable   string
	PageviewTable string
	Logger        *infra.Logger
	// OpportunityLimit caps each opportunity list. Defaults to 25.
	OpportunityLimit int
}

// rowIterator is the part of *bigquery.RowIterator the reader depends on.
type rowIterator interface {
	Next(dst any) error
}

type queryRunner func(ctx context.Context, sql string, params []bigquery.QueryParameter) (rowIterator, error)

// Analytics runs the SEO opportunity and content decay queries.
type Analytics struct {
	client        *bigquery.Client
	run           queryRunner
	searchTable   string
	pageviewTable string
	limit         int
	logger        *infra.Logger
}

type opportunityRecord struct {
	Query       string  `bigquery:"query"`
	Page        string  `bigquery:"page"`
	Impressions int64   `bigquery:"impressions"`
	Clicks      int64   `bigquery:"clicks"`
	CTR         float64 `bigquery:"ctr"`
	Position    float64 `bigquery:"position"`
	Bucket      string  `bigquery:"bucket"`
}

type decayRecord struct {
	Page     string              `bigquery:"page"`
	Title    bigquery.NullString `bigquery:"title"`
	Current  int64               `bigquery:"current_pageviews"`
	Previous int64               `bigquery:"previous_pageviews"`
}

// NewAnalytics opens a BigQuery client for opts.ProjectID.
func NewAnalytics(ctx context.Context, opts Options) (*Analytics, error) {
	project := strings.TrimSpace(opts.ProjectID)
	if project == "" {
		return nil, errors.New("bigquery: project id is required")
	}
	var clientOpts []option.ClientOption
	if f := strings.TrimSpace(opts.CredentialsFile); f != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(f))
	}
	client, err := bigquery.NewClient(ctx, project, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("bigquery: new client: %w", err)
	}
	a, err := newAnalytics(opts, func(ctx context.Context, sql string, params []bigquery.QueryParameter) (rowIterator, error) {
		q := client.Query(sql)
		q.Parameters = params
		return q.Read(ctx)
	})
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	a.client = client
	return a, nil
}

func newAnalytics(opts Options, run queryRunner) (*Analytics, error) {
	dataset := strings.TrimSpace(opts.Dataset)
	if dataset == "" {
		dataset = "marketing"
	}
	search := strings.TrimSpace(opts.SearchTable)
	if search == "" {
		search = "search_console"
	}
	pageviews := strings.TrimSpace(opts.PageviewTable)
	if pageviews == "" {
		pageviews = "page_views"
	}
	for _, ident := range []string{dataset, search, pageviews} {
		if !identPattern.MatchString(ident) {
			return nil, fmt.Errorf("bigquery: invalid identifier %q", ident)
		}
	}
	limit := opts.OpportunityLimit
	if limit <= 0 {
		limit = 25
	}
	return &Analytics{
		run:           run,
		searchTable:   fmt.Sprintf("`%s.%s`", dataset, search),
		pageviewTable: fmt.Sprintf("`%s.%s`", dataset, pageviews),
		limit:         limit,
		logger:        infra.LoggerOrDiscard(opts.Logger),
	}, nil
}

// Close releases the underlying client.
func (a *Analytics) Close() error {
	if a == nil || a.client == nil {
		return nil
	}
	return a.client.Close()
}

// SEOOpportunities returns pages ranking well with a poor click-through rate
// and queries sitting just off the first page.
func (a *Analytics) SEOOpportunities(ctx context.Context, r domain.DateRange) (domain.Opportunities, error) {
	it, err := a.run(ctx, a.opportunitySQL(), []bigquery.QueryParameter{
		{Name: "start", Value: r.StartDate()},
		{Name: "end", Value: r.EndDate()},
		{Name: "limit", Value: a.limit},
	})
	if err != nil {
		return domain.Opportunities{}, fmt.Errorf("bigquery: seo opportunities: %w", err)
	}
	out := domain.Opportunities{LowCTR: []domain.OpportunityRow{}, StrikingDistance: []domain.OpportunityRow{}}
	for {
		var rec opportunityRecord
		err := it.Next(&rec)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.Opportunities{}, fmt.Errorf("bigquery: seo opportunities: %w", err)
		}
		row := domain.OpportunityRow{
			Query:       rec.Query,
			Page:        rec.Page,
			Impressions: rec.Impressions,
			Clicks:      rec.Clicks,
			CTR:         rec.CTR,
			Position:    rec.Position,
		}
		switch rec.Bucket {
		case "low_ctr":
			out.LowCTR = append(out.LowCTR, row)
		case "striking":
			out.StrikingDistance = append(out.StrikingDistance, row)
		}
	}
	return out, nil
}

// ContentDecay returns pages whose pageviews in r fell against the previous
// period of equal length. Pages below minPageviews in the previous period are
// ignored.
func (a *Analytics) ContentDecay(ctx context.Context, r domain.DateRange, minPageviews int) ([]domain.DecayRow, error) {
	prev := r.Previous()
	it, err := a.run(ctx, a.decaySQL(), []bigquery.QueryParameter{
		{Name: "start", Value: r.StartDate()},
		{Name: "end", Value: r.EndDate()},
		{Name: "prev_start", Value: prev.StartDate()},
		{Name: "prev_end", Value: prev.EndDate()},
		{Name: "min_pageviews", Value: minPageviews},
	})
	if err != nil {
		return nil, fmt.Errorf("bigquery: content decay: %w", err)
	}
	rows := []domain.DecayRow{}
	for {
		var rec decayRecord
		err := it.Next(&rec)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("bigquery: content decay: %w", err)
		}
		row := domain.DecayRow{
			Page:              rec.Page,
			Title:             rec.Title.StringVal,
			CurrentPageviews:  rec.Current,
			PreviousPageviews: rec.Previous,
		}
		if rec.Previous > 0 {
			row.ChangePct = float64(rec.Current-rec.Previous) * 100 / float64(rec.Previous)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (a *Analytics) opportunitySQL() string {
	return `
WITH totals AS (
  SELECT query, page,
    SUM(impressions) AS impressions,
    SUM(clicks) AS clicks,
    SAFE_DIVIDE(SUM(clicks), SUM(impressions)) AS ctr,
    SAFE_DIVIDE(SUM(sum_position), SUM(impressions)) + 1 AS position
  FROM ` + a.searchTable + `
  WHERE data_date BETWEEN DATE(@start) AND DATE(@end)
  GROUP BY query, page
),
low_ctr AS (
  SELECT *, 'low_ctr' AS bucket FROM totals
  WHERE impressions >= 100 AND position <= 10 AND ctr < 0.02
  ORDER BY impressions DESC
  LIMIT @limit
),
striking AS (
  SELECT *, 'striking' AS bucket FROM totals
  WHERE impressions >= 50 AND position > 10 AND position <= 20
  ORDER BY impressions DESC
  LIMIT @limit
)
SELECT query, page, impressions, clicks, ctr, position, bucket FROM low_ctr
UNION ALL
SELECT query, page, impressions, clicks, ctr, position, bucket FROM striking`
}

func (a *Analytics) decaySQL() string {
	return `
WITH current_period AS (
  SELECT page, ANY_VALUE(title) AS title, SUM(pageviews) AS pageviews
  FROM ` + a.pageviewTable + `
  WHERE event_date BETWEEN DATE(@start) AND DATE(@end)
  GROUP BY page
),
previous_period AS (
  SELECT page, SUM(pageviews) AS pageviews
  FROM ` + a.pageviewTable + `
  WHERE event_date BETWEEN DATE(@prev_start) AND DATE(@prev_end)
  GROUP BY page
)
SELECT page, c.title AS title,
  COALESCE(c.pageviews, 0) AS current_pageviews,
  p.pageviews AS previous_pageviews
FROM previous_period p
LEFT JOIN current_period c USING (page)
WHERE p.pageviews >= @min_pageviews
  AND COALESCE(c.pageviews, 0) < p.pageviews * 0.8
ORDER BY p.pageviews - COALESCE(c.pageviews, 0) DESC
LIMIT 50`
}
