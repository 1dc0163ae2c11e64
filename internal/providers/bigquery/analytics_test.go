package bigquery

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"cmo/internal/domain"
)

type fakeIterator struct {
	rows []any
	err  error
}

func (f *fakeIterator) Next(dst any) error {
	if f.err != nil {
		return f.err
	}
	if len(f.rows) == 0 {
		return iterator.Done
	}
	row := f.rows[0]
	f.rows = f.rows[1:]
	switch d := dst.(type) {
	case *opportunityRecord:
		*d = row.(opportunityRecord)
	case *decayRecord:
		*d = row.(decayRecord)
	default:
		return errors.New("unexpected destination")
	}
	return nil
}

type capture struct {
	sql    string
	params map[string]any
}

func runnerReturning(c *capture, it *fakeIterator) queryRunner {
	return func(ctx context.Context, sql string, params []bigquery.QueryParameter) (rowIterator, error) {
		c.sql = sql
		c.params = map[string]any{}
		for _, p := range params {
			c.params[p.Name] = p.Value
		}
		return it, nil
	}
}

func testRange() domain.DateRange {
	return domain.DateRange{
		Start: time.Date(2026, 9, 17, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC),
	}
}

func TestSEOOpportunitiesSplitsBuckets(t *testing.T) {
	c := &capture{}
	it := &fakeIterator{rows: []any{
		opportunityRecord{Query: "dora metrics", Page: "/blog/dora", Impressions: 900, Clicks: 5, CTR: 0.005, Position: 4.2, Bucket: "low_ctr"},
		opportunityRecord{Query: "deploy frequency", Page: "/blog/deploys", Impressions: 300, Clicks: 3, CTR: 0.01, Position: 13.5, Bucket: "striking"},
		opportunityRecord{Query: "ignored", Bucket: "other"},
	}}
	a, err := newAnalytics(Options{Dataset: "mkt"}, runnerReturning(c, it))
	if err != nil {
		t.Fatalf("newAnalytics returned error: %v", err)
	}
	got, err := a.SEOOpportunities(context.Background(), testRange())
	if err != nil {
		t.Fatalf("SEOOpportunities returned error: %v", err)
	}
	if len(got.LowCTR) != 1 || got.LowCTR[0].Query != "dora metrics" {
		t.Fatalf("low ctr = %+v", got.LowCTR)
	}
	if len(got.StrikingDistance) != 1 || got.StrikingDistance[0].Position != 13.5 {
		t.Fatalf("striking distance = %+v", got.StrikingDistance)
	}
	if !strings.Contains(c.sql, "`mkt.search_console`") {
		t.Fatalf("query does not reference configured table:\n%s", c.sql)
	}
	if c.params["start"] != "2026-09-17" || c.params["end"] != "2026-10-14" || c.params["limit"] != 25 {
		t.Fatalf("params = %v", c.params)
	}
}

func TestContentDecayComputesChange(t *testing.T) {
	c := &capture{}
	it := &fakeIterator{rows: []any{
		decayRecord{Page: "/blog/old", Title: bigquery.NullString{StringVal: "Old post", Valid: true}, Current: 60, Previous: 200},
		decayRecord{Page: "/blog/gone", Current: 0, Previous: 150},
	}}
	a, err := newAnalytics(Options{}, runnerReturning(c, it))
	if err != nil {
		t.Fatalf("newAnalytics returned error: %v", err)
	}
	rows, err := a.ContentDecay(context.Background(), testRange(), 100)
	if err != nil {
		t.Fatalf("ContentDecay returned error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].ChangePct != -70 || rows[0].Title != "Old post" {
		t.Fatalf("first row = %+v", rows[0])
	}
	if rows[1].ChangePct != -100 {
		t.Fatalf("second row = %+v", rows[1])
	}
	if c.params["prev_start"] != "2026-08-20" || c.params["prev_end"] != "2026-09-16" || c.params["min_pageviews"] != 100 {
		t.Fatalf("params = %v", c.params)
	}
	if !strings.Contains(c.sql, "`marketing.page_views`") {
		t.Fatalf("query does not reference default table:\n%s", c.sql)
	}
}

func TestAnalyticsPropagatesIteratorErrors(t *testing.T) {
	boom := errors.New("quota exceeded")
	a, err := newAnalytics(Options{}, runnerReturning(&capture{}, &fakeIterator{err: boom}))
	if err != nil {
		t.Fatalf("newAnalytics returned error: %v", err)
	}
	if _, err := a.SEOOpportunities(context.Background(), testRange()); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped iterator error", err)
	}
}

func TestNewAnalyticsRejectsBadIdentifiers(t *testing.T) {
	if _, err := newAnalytics(Options{Dataset: "mkt; DROP"}, nil); err == nil {
		t.Fatalf("expected error for invalid dataset")
	}
}
