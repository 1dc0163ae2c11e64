package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"cmo/internal/domain"
	"cmo/internal/infra"
	"cmo/internal/social"
	"cmo/internal/sqlinline"
)

type execCall struct {
	query string
	args  []any
}

// fakeSQL serves canned rows and records every statement.
type fakeSQL struct {
	rows    [][]any
	row     []any
	err     error
	tag     pgconn.CommandTag
	execs   []execCall
	queries []execCall
}

func (f *fakeSQL) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{query: query, args: args})
	return f.tag, f.err
}

func (f *fakeSQL) QueryRow(_ context.Context, query string, args ...any) pgx.Row {
	f.queries = append(f.queries, execCall{query: query, args: args})
	if f.err != nil {
		return fakeRow{err: f.err}
	}
	return fakeRow{values: f.row}
}

func (f *fakeSQL) Query(_ context.Context, query string, args ...any) (pgx.Rows, error) {
	f.queries = append(f.queries, execCall{query: query, args: args})
	if f.err != nil {
		return nil, f.err
	}
	return &fakeRows{values: f.rows, pos: -1}, nil
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(dest, r.values)
}

type fakeRows struct {
	values [][]any
	pos    int
	closed bool
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return r.values[r.pos], nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.pos+1 >= len(r.values) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	return assign(dest, r.values[r.pos])
}

func assign(dest []any, values []any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(values))
	}
	for i, v := range values {
		target := reflect.ValueOf(dest[i]).Elem()
		val := reflect.ValueOf(v)
		if !val.Type().AssignableTo(target.Type()) {
			return fmt.Errorf("scan column %d: cannot assign %s to %s", i, val.Type(), target.Type())
		}
		target.Set(val)
	}
	return nil
}

func TestEveryQueryCarriesMarker(t *testing.T) {
	queries := map[string]string{
		"QSelectRecentPosts":       sqlinline.QSelectRecentPosts,
		"QSelectRecentChangelog":   sqlinline.QSelectRecentChangelog,
		"QSelectRecentKeywords":    sqlinline.QSelectRecentKeywords,
		"QInsertKeyword":           sqlinline.QInsertKeyword,
		"QInsertSocialBatch":       sqlinline.QInsertSocialBatch,
		"QSelectSocialBatch":       sqlinline.QSelectSocialBatch,
		"QClaimSocialBatch":        sqlinline.QClaimSocialBatch,
		"QUpdateSocialBatchStatus": sqlinline.QUpdateSocialBatchStatus,
		"QCompleteSocialBatch":     sqlinline.QCompleteSocialBatch,
		"QSelectSocialCandidates":  sqlinline.QSelectSocialCandidates,
		"QSelectIntegrationToken":  sqlinline.QSelectIntegrationToken,
		"QUpsertIntegrationToken":  sqlinline.QUpsertIntegrationToken,
	}
	seen := map[string]string{}
	for name, q := range queries {
		marker, _, err := infra.SplitMarker(q)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if other, ok := seen[marker]; ok {
			t.Fatalf("%s reuses the marker of %s", name, other)
		}
		seen[marker] = name
	}
}

func TestRecentPosts(t *testing.T) {
	published := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	sql := &fakeSQL{rows: [][]any{
		{"DORA metrics explained", "dora-metrics", "https://blog.example.com/dora", "", "dora metrics", published},
		{"CI caching", "ci-caching", "", "Make builds fast", "", published.AddDate(0, 0, -7)},
	}}
	posts, err := NewContentRepository(sql).RecentPosts(context.Background(), 15)
	if err != nil {
		t.Fatalf("RecentPosts: %v", err)
	}
	if len(posts) != 2 || posts[0].Keyword != "dora metrics" || posts[1].Excerpt != "Make builds fast" {
		t.Fatalf("unexpected posts: %+v", posts)
	}
	if got := sql.queries[0].args; len(got) != 1 || got[0] != 15 {
		t.Fatalf("unexpected args: %v", got)
	}
}

func TestRecentChangelogPropagatesError(t *testing.T) {
	sql := &fakeSQL{err: errors.New("connection refused")}
	if _, err := NewContentRepository(sql).RecentChangelog(context.Background(), 5); err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestSaveKeywordsSkipsBlankPhrases(t *testing.T) {
	sql := &fakeSQL{}
	err := NewKeywordRepository(sql).SaveKeywords(context.Background(), " devops ", []domain.Keyword{
		{Phrase: "dora metrics", Volume: 880, CPC: 3.1, Difficulty: 55, DifficultyLabel: "Média"},
		{Phrase: "  "},
	})
	if err != nil {
		t.Fatalf("SaveKeywords: %v", err)
	}
	if len(sql.execs) != 1 {
		t.Fatalf("expected one insert, got %d", len(sql.execs))
	}
	want := []any{"devops", "dora metrics", 880, 3.1, 55, "Média"}
	if !reflect.DeepEqual(sql.execs[0].args, want) {
		t.Fatalf("unexpected args: %#v", sql.execs[0].args)
	}
}

func TestRecentKeywords(t *testing.T) {
	at := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	sql := &fakeSQL{rows: [][]any{{"dora metrics", 880, 55, "devops", at}}}
	records, err := NewKeywordRepository(sql).RecentKeywords(context.Background(), 20)
	if err != nil {
		t.Fatalf("RecentKeywords: %v", err)
	}
	if len(records) != 1 || records[0].Idea != "devops" || !records[0].ResearchedAt.Equal(at) {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestGetBatchNotFound(t *testing.T) {
	sql := &fakeSQL{err: pgx.ErrNoRows}
	if _, err := NewBatchRepository(sql).GetBatch(context.Background(), "3f6c1a9e-0000-4000-8000-000000000001"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetBatch(t *testing.T) {
	at := time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)
	sql := &fakeSQL{row: []any{"b1", 12, []string{"linkedin", "x"}, "pt-BR", "FAILED", "no candidates produced", at, at}}
	b, err := NewBatchRepository(sql).GetBatch(context.Background(), "b1")
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if b.Status != domain.BatchStatusFailed || b.ErrorMessage != "no candidates produced" || len(b.Platforms) != 2 {
		t.Fatalf("unexpected batch: %+v", b)
	}
}

func TestClaimBatchEmptyQueue(t *testing.T) {
	sql := &fakeSQL{err: pgx.ErrNoRows}
	_, ok, err := NewBatchRepository(sql).ClaimBatch(context.Background())
	if err != nil || ok {
		t.Fatalf("expected empty queue, got ok=%v err=%v", ok, err)
	}
}

func TestClaimReclaimsStaleRunningBatches(t *testing.T) {
	q := strings.Join(strings.Fields(sqlinline.QClaimSocialBatch), " ")
	for _, want := range []string{
		"where status = 'QUEUED'",
		"or (status = 'RUNNING' and updated_at < now() - interval '15 minutes')",
		"for update skip locked",
	} {
		if !strings.Contains(q, want) {
			t.Fatalf("claim query lacks %q:\n%s", want, q)
		}
	}
}

func TestCreateBatchReturnsQueuedBatch(t *testing.T) {
	at := time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)
	sql := &fakeSQL{row: []any{at}}
	b, err := NewBatchRepository(sql).CreateBatch(context.Background(), domain.SocialBatch{
		ID: "b1", Target: 12, Platforms: []string{"x"}, Language: "en",
	})
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	if b.Status != domain.BatchStatusQueued || !b.CreatedAt.Equal(at) || !b.UpdatedAt.Equal(at) {
		t.Fatalf("unexpected batch: %+v", b)
	}
}

func TestCompleteBatchEncodesCandidatesInOrder(t *testing.T) {
	sql := &fakeSQL{tag: pgconn.NewCommandTag("UPDATE 1")}
	candidates := []social.Candidate{
		{Lane: "blog", Platform: "linkedin", Hook: "First", Content: "one", Hashtags: []string{"#go"}},
		{Lane: "changelog", Platform: "x", Hook: "Second", Content: "two"},
	}
	if err := NewBatchRepository(sql).CompleteBatch(context.Background(), "b1", candidates); err != nil {
		t.Fatalf("CompleteBatch: %v", err)
	}
	args := sql.execs[0].args
	if args[0] != "b1" {
		t.Fatalf("unexpected batch id arg: %v", args[0])
	}
	var rows []candidateRow
	if err := json.Unmarshal([]byte(args[1].(string)), &rows); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if len(rows) != 2 || rows[1].Position != 1 || rows[1].Lane != "changelog" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if rows[0].Signature != candidates[0].Signature() {
		t.Fatalf("signature not stored")
	}
}

func TestCompleteBatchMissingRow(t *testing.T) {
	sql := &fakeSQL{tag: pgconn.NewCommandTag("UPDATE 0")}
	if err := NewBatchRepository(sql).CompleteBatch(context.Background(), "gone", nil); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListCandidates(t *testing.T) {
	sql := &fakeSQL{rows: [][]any{
		{"blog", "DORA", "linkedin", "Hook", "Body", "Read more", []string{"#devops"}},
	}}
	cands, err := NewBatchRepository(sql).ListCandidates(context.Background(), "b1")
	if err != nil {
		t.Fatalf("ListCandidates: %v", err)
	}
	if len(cands) != 1 || cands[0].Theme != "DORA" || cands[0].Hashtags[0] != "#devops" {
		t.Fatalf("unexpected candidates: %+v", cands)
	}
}

func TestFailBatch(t *testing.T) {
	sql := &fakeSQL{}
	if err := NewBatchRepository(sql).FailBatch(context.Background(), "b1", "boom"); err != nil {
		t.Fatalf("FailBatch: %v", err)
	}
	if got := sql.execs[0].args; got[1] != "FAILED" || got[2] != "boom" {
		t.Fatalf("unexpected args: %v", got)
	}
}
