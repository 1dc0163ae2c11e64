package contentplan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"cmo/internal/domain"
	"cmo/internal/providers/llm"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingCompleter struct {
	mu       sync.Mutex
	requests []llm.CompletionRequest
	answer   string
	err      error
}

func (c *recordingCompleter) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	return c.answer, c.err
}

type fakeCommunity struct {
	results []domain.CommunityResult
	err     error
	topics  []string
}

func (f *fakeCommunity) SearchCommunity(_ context.Context, topic string, _ int) ([]domain.CommunityResult, error) {
	f.topics = append(f.topics, topic)
	return f.results, f.err
}

type fakeAnalytics struct {
	opportunities domain.Opportunities
	decay         []domain.DecayRow
	oppErr        error
	decayErr      error
	minPageviews  int
}

func (f *fakeAnalytics) SEOOpportunities(context.Context, domain.DateRange) (domain.Opportunities, error) {
	return f.opportunities, f.oppErr
}

func (f *fakeAnalytics) ContentDecay(_ context.Context, _ domain.DateRange, minPageviews int) ([]domain.DecayRow, error) {
	f.minPageviews = minPageviews
	return f.decay, f.decayErr
}

type fakePosts struct {
	posts []domain.Post
	err   error
}

func (f fakePosts) RecentPosts(context.Context, int) ([]domain.Post, error) { return f.posts, f.err }

type fakeKeywords struct {
	records []domain.KeywordRecord
	err     error
}

func (f fakeKeywords) RecentKeywords(context.Context, int) ([]domain.KeywordRecord, error) {
	return f.records, f.err
}

const ideasAnswer = "```json\n" + `{"ideas":[
{"title":"Refresh the DORA guide","angle":"update numbers","format":"refresh","priority":"low","rationale":"decaying","dataSources":["Content Decay"]},
{"title":"CI caching deep dive","angle":"how-to","format":"guide","priority":"high","rationale":"striking distance","dataSources":["Striking Distance Keywords"]},
{"title":"Flaky tests survey","angle":"community pain","format":"blog","priority":"medium","rationale":"reddit threads"},
{"title":"Monorepo builds","angle":"comparison","format":"comparison","priority":"high","rationale":"low ctr"}
]}` + "\n```"

func fixedNow() time.Time { return time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC) }

func newTestSynthesizer(sources Sources, c llm.Completer) *Synthesizer {
	s := NewSynthesizer(sources, c, nil)
	s.now = fixedNow
	return s
}

func fullSources() (Sources, *fakeCommunity, *fakeAnalytics) {
	community := &fakeCommunity{results: []domain.CommunityResult{
		{Title: "Why are my CI builds slow?", URL: "https://reddit.com/r/devops/1", Snippet: "Every   build\ntakes 20 minutes"},
	}}
	analytics := &fakeAnalytics{
		opportunities: domain.Opportunities{
			LowCTR:           []domain.OpportunityRow{{Query: "monorepo build", Page: "/blog/monorepo", Impressions: 4000, Clicks: 20, CTR: 0.005, Position: 4.2}},
			StrikingDistance: []domain.OpportunityRow{{Query: "ci caching", Page: "/blog/ci", Impressions: 900, Clicks: 12, CTR: 0.013, Position: 11.4}},
		},
		decay: []domain.DecayRow{{Page: "/blog/dora", Title: "DORA metrics", CurrentPageviews: 300, PreviousPageviews: 1000, ChangePct: -70}},
	}
	return Sources{
		Community:     community,
		Opportunities: analytics,
		Decay:         analytics,
		Posts:         fakePosts{posts: []domain.Post{{Title: "DORA metrics explained", Keyword: "dora metrics"}}},
		Keywords:      fakeKeywords{records: []domain.KeywordRecord{{Phrase: "ci caching", Volume: 880, Difficulty: 55}}},
	}, community, analytics
}

func TestPlanRanksIdeasAndCountsSources(t *testing.T) {
	sources, community, analytics := fullSources()
	completer := &recordingCompleter{answer: ideasAnswer}
	plan, err := newTestSynthesizer(sources, completer).Plan(context.Background(), Request{Topic: " ci speed ", Period: "7d"})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	want := DataCounts{Community: 1, LowCTR: 1, StrikingDistance: 1, Decaying: 1, BlogPosts: 1, Keywords: 1}
	if plan.DataCounts != want {
		t.Fatalf("unexpected counts: %+v", plan.DataCounts)
	}
	var titles []string
	for _, idea := range plan.Ideas {
		titles = append(titles, idea.Title)
	}
	if got := strings.Join(titles, "|"); got != "CI caching deep dive|Monorepo builds|Flaky tests survey|Refresh the DORA guide" {
		t.Fatalf("unexpected order: %s", got)
	}
	if plan.Ideas[2].DataSources == nil {
		t.Fatalf("expected empty data sources slice, got nil")
	}
	if plan.DateRange.StartDate() != "2026-10-08" || plan.DateRange.EndDate() != "2026-10-14" {
		t.Fatalf("unexpected range: %s..%s", plan.DateRange.StartDate(), plan.DateRange.EndDate())
	}
	if len(community.topics) != 1 || community.topics[0] != "ci speed" {
		t.Fatalf("unexpected community topics: %v", community.topics)
	}
	if analytics.minPageviews != defaultMinPageviews {
		t.Fatalf("expected default min pageviews, got %d", analytics.minPageviews)
	}

	if len(completer.requests) != 1 {
		t.Fatalf("expected one completion, got %d", len(completer.requests))
	}
	req := completer.requests[0]
	if !req.JSON || req.System != synthesisSystemPrompt {
		t.Fatalf("unexpected completion request: %+v", req)
	}
	for _, title := range []string{SectionCommunity, SectionLowCTR, SectionStriking, SectionDecay, SectionBlogPosts, SectionKeywords} {
		if !strings.Contains(req.Prompt, "## "+title+"\n") {
			t.Fatalf("prompt misses section %q:\n%s", title, req.Prompt)
		}
	}
	if !strings.Contains(req.Prompt, "Every build takes 20 minutes") {
		t.Fatalf("expected snippet collapsed to one line:\n%s", req.Prompt)
	}
}

func TestPlanToleratesFailingSource(t *testing.T) {
	sources, _, analytics := fullSources()
	analytics.decayErr = errors.New("bigquery: quota exceeded")
	completer := &recordingCompleter{answer: ideasAnswer}

	plan, err := newTestSynthesizer(sources, completer).Plan(context.Background(), Request{Topic: "ci"})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.DataCounts.Decaying != 0 {
		t.Fatalf("expected no decaying pages, got %d", plan.DataCounts.Decaying)
	}
	if plan.DataCounts.LowCTR != 1 || plan.DataCounts.Keywords != 1 {
		t.Fatalf("other sources should still count: %+v", plan.DataCounts)
	}
	if strings.Contains(completer.requests[0].Prompt, SectionDecay) {
		t.Fatalf("failed source must not contribute a section:\n%s", completer.requests[0].Prompt)
	}
}

func TestPlanSkipsCommunityWithoutTopic(t *testing.T) {
	sources, community, _ := fullSources()
	completer := &recordingCompleter{answer: ideasAnswer}

	plan, err := newTestSynthesizer(sources, completer).Plan(context.Background(), Request{})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(community.topics) != 0 {
		t.Fatalf("community search should not run without a topic")
	}
	if plan.DataCounts.Community != 0 {
		t.Fatalf("expected zero community results, got %d", plan.DataCounts.Community)
	}
}

func TestPlanUsesFallbackPromptWhenNothingRetrieved(t *testing.T) {
	boom := errors.New("down")
	analytics := &fakeAnalytics{oppErr: boom, decayErr: boom}
	sources := Sources{
		Community:     &fakeCommunity{err: boom},
		Opportunities: analytics,
		Decay:         analytics,
		Posts:         fakePosts{err: boom},
		Keywords:      fakeKeywords{err: boom},
	}
	completer := &recordingCompleter{answer: `[{"title":"Getting started with CI","priority":"HIGH"}]`}

	plan, err := newTestSynthesizer(sources, completer).Plan(context.Background(), Request{Topic: "ci", MaxIdeas: 5, Language: "en"})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.DataCounts != (DataCounts{}) {
		t.Fatalf("expected zero counts, got %+v", plan.DataCounts)
	}
	if got, want := completer.requests[0].Prompt, FallbackPrompt("ci", "en", 5); got != want {
		t.Fatalf("unexpected prompt:\n%s\nwant:\n%s", got, want)
	}
	if len(plan.Ideas) != 1 || plan.Ideas[0].Priority != "high" {
		t.Fatalf("unexpected ideas: %+v", plan.Ideas)
	}
}

func TestPlanNilSourcesUseFallback(t *testing.T) {
	completer := &recordingCompleter{answer: `{"ideas":[]}`}
	plan, err := newTestSynthesizer(Sources{}, completer).Plan(context.Background(), Request{})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.Ideas == nil || len(plan.Ideas) != 0 {
		t.Fatalf("expected empty non-nil ideas, got %#v", plan.Ideas)
	}
	if !strings.HasPrefix(completer.requests[0].Prompt, "No analytics, community or content data") {
		t.Fatalf("expected fallback prompt, got %q", completer.requests[0].Prompt)
	}
}

func TestPlanReportsUninterpretableResponse(t *testing.T) {
	sources, _, _ := fullSources()
	completer := &recordingCompleter{answer: "Sure! Here are some great ideas for your blog."}

	_, err := newTestSynthesizer(sources, completer).Plan(context.Background(), Request{Topic: "ci"})
	if !errors.Is(err, domain.ErrUninterpretable) {
		t.Fatalf("expected ErrUninterpretable, got %v", err)
	}
}

func TestPlanPropagatesGenerationError(t *testing.T) {
	completer := &recordingCompleter{err: fmt.Errorf("%w: status 500", domain.ErrTransport)}
	_, err := newTestSynthesizer(Sources{}, completer).Plan(context.Background(), Request{})
	if !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestPlanRejectsBadDateRange(t *testing.T) {
	completer := &recordingCompleter{answer: ideasAnswer}
	_, err := newTestSynthesizer(Sources{}, completer).Plan(context.Background(), Request{StartDate: "2026-10-01"})
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if len(completer.requests) != 0 {
		t.Fatalf("generation must not run for an invalid request")
	}
}

func TestPlanTruncatesToMaxIdeas(t *testing.T) {
	completer := &recordingCompleter{answer: ideasAnswer}
	plan, err := newTestSynthesizer(Sources{}, completer).Plan(context.Background(), Request{MaxIdeas: 2})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Ideas) != 2 || plan.Ideas[1].Title != "Monorepo builds" {
		t.Fatalf("unexpected ideas: %+v", plan.Ideas)
	}
}

func TestBuildContextCapsSections(t *testing.T) {
	var data sourceData
	for i := 0; i < 30; i++ {
		data.keywords = append(data.keywords, domain.KeywordRecord{Phrase: fmt.Sprintf("kw-%02d", i)})
		data.community = append(data.community, domain.CommunityResult{Title: fmt.Sprintf("thread %d", i)})
	}
	out := BuildContext(data.sections())

	if n := strings.Count(out, "- kw-"); n != maxKeywords {
		t.Fatalf("expected %d keyword lines, got %d", maxKeywords, n)
	}
	if n := strings.Count(out, "- thread "); n != maxCommunity {
		t.Fatalf("expected %d community lines, got %d", maxCommunity, n)
	}
	if strings.Contains(out, SectionDecay) || strings.Contains(out, SectionBlogPosts) {
		t.Fatalf("empty sections must be omitted:\n%s", out)
	}
	if !strings.HasPrefix(out, "## "+SectionCommunity+"\n") {
		t.Fatalf("sections out of order:\n%s", out)
	}
}

func TestBuildContextEmpty(t *testing.T) {
	if got := BuildContext([]Section{{Title: "Nothing"}}); got != "" {
		t.Fatalf("expected empty context, got %q", got)
	}
}
