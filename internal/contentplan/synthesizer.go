// Package contentplan turns marketing data from several sources into a ranked
// set of content ideas.
package contentplan

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"cmo/internal/domain"
	"cmo/internal/infra"
	"cmo/internal/providers/llm"
)

const (
	defaultMinPageviews = 100
	defaultMaxIdeas     = 10
	maxIdeasLimit       = 30
	defaultLanguage     = "pt-BR"

	communityLimit = 10
	postsLimit     = 15
	keywordsLimit  = 20
)

// CommunitySource searches community discussions about a topic.
type CommunitySource interface {
	SearchCommunity(ctx context.Context, topic string, limit int) ([]domain.CommunityResult, error)
}

// OpportunitySource finds search queries worth acting on.
type OpportunitySource interface {
	SEOOpportunities(ctx context.Context, r domain.DateRange) (domain.Opportunities, error)
}

// DecaySource finds pages losing traffic.
type DecaySource interface {
	ContentDecay(ctx context.Context, r domain.DateRange, minPageviews int) ([]domain.DecayRow, error)
}

// KeywordHistory lists previously researched keywords.
type KeywordHistory interface {
	RecentKeywords(ctx context.Context, limit int) ([]domain.KeywordRecord, error)
}

// Sources are the collaborators queried for every plan. A nil source
// contributes nothing.
type Sources struct {
	Community     CommunitySource
	Opportunities OpportunitySource
	Decay         DecaySource
	Posts         domain.PostRepository
	Keywords      KeywordHistory
}

// Request describes one content plan.
type Request struct {
	Topic        string `json:"topic,omitempty"`
	Period       string `json:"period,omitempty"`
	StartDate    string `json:"startDate,omitempty"`
	EndDate      string `json:"endDate,omitempty"`
	MinPageviews int    `json:"minPageviews,omitempty"`
	MaxIdeas     int    `json:"maxIdeas,omitempty"`
	Language     string `json:"language,omitempty"`
}

// Idea is one proposed piece of content.
type Idea struct {
	Title         string   `json:"title"`
	Angle         string   `json:"angle"`
	Format        string   `json:"format"`
	TargetKeyword string   `json:"targetKeyword,omitempty"`
	Priority      string   `json:"priority"`
	Rationale     string   `json:"rationale"`
	DataSources   []string `json:"dataSources"`
}

// DataCounts records how many items each source made available.
type DataCounts struct {
	Community        int `json:"community"`
	LowCTR           int `json:"lowCtr"`
	StrikingDistance int `json:"strikingDistance"`
	Decaying         int `json:"decaying"`
	BlogPosts        int `json:"blogPosts"`
	Keywords         int `json:"keywords"`
}

// Plan is the synthesized content plan.
type Plan struct {
	Topic       string           `json:"topic,omitempty"`
	Ideas       []Idea           `json:"ideas"`
	DataCounts  DataCounts       `json:"dataCounts"`
	DateRange   domain.DateRange `json:"dateRange"`
	GeneratedAt time.Time        `json:"generatedAt"`
}

// Synthesizer builds content plans.
type Synthesizer struct {
	sources   Sources
	completer llm.Completer
	logger    *infra.Logger
	now       func() time.Time
}

func NewSynthesizer(sources Sources, completer llm.Completer, logger *infra.Logger) *Synthesizer {
	return &Synthesizer{sources: sources, completer: completer, logger: infra.LoggerOrDiscard(logger), now: time.Now}
}

var tracer = infra.Tracer("contentplan")

// Plan queries every source concurrently, compacts what came back into a
// bounded context and asks the text generator to rank ideas from it.
//
// A failing source is logged and contributes nothing. When nothing at all was
// retrieved the generator gets a fallback prompt instead. An answer that is
// not the expected JSON fails with domain.ErrUninterpretable.
func (s *Synthesizer) Plan(ctx context.Context, req Request) (Plan, error) {
	req = req.withDefaults()
	now := s.now().UTC()
	dateRange, err := domain.ResolveDateRange(req.Period, req.StartDate, req.EndDate, now)
	if err != nil {
		return Plan{}, err
	}

	ctx, span := tracer.Start(ctx, "contentplan.Plan")
	defer span.End()

	data := s.gather(ctx, req, dateRange)
	counts := data.counts()
	span.SetAttributes(
		attribute.Int("contentplan.community", counts.Community),
		attribute.Int("contentplan.low_ctr", counts.LowCTR),
		attribute.Int("contentplan.striking", counts.StrikingDistance),
		attribute.Int("contentplan.decaying", counts.Decaying),
		attribute.Int("contentplan.blog_posts", counts.BlogPosts),
		attribute.Int("contentplan.keywords", counts.Keywords),
	)

	body := BuildContext(data.sections())
	prompt := FallbackPrompt(req.Topic, req.Language, req.MaxIdeas)
	if body != "" {
		prompt = dataPrompt(req, dateRange, body)
	} else {
		s.logger.Warn().Str("topic", req.Topic).Msg("content plan: no source data, using fallback prompt")
	}

	raw, err := s.completer.Complete(ctx, llm.CompletionRequest{
		System:      synthesisSystemPrompt,
		Prompt:      prompt,
		Temperature: 0.4,
		JSON:        true,
	})
	if err != nil {
		return Plan{}, fmt.Errorf("content plan generation: %w", err)
	}
	ideas, err := parseIdeas(raw)
	if err != nil {
		s.logger.Error().Err(err).Str("response", truncate(raw, 300)).Msg("content plan: unparseable response")
		return Plan{}, fmt.Errorf("%w: %v", domain.ErrUninterpretable, err)
	}
	if len(ideas) > req.MaxIdeas {
		ideas = ideas[:req.MaxIdeas]
	}

	return Plan{
		Topic:       req.Topic,
		Ideas:       ideas,
		DataCounts:  counts,
		DateRange:   dateRange,
		GeneratedAt: now,
	}, nil
}

func (r Request) withDefaults() Request {
	r.Topic = strings.TrimSpace(r.Topic)
	if r.MinPageviews <= 0 {
		r.MinPageviews = defaultMinPageviews
	}
	if r.MaxIdeas <= 0 {
		r.MaxIdeas = defaultMaxIdeas
	}
	if r.MaxIdeas > maxIdeasLimit {
		r.MaxIdeas = maxIdeasLimit
	}
	if strings.TrimSpace(r.Language) == "" {
		r.Language = defaultLanguage
	}
	return r
}

// gather runs the five source queries concurrently. Each branch writes only
// its own field of data and never returns an error, so one failure does not
// cancel the others.
func (s *Synthesizer) gather(ctx context.Context, req Request, r domain.DateRange) sourceData {
	var (
		data sourceData
		eg   errgroup.Group
	)
	eg.Go(func() error {
		if s.sources.Community == nil || req.Topic == "" {
			return nil
		}
		res, err := s.sources.Community.SearchCommunity(ctx, req.Topic, communityLimit)
		if s.tolerate("community", err) {
			data.community = res
		}
		return nil
	})
	eg.Go(func() error {
		data.opportunities = domain.Opportunities{LowCTR: []domain.OpportunityRow{}, StrikingDistance: []domain.OpportunityRow{}}
		if s.sources.Opportunities == nil {
			return nil
		}
		res, err := s.sources.Opportunities.SEOOpportunities(ctx, r)
		if s.tolerate("seo_opportunities", err) {
			data.opportunities = res
		}
		return nil
	})
	eg.Go(func() error {
		if s.sources.Decay == nil {
			return nil
		}
		res, err := s.sources.Decay.ContentDecay(ctx, r, req.MinPageviews)
		if s.tolerate("content_decay", err) {
			data.decay = res
		}
		return nil
	})
	eg.Go(func() error {
		if s.sources.Posts == nil {
			return nil
		}
		res, err := s.sources.Posts.RecentPosts(ctx, postsLimit)
		if s.tolerate("blog_posts", err) {
			data.posts = res
		}
		return nil
	})
	eg.Go(func() error {
		if s.sources.Keywords == nil {
			return nil
		}
		res, err := s.sources.Keywords.RecentKeywords(ctx, keywordsLimit)
		if s.tolerate("keywords", err) {
			data.keywords = res
		}
		return nil
	})
	_ = eg.Wait()
	return data
}

func (s *Synthesizer) tolerate(source string, err error) bool {
	if err == nil {
		return true
	}
	s.logger.Warn().Err(err).Str("source", source).Msg("content plan source failed")
	return false
}

var priorityRank = map[string]int{"high": 0, "medium": 1, "low": 2}

// parseIdeas accepts {"ideas":[...]} or a bare array, fenced or not. Ideas
// are ordered by priority, keeping the model's order within a priority.
func parseIdeas(raw string) ([]Idea, error) {
	doc, err := llm.ParseJSON[json.RawMessage](raw)
	if err != nil {
		return nil, err
	}
	var ideas []Idea
	if strings.HasPrefix(strings.TrimSpace(string(doc)), "[") {
		if err := json.Unmarshal(doc, &ideas); err != nil {
			return nil, err
		}
	} else {
		var envelope struct {
			Ideas *[]Idea `json:"ideas"`
		}
		if err := json.Unmarshal(doc, &envelope); err != nil {
			return nil, err
		}
		if envelope.Ideas == nil {
			return nil, fmt.Errorf("response has no ideas field")
		}
		ideas = *envelope.Ideas
	}

	out := make([]Idea, 0, len(ideas))
	for _, idea := range ideas {
		idea.Title = strings.TrimSpace(idea.Title)
		if idea.Title == "" {
			continue
		}
		idea.Priority = strings.ToLower(strings.TrimSpace(idea.Priority))
		if _, ok := priorityRank[idea.Priority]; !ok {
			idea.Priority = "medium"
		}
		if idea.DataSources == nil {
			idea.DataSources = []string{}
		}
		out = append(out, idea)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return priorityRank[out[i].Priority] < priorityRank[out[j].Priority]
	})
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
