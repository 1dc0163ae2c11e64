package social

import (
	"context"
	"fmt"
	"strings"

	"cmo/internal/domain"
	"cmo/internal/infra"
)

const (
	DefaultTarget   = 12
	MaxTarget       = 60
	DefaultLanguage = "pt-BR"
)

// DefaultPlatforms are used when a request names none.
var DefaultPlatforms = []string{"linkedin", "x"}

var supportedPlatforms = map[string]struct{}{
	"linkedin":  {},
	"x":         {},
	"threads":   {},
	"bluesky":   {},
	"instagram": {},
	"facebook":  {},
}

// BatchRequest is the input of one social batch.
type BatchRequest struct {
	Target    int                     `json:"target"`
	Platforms []string                `json:"platforms"`
	Language  string                  `json:"language"`
	Blog      []domain.Post           `json:"-"`
	Changelog []domain.ChangelogEntry `json:"-"`
}

// Normalize applies defaults and validates the request.
func (r BatchRequest) Normalize() (BatchRequest, error) {
	if r.Target == 0 {
		r.Target = DefaultTarget
	}
	if r.Target < 0 || r.Target > MaxTarget {
		return r, fmt.Errorf("%w: target must be between 1 and %d", domain.ErrInvalidRequest, MaxTarget)
	}
	var platforms []string
	seen := map[string]struct{}{}
	for _, p := range r.Platforms {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "twitter" {
			p = "x"
		}
		if p == "" {
			continue
		}
		if _, ok := supportedPlatforms[p]; !ok {
			return r, fmt.Errorf("%w: unsupported platform %q", domain.ErrInvalidRequest, p)
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		platforms = append(platforms, p)
	}
	if len(platforms) == 0 {
		platforms = append([]string(nil), DefaultPlatforms...)
	}
	r.Platforms = platforms
	r.Language = strings.TrimSpace(r.Language)
	if r.Language == "" {
		r.Language = DefaultLanguage
	}
	return r, nil
}

// BatchBuilder builds lane plans from source material and runs the generator.
type BatchBuilder struct {
	lanes     []LaneDefinition
	generator *Generator
	logger    *infra.Logger
}

func NewBatchBuilder(lanes []LaneDefinition, generator *Generator, logger *infra.Logger) *BatchBuilder {
	return &BatchBuilder{lanes: lanes, generator: generator, logger: infra.LoggerOrDiscard(logger)}
}

// Build generates the candidates of one batch.
func (b *BatchBuilder) Build(ctx context.Context, req BatchRequest) ([]Candidate, error) {
	req, err := req.Normalize()
	if err != nil {
		return nil, err
	}
	plans := b.Plans(req)
	b.logger.Info().Int("target", req.Target).Int("lanes", len(plans)).
		Int("blog", len(req.Blog)).Int("changelog", len(req.Changelog)).Msg("social batch started")
	return b.generator.Generate(ctx, plans, req.Target)
}

// Plans returns one plan per lane definition, in definition order.
func (b *BatchBuilder) Plans(req BatchRequest) []LanePlan {
	blog := make([]Source, 0, len(req.Blog))
	for _, p := range req.Blog {
		blog = append(blog, Source{Kind: SourceBlog, Title: p.Title, Summary: coalesce(p.Excerpt, p.Keyword), URL: p.URL})
	}
	changelog := make([]Source, 0, len(req.Changelog))
	for _, c := range req.Changelog {
		title := c.Title
		if c.Version != "" {
			title = fmt.Sprintf("%s (%s)", c.Title, c.Version)
		}
		changelog = append(changelog, Source{Kind: SourceChangelog, Title: title, Summary: c.Summary, URL: c.URL})
	}

	plans := make([]LanePlan, 0, len(b.lanes))
	for _, def := range b.lanes {
		var sources []Source
		switch def.Sources {
		case SourceBlog:
			sources = blog
		case SourceChangelog:
			sources = changelog
		case SourceMixed:
			// Mixing needs both kinds of material.
			if len(blog) > 0 && len(changelog) > 0 {
				sources = interleave(blog, changelog)
			}
		}
		if def.MaxSources > 0 && len(sources) > def.MaxSources {
			sources = sources[:def.MaxSources]
		}
		plans = append(plans, LanePlan{
			Lane:           def.Name,
			Sources:        append([]Source(nil), sources...),
			Instructions:   def.Instructions,
			Variation:      def.Variation,
			FallbackThemes: append([]string(nil), def.FallbackThemes...),
			Platforms:      append([]string(nil), req.Platforms...),
			Language:       req.Language,
		})
	}
	return plans
}

func interleave(a, b []Source) []Source {
	out := make([]Source, 0, len(a)+len(b))
	for i := 0; i < len(a) || i < len(b); i++ {
		if i < len(a) {
			out = append(out, a[i])
		}
		if i < len(b) {
			out = append(out, b[i])
		}
	}
	return out
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
