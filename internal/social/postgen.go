package social

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"cmo/internal/domain"
	"cmo/internal/infra"
	"cmo/internal/providers/llm"
)

// PostRequest asks for social posts written from BaseContent.
type PostRequest struct {
	BaseContent  string
	Language     string
	Instructions string
	// Variations maps a platform to the number of posts wanted for it.
	Variations map[string]int
}

// GeneratedPost is one post returned by a PostGenerator.
type GeneratedPost struct {
	Variant  int      `json:"variant"`
	Hook     string   `json:"hook"`
	Post     string   `json:"post"`
	CTA      string   `json:"cta"`
	Hashtags []string `json:"hashtags"`
	Platform string   `json:"platform"`
}

// PostGenerator writes social posts.
type PostGenerator interface {
	GeneratePosts(ctx context.Context, req PostRequest) ([]GeneratedPost, error)
}

const postSystemPrompt = `You are a senior B2B social media copywriter for a developer-tools company.
You write native posts for each requested platform: LinkedIn posts may run to 1200 characters, X posts must stay under 270 characters.
Every post has a hook (the opening line), a body, a call to action and 2 to 5 hashtags.
Answer only with JSON: {"posts":[{"variant":1,"platform":"linkedin","hook":"...","post":"...","cta":"...","hashtags":["#..."]}]}`

// LLMPostGenerator implements PostGenerator on a text-generation provider.
type LLMPostGenerator struct {
	completer   llm.Completer
	temperature float64
	logger      *infra.Logger
}

func NewLLMPostGenerator(completer llm.Completer, logger *infra.Logger) *LLMPostGenerator {
	return &LLMPostGenerator{completer: completer, temperature: 0.9, logger: infra.LoggerOrDiscard(logger)}
}

func (g *LLMPostGenerator) GeneratePosts(ctx context.Context, req PostRequest) ([]GeneratedPost, error) {
	if len(req.Variations) == 0 {
		return nil, fmt.Errorf("%w: no platform variations requested", domain.ErrInvalidRequest)
	}
	raw, err := g.completer.Complete(ctx, llm.CompletionRequest{
		System:      postSystemPrompt,
		Prompt:      buildPostPrompt(req),
		Temperature: g.temperature,
		JSON:        true,
	})
	if err != nil {
		return nil, err
	}
	posts, err := parsePosts(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUninterpretable, err)
	}
	return posts, nil
}

func buildPostPrompt(req PostRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Language: %s\n\n", req.Language)
	if s := strings.TrimSpace(req.Instructions); s != "" {
		fmt.Fprintf(&sb, "Instructions:\n%s\n\n", s)
	}
	sb.WriteString("Posts to write:\n")
	for _, p := range sortedPlatforms(req.Variations) {
		fmt.Fprintf(&sb, "- %s: %d\n", p, req.Variations[p])
	}
	fmt.Fprintf(&sb, "\nSource material:\n%s\n", strings.TrimSpace(req.BaseContent))
	return sb.String()
}

func sortedPlatforms(v map[string]int) []string {
	out := make([]string, 0, len(v))
	for p, n := range v {
		if n > 0 {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// parsePosts accepts {"posts":[...]} or a bare array, with the body under
// "post" or "content".
func parsePosts(raw string) ([]GeneratedPost, error) {
	doc, err := llm.ParseJSON[json.RawMessage](raw)
	if err != nil {
		return nil, err
	}
	root := gjson.ParseBytes(doc)
	list := root
	if root.IsObject() {
		list = root.Get("posts")
	}
	if !list.IsArray() {
		return nil, fmt.Errorf("no posts array in response")
	}
	var posts []GeneratedPost
	for i, item := range list.Array() {
		body := strings.TrimSpace(item.Get("post").String())
		if body == "" {
			body = strings.TrimSpace(item.Get("content").String())
		}
		if body == "" {
			continue
		}
		var tags []string
		for _, t := range item.Get("hashtags").Array() {
			tags = append(tags, t.String())
		}
		variant := int(item.Get("variant").Int())
		if variant == 0 {
			variant = i + 1
		}
		posts = append(posts, GeneratedPost{
			Variant:  variant,
			Hook:     strings.TrimSpace(item.Get("hook").String()),
			Post:     body,
			CTA:      strings.TrimSpace(item.Get("cta").String()),
			Hashtags: NormalizeHashtags(tags),
			Platform: strings.ToLower(strings.TrimSpace(item.Get("platform").String())),
		})
	}
	return posts, nil
}

// PostLaneGenerator turns lane plans into post requests.
type PostLaneGenerator struct {
	posts PostGenerator
}

func NewPostLaneGenerator(posts PostGenerator) *PostLaneGenerator {
	return &PostLaneGenerator{posts: posts}
}

// GenerateLane spreads count over the plan's platforms and converts the
// returned posts into candidates of the plan's lane.
func (g *PostLaneGenerator) GenerateLane(ctx context.Context, plan LanePlan, count int) ([]Candidate, error) {
	platforms := plan.Platforms
	if len(platforms) == 0 {
		platforms = DefaultPlatforms
	}
	variations := make(map[string]int, len(platforms))
	per := (count + len(platforms) - 1) / len(platforms)
	for _, p := range platforms {
		variations[strings.ToLower(p)] = per
	}

	posts, err := g.posts.GeneratePosts(ctx, PostRequest{
		BaseContent:  renderSources(plan),
		Language:     plan.Language,
		Instructions: laneInstructions(plan),
		Variations:   variations,
	})
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(posts))
	for i, p := range posts {
		platform := p.Platform
		if platform == "" {
			platform = platforms[i%len(platforms)]
		}
		out = append(out, Candidate{
			Lane:     plan.Lane,
			Theme:    themeFor(plan, i),
			Platform: platform,
			Hook:     p.Hook,
			Content:  p.Post,
			CTA:      p.CTA,
			Hashtags: p.Hashtags,
		})
	}
	return out, nil
}

func laneInstructions(plan LanePlan) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(plan.Instructions))
	if v := strings.TrimSpace(plan.Variation); v != "" {
		fmt.Fprintf(&sb, "\n\nVariation strategy:\n%s", v)
	}
	if len(plan.FallbackThemes) > 0 {
		fmt.Fprintf(&sb, "\n\nIf the material runs thin, write about: %s.", strings.Join(plan.FallbackThemes, ", "))
	}
	return sb.String()
}

func renderSources(plan LanePlan) string {
	var sb strings.Builder
	for _, s := range plan.Sources {
		fmt.Fprintf(&sb, "- [%s] %s", s.Kind, s.Title)
		if s.URL != "" {
			fmt.Fprintf(&sb, " (%s)", s.URL)
		}
		sb.WriteString("\n")
		if s.Summary != "" {
			fmt.Fprintf(&sb, "  %s\n", s.Summary)
		}
	}
	return sb.String()
}

func themeFor(plan LanePlan, i int) string {
	if len(plan.Sources) > 0 {
		if t := strings.TrimSpace(plan.Sources[i%len(plan.Sources)].Title); t != "" {
			return t
		}
	}
	if len(plan.FallbackThemes) > 0 {
		return plan.FallbackThemes[i%len(plan.FallbackThemes)]
	}
	return plan.Lane
}
