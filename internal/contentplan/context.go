package contentplan

import (
	"fmt"
	"strings"

	"cmo/internal/domain"
)

// Item caps per section.
const (
	maxCommunity = 8
	maxLowCTR    = 8
	maxStriking  = 8
	maxDecay     = 10
	maxBlogPosts = 15
	maxKeywords  = 20
)

// Section titles, in context order.
const (
	SectionCommunity = "Community Discussions"
	SectionLowCTR    = "Low CTR Opportunities"
	SectionStriking  = "Striking Distance Keywords"
	SectionDecay     = "Content Decay"
	SectionBlogPosts = "Published Blog Posts"
	SectionKeywords  = "Keyword Research History"
)

// Section is one labeled block of the synthesis context.
type Section struct {
	Title string
	Lines []string
}

// sourceData holds what each source returned. A failed source leaves its
// field empty.
type sourceData struct {
	community     []domain.CommunityResult
	opportunities domain.Opportunities
	decay         []domain.DecayRow
	posts         []domain.Post
	keywords      []domain.KeywordRecord
}

func (d sourceData) counts() DataCounts {
	return DataCounts{
		Community:        len(d.community),
		LowCTR:           len(d.opportunities.LowCTR),
		StrikingDistance: len(d.opportunities.StrikingDistance),
		Decaying:         len(d.decay),
		BlogPosts:        len(d.posts),
		Keywords:         len(d.keywords),
	}
}

func (d sourceData) sections() []Section {
	var community []string
	for _, r := range capped(d.community, maxCommunity) {
		line := fmt.Sprintf("%s (%s)", r.Title, r.URL)
		if r.Snippet != "" {
			line += ": " + oneLine(r.Snippet, 240)
		}
		community = append(community, line)
	}
	var lowCTR []string
	for _, r := range capped(d.opportunities.LowCTR, maxLowCTR) {
		lowCTR = append(lowCTR, fmt.Sprintf("%q on %s: %d impressions, %d clicks, CTR %.1f%%, position %.1f",
			r.Query, r.Page, r.Impressions, r.Clicks, r.CTR*100, r.Position))
	}
	var striking []string
	for _, r := range capped(d.opportunities.StrikingDistance, maxStriking) {
		striking = append(striking, fmt.Sprintf("%q on %s: position %.1f, %d impressions",
			r.Query, r.Page, r.Position, r.Impressions))
	}
	var decay []string
	for _, r := range capped(d.decay, maxDecay) {
		label := r.Page
		if r.Title != "" {
			label = fmt.Sprintf("%s (%s)", r.Title, r.Page)
		}
		decay = append(decay, fmt.Sprintf("%s: %d -> %d pageviews (%.0f%%)",
			label, r.PreviousPageviews, r.CurrentPageviews, r.ChangePct))
	}
	var posts []string
	for _, p := range capped(d.posts, maxBlogPosts) {
		line := p.Title
		if p.Keyword != "" {
			line += fmt.Sprintf(" [keyword: %s]", p.Keyword)
		}
		if !p.PublishedAt.IsZero() {
			line += " - " + p.PublishedAt.Format("2006-01-02")
		}
		posts = append(posts, line)
	}
	var keywords []string
	for _, k := range capped(d.keywords, maxKeywords) {
		keywords = append(keywords, fmt.Sprintf("%s: volume %d, difficulty %d", k.Phrase, k.Volume, k.Difficulty))
	}

	return []Section{
		{Title: SectionCommunity, Lines: community},
		{Title: SectionLowCTR, Lines: lowCTR},
		{Title: SectionStriking, Lines: striking},
		{Title: SectionDecay, Lines: decay},
		{Title: SectionBlogPosts, Lines: posts},
		{Title: SectionKeywords, Lines: keywords},
	}
}

// BuildContext renders sections as markdown bullet lists. Sections without
// lines are left out entirely; with nothing to render the result is "".
func BuildContext(sections []Section) string {
	var blocks []string
	for _, s := range sections {
		if len(s.Lines) == 0 {
			continue
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "## %s\n", s.Title)
		for _, l := range s.Lines {
			fmt.Fprintf(&sb, "- %s\n", l)
		}
		blocks = append(blocks, strings.TrimRight(sb.String(), "\n"))
	}
	return strings.Join(blocks, "\n\n")
}

func capped[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func oneLine(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > limit {
		return string(r[:limit]) + "..."
	}
	return s
}
