// Package social generates batches of social media posts from blog and
// changelog material, spread across independently configured lanes.
package social

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Candidate is one generated post awaiting selection.
type Candidate struct {
	Lane     string   `json:"lane"`
	Theme    string   `json:"theme"`
	Platform string   `json:"platform"`
	Hook     string   `json:"hook"`
	Content  string   `json:"content"`
	CTA      string   `json:"cta"`
	Hashtags []string `json:"hashtags"`
}

// Signature identifies a candidate by its visible content. Platform and text
// fields compare case-insensitively and ignore whitespace differences; theme
// and hashtags do not take part.
func (c Candidate) Signature() string {
	return strings.Join([]string{
		strings.TrimSpace(c.Lane),
		strings.ToLower(strings.TrimSpace(c.Platform)),
		normalizeText(c.Hook),
		normalizeText(c.Content),
		normalizeText(c.CTA),
	}, "\x1f")
}

// normalizeText folds case and compatibility forms and collapses runs of
// whitespace.
func normalizeText(s string) string {
	s = norm.NFKC.String(s)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeHashtags prefixes every tag with '#' and drops empty and
// case-insensitive duplicate tags.
func NormalizeHashtags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.Join(strings.Fields(tag), "")
		tag = strings.TrimLeft(tag, "#")
		if tag == "" {
			continue
		}
		key := cases.Fold().String(norm.NFKC.String(tag))
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, "#"+tag)
	}
	return out
}

// dedupe appends the candidates of batch whose signature is not yet in seen.
func dedupe(dst []Candidate, seen map[string]struct{}, batch []Candidate) []Candidate {
	for _, c := range batch {
		sig := c.Signature()
		if _, ok := seen[sig]; ok {
			continue
		}
		seen[sig] = struct{}{}
		dst = append(dst, c)
	}
	return dst
}
