package domain

import "time"

// Post is a published blog post.
type Post struct {
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	URL         string    `json:"url"`
	Excerpt     string    `json:"excerpt,omitempty"`
	Keyword     string    `json:"keyword,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
}

// ChangelogEntry is one product changelog item used as social source material.
type ChangelogEntry struct {
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Version     string    `json:"version,omitempty"`
	URL         string    `json:"url,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
}

// Article is a generated long-form article returned by the automation backend.
type Article struct {
	Title           string `json:"title"`
	Slug            string `json:"slug,omitempty"`
	Keyword         string `json:"keyword,omitempty"`
	MetaDescription string `json:"metaDescription,omitempty"`
	Content         string `json:"content"`
}

// CommunityResult is one hit from a community/web search.
type CommunityResult struct {
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Snippet     string     `json:"snippet,omitempty"`
	Source      string     `json:"source,omitempty"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
}
