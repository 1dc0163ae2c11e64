package domain

import "context"

// PostRepository reads published blog posts.
type PostRepository interface {
	RecentPosts(ctx context.Context, limit int) ([]Post, error)
}

// KeywordRepository stores and reads keyword research history.
type KeywordRepository interface {
	RecentKeywords(ctx context.Context, limit int) ([]KeywordRecord, error)
	SaveKeywords(ctx context.Context, idea string, keywords []Keyword) error
}

// ChangelogRepository reads product changelog entries.
type ChangelogRepository interface {
	RecentChangelog(ctx context.Context, limit int) ([]ChangelogEntry, error)
}
