package repo

import (
	"context"
	"fmt"

	"cmo/internal/domain"
	"cmo/internal/infra"
	"cmo/internal/sqlinline"
)

// ContentRepositoryPG reads published blog posts and changelog entries.
type ContentRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewContentRepository creates a content repository backed by PostgreSQL.
func NewContentRepository(sql infra.SQLExecutor) *ContentRepositoryPG {
	return &ContentRepositoryPG{sql: sql}
}

// RecentPosts returns up to limit posts, newest first.
func (r *ContentRepositoryPG) RecentPosts(ctx context.Context, limit int) ([]domain.Post, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QSelectRecentPosts, limit)
	if err != nil {
		return nil, fmt.Errorf("select posts: %w", err)
	}
	defer rows.Close()

	posts := make([]domain.Post, 0, limit)
	for rows.Next() {
		var p domain.Post
		if err := rows.Scan(&p.Title, &p.Slug, &p.URL, &p.Excerpt, &p.Keyword, &p.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select posts: %w", err)
	}
	return posts, nil
}

// RecentChangelog returns up to limit changelog entries, newest first.
func (r *ContentRepositoryPG) RecentChangelog(ctx context.Context, limit int) ([]domain.ChangelogEntry, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QSelectRecentChangelog, limit)
	if err != nil {
		return nil, fmt.Errorf("select changelog: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.ChangelogEntry, 0, limit)
	for rows.Next() {
		var e domain.ChangelogEntry
		if err := rows.Scan(&e.Title, &e.Summary, &e.Version, &e.URL, &e.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan changelog entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select changelog: %w", err)
	}
	return entries, nil
}

var (
	_ domain.PostRepository      = (*ContentRepositoryPG)(nil)
	_ domain.ChangelogRepository = (*ContentRepositoryPG)(nil)
)
