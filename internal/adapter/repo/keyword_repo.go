package repo

import (
	"context"
	"fmt"
	"strings"

	"cmo/internal/domain"
	"cmo/internal/infra"
	"cmo/internal/sqlinline"
)

// KeywordRepositoryPG implements domain.KeywordRepository.
type KeywordRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewKeywordRepository(sql infra.SQLExecutor) *KeywordRepositoryPG {
	return &KeywordRepositoryPG{sql: sql}
}

// RecentKeywords returns the most recently researched keywords.
func (r *KeywordRepositoryPG) RecentKeywords(ctx context.Context, limit int) ([]domain.KeywordRecord, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QSelectRecentKeywords, limit)
	if err != nil {
		return nil, fmt.Errorf("select keywords: %w", err)
	}
	defer rows.Close()

	records := make([]domain.KeywordRecord, 0, limit)
	for rows.Next() {
		var k domain.KeywordRecord
		if err := rows.Scan(&k.Phrase, &k.Volume, &k.Difficulty, &k.Idea, &k.ResearchedAt); err != nil {
			return nil, fmt.Errorf("scan keyword: %w", err)
		}
		records = append(records, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select keywords: %w", err)
	}
	return records, nil
}

// SaveKeywords upserts the result of one research run. Rows without a phrase
// are skipped.
func (r *KeywordRepositoryPG) SaveKeywords(ctx context.Context, idea string, keywords []domain.Keyword) error {
	idea = strings.TrimSpace(idea)
	for _, k := range keywords {
		phrase := strings.TrimSpace(k.Phrase)
		if phrase == "" {
			continue
		}
		if _, err := r.sql.Exec(ctx, sqlinline.QInsertKeyword,
			idea,
			phrase,
			k.Volume,
			k.CPC,
			k.Difficulty,
			k.DifficultyLabel,
		); err != nil {
			return fmt.Errorf("save keyword %q: %w", phrase, err)
		}
	}
	return nil
}

var _ domain.KeywordRepository = (*KeywordRepositoryPG)(nil)
