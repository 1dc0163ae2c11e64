package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"cmo/internal/domain"
	"cmo/internal/infra"
	"cmo/internal/social"
	"cmo/internal/sqlinline"
)

// BatchRepositoryPG implements social.BatchStore.
type BatchRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewBatchRepository creates a batch store backed by PostgreSQL.
func NewBatchRepository(sql infra.SQLExecutor) *BatchRepositoryPG {
	return &BatchRepositoryPG{sql: sql}
}

// CreateBatch inserts a queued batch and returns it with its timestamps.
func (r *BatchRepositoryPG) CreateBatch(ctx context.Context, batch domain.SocialBatch) (domain.SocialBatch, error) {
	err := r.sql.QueryRow(ctx, sqlinline.QInsertSocialBatch,
		batch.ID,
		batch.Target,
		batch.Platforms,
		batch.Language,
	).Scan(&batch.CreatedAt)
	if err != nil {
		return domain.SocialBatch{}, fmt.Errorf("insert social batch: %w", err)
	}
	batch.Status = domain.BatchStatusQueued
	batch.UpdatedAt = batch.CreatedAt
	return batch, nil
}

// GetBatch fetches a batch by id.
func (r *BatchRepositoryPG) GetBatch(ctx context.Context, id string) (domain.SocialBatch, error) {
	var (
		b      domain.SocialBatch
		status string
	)
	err := r.sql.QueryRow(ctx, sqlinline.QSelectSocialBatch, id).Scan(
		&b.ID,
		&b.Target,
		&b.Platforms,
		&b.Language,
		&status,
		&b.ErrorMessage,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if infra.IsNoRows(err) {
			return domain.SocialBatch{}, domain.ErrNotFound
		}
		return domain.SocialBatch{}, fmt.Errorf("select social batch: %w", err)
	}
	b.Status = domain.BatchStatus(status)
	return b, nil
}

// ClaimBatch moves the oldest queued batch to RUNNING. Concurrent workers
// never claim the same row.
func (r *BatchRepositoryPG) ClaimBatch(ctx context.Context) (domain.SocialBatch, bool, error) {
	var (
		b      domain.SocialBatch
		status string
	)
	err := r.sql.QueryRow(ctx, sqlinline.QClaimSocialBatch).Scan(
		&b.ID,
		&b.Target,
		&b.Platforms,
		&b.Language,
		&status,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if infra.IsNoRows(err) {
			return domain.SocialBatch{}, false, nil
		}
		return domain.SocialBatch{}, false, fmt.Errorf("claim social batch: %w", err)
	}
	b.Status = domain.BatchStatus(status)
	return b, true, nil
}

type candidateRow struct {
	Position  int      `json:"position"`
	Lane      string   `json:"lane"`
	Theme     string   `json:"theme"`
	Platform  string   `json:"platform"`
	Hook      string   `json:"hook"`
	Content   string   `json:"content"`
	CTA       string   `json:"cta"`
	Hashtags  []string `json:"hashtags"`
	Signature string   `json:"signature"`
}

// CompleteBatch stores the candidates in order and marks the batch SUCCEEDED.
func (r *BatchRepositoryPG) CompleteBatch(ctx context.Context, id string, candidates []social.Candidate) error {
	rows := make([]candidateRow, len(candidates))
	for i, c := range candidates {
		rows[i] = candidateRow{
			Position:  i,
			Lane:      c.Lane,
			Theme:     c.Theme,
			Platform:  c.Platform,
			Hook:      c.Hook,
			Content:   c.Content,
			CTA:       c.CTA,
			Hashtags:  c.Hashtags,
			Signature: c.Signature(),
		}
	}
	payload, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encode candidates: %w", err)
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QCompleteSocialBatch, id, string(payload))
	if err != nil {
		return fmt.Errorf("complete social batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// FailBatch marks the batch FAILED with message.
func (r *BatchRepositoryPG) FailBatch(ctx context.Context, id string, message string) error {
	if _, err := r.sql.Exec(ctx, sqlinline.QUpdateSocialBatchStatus, id, string(domain.BatchStatusFailed), message); err != nil {
		return fmt.Errorf("fail social batch: %w", err)
	}
	return nil
}

// ListCandidates returns the stored candidates of a batch in generation order.
func (r *BatchRepositoryPG) ListCandidates(ctx context.Context, id string) ([]social.Candidate, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QSelectSocialCandidates, id)
	if err != nil {
		return nil, fmt.Errorf("select social candidates: %w", err)
	}
	defer rows.Close()

	candidates := []social.Candidate{}
	for rows.Next() {
		var c social.Candidate
		if err := rows.Scan(&c.Lane, &c.Theme, &c.Platform, &c.Hook, &c.Content, &c.CTA, &c.Hashtags); err != nil {
			return nil, fmt.Errorf("scan social candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select social candidates: %w", err)
	}
	return candidates, nil
}

var _ social.BatchStore = (*BatchRepositoryPG)(nil)
