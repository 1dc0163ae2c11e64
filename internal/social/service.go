package social

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cmo/internal/domain"
	"cmo/internal/infra"
)

// Sources read for every queued batch.
const (
	batchBlogLimit      = 20
	batchChangelogLimit = 20
)

// finishTimeout bounds the final status write, which runs even after the
// worker context is cancelled.
const finishTimeout = 10 * time.Second

// BatchStore persists social batches and their candidates.
type BatchStore interface {
	CreateBatch(ctx context.Context, batch domain.SocialBatch) (domain.SocialBatch, error)
	GetBatch(ctx context.Context, id string) (domain.SocialBatch, error)
	// ClaimBatch marks the oldest queued batch as running. A batch left
	// running by a worker that died is claimed again once it is stale. ok is
	// false when the queue is empty.
	ClaimBatch(ctx context.Context) (batch domain.SocialBatch, ok bool, err error)
	CompleteBatch(ctx context.Context, id string, candidates []Candidate) error
	FailBatch(ctx context.Context, id string, message string) error
	ListCandidates(ctx context.Context, id string) ([]Candidate, error)
}

// BatchView is a batch together with its candidates.
type BatchView struct {
	domain.SocialBatch
	Candidates []Candidate `json:"candidates"`
}

// BatchService queues social batches and processes them in the worker.
type BatchService struct {
	store     BatchStore
	posts     domain.PostRepository
	changelog domain.ChangelogRepository
	builder   *BatchBuilder
	logger    *infra.Logger
	newID     func() string
}

func NewBatchService(store BatchStore, posts domain.PostRepository, changelog domain.ChangelogRepository, builder *BatchBuilder, logger *infra.Logger) *BatchService {
	return &BatchService{
		store:     store,
		posts:     posts,
		changelog: changelog,
		builder:   builder,
		logger:    infra.LoggerOrDiscard(logger),
		newID:     func() string { return uuid.NewString() },
	}
}

// Enqueue validates req and stores it as a queued batch.
func (s *BatchService) Enqueue(ctx context.Context, req BatchRequest) (domain.SocialBatch, error) {
	req, err := req.Normalize()
	if err != nil {
		return domain.SocialBatch{}, err
	}
	batch, err := s.store.CreateBatch(ctx, domain.SocialBatch{
		ID:        s.newID(),
		Target:    req.Target,
		Platforms: req.Platforms,
		Language:  req.Language,
		Status:    domain.BatchStatusQueued,
	})
	if err != nil {
		return domain.SocialBatch{}, fmt.Errorf("enqueue social batch: %w", err)
	}
	s.logger.Info().Str("batch_id", batch.ID).Int("target", batch.Target).Msg("social batch queued")
	return batch, nil
}

// Get returns a batch and, once it succeeded, its candidates.
func (s *BatchService) Get(ctx context.Context, id string) (BatchView, error) {
	if _, err := uuid.Parse(id); err != nil {
		return BatchView{}, fmt.Errorf("%w: batch id %q", domain.ErrInvalidRequest, id)
	}
	batch, err := s.store.GetBatch(ctx, id)
	if err != nil {
		return BatchView{}, err
	}
	view := BatchView{SocialBatch: batch, Candidates: []Candidate{}}
	if batch.Status != domain.BatchStatusSucceeded {
		return view, nil
	}
	cands, err := s.store.ListCandidates(ctx, id)
	if err != nil {
		return BatchView{}, err
	}
	view.Candidates = cands
	return view, nil
}

// ProcessNext claims and builds one queued batch. It reports false when the
// queue was empty. A failed build marks the batch FAILED and is not returned
// as an error.
func (s *BatchService) ProcessNext(ctx context.Context) (bool, error) {
	batch, ok, err := s.store.ClaimBatch(ctx)
	if err != nil {
		return false, fmt.Errorf("claim social batch: %w", err)
	}
	if !ok {
		return false, nil
	}
	log := s.logger.With().Str("batch_id", batch.ID).Logger()
	log.Info().Int("target", batch.Target).Msg("social batch claimed")

	cands, buildErr := s.build(ctx, BatchRequest{
		Target:    batch.Target,
		Platforms: batch.Platforms,
		Language:  batch.Language,
	})
	// A shutdown mid-build must still leave the batch in a terminal state.
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()
	if buildErr != nil {
		msg := buildErr.Error()
		if ctx.Err() != nil {
			msg = "worker stopped before the batch finished; enqueue it again"
		}
		log.Error().Err(buildErr).Msg("social batch failed")
		if err := s.store.FailBatch(finishCtx, batch.ID, msg); err != nil {
			return true, fmt.Errorf("mark batch %s failed: %w", batch.ID, err)
		}
		return true, nil
	}
	if err := s.store.CompleteBatch(finishCtx, batch.ID, cands); err != nil {
		return true, fmt.Errorf("store batch %s: %w", batch.ID, err)
	}
	log.Info().Int("candidates", len(cands)).Msg("social batch succeeded")
	return true, nil
}

// Generate builds a batch right away from the latest blog and changelog
// material. Nothing is persisted.
func (s *BatchService) Generate(ctx context.Context, req BatchRequest) ([]Candidate, error) {
	req, err := req.Normalize()
	if err != nil {
		return nil, err
	}
	return s.build(ctx, req)
}

func (s *BatchService) build(ctx context.Context, req BatchRequest) ([]Candidate, error) {
	posts, err := s.posts.RecentPosts(ctx, batchBlogLimit)
	if err != nil {
		s.logger.Warn().Err(err).Str("source", "blog").Msg("social batch source failed")
		posts = nil
	}
	entries, err := s.changelog.RecentChangelog(ctx, batchChangelogLimit)
	if err != nil {
		s.logger.Warn().Err(err).Str("source", "changelog").Msg("social batch source failed")
		entries = nil
	}
	req.Blog = posts
	req.Changelog = entries
	return s.builder.Build(ctx, req)
}

// Run processes queued batches until ctx is cancelled, sleeping interval
// whenever the queue is empty or claiming fails.
func (s *BatchService) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	s.logger.Info().Dur("interval", interval).Msg("social batch worker started")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		processed, err := s.ProcessNext(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			s.logger.Error().Err(err).Msg("social batch worker iteration failed")
		}
		if processed && err == nil {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
