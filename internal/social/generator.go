package social

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"cmo/internal/domain"
	"cmo/internal/infra"
)

// MinPerLane is the smallest number of candidates any lane is asked for.
const MinPerLane = 6

// LaneGenerator produces up to count candidates for one lane.
type LaneGenerator interface {
	GenerateLane(ctx context.Context, plan LanePlan, count int) ([]Candidate, error)
}

// LaneGeneratorFunc adapts a function to LaneGenerator.
type LaneGeneratorFunc func(ctx context.Context, plan LanePlan, count int) ([]Candidate, error)

func (f LaneGeneratorFunc) GenerateLane(ctx context.Context, plan LanePlan, count int) ([]Candidate, error) {
	return f(ctx, plan, count)
}

// Generator runs lanes and merges their output into one deduplicated set.
type Generator struct {
	lanes  LaneGenerator
	logger *infra.Logger
}

func NewGenerator(lanes LaneGenerator, logger *infra.Logger) *Generator {
	return &Generator{lanes: lanes, logger: infra.LoggerOrDiscard(logger)}
}

var tracer = infra.Tracer("social")

// PerLaneTarget is the count each of active lanes is asked for when the batch
// should hold target candidates.
func PerLaneTarget(target, active int) int {
	if active <= 0 {
		return 0
	}
	n := (target + active - 1) / active
	if n < MinPerLane {
		n = MinPerLane
	}
	return n
}

// Generate returns up to target unique candidates.
//
// Lanes without sources are skipped. The remaining lanes run concurrently and
// a failing lane only loses its own output. When the merged set is short of
// target, each lane gets one more sequential round with an anti-repetition
// directive, stopping as soon as target is reached. A first round that yields
// nothing at all fails with domain.ErrNoCandidates; a smaller shortfall is
// returned as is.
func (g *Generator) Generate(ctx context.Context, plans []LanePlan, target int) ([]Candidate, error) {
	if target <= 0 {
		return nil, fmt.Errorf("%w: target must be positive", domain.ErrInvalidRequest)
	}
	active := make([]LanePlan, 0, len(plans))
	for _, p := range plans {
		if len(p.Sources) == 0 {
			g.logger.Debug().Str("lane", p.Lane).Msg("lane skipped: no sources")
			continue
		}
		active = append(active, p)
	}
	if len(active) == 0 {
		return nil, fmt.Errorf("%w: no lane has source material", domain.ErrNoCandidates)
	}

	ctx, span := tracer.Start(ctx, "social.Generate")
	defer span.End()
	perLane := PerLaneTarget(target, len(active))
	span.SetAttributes(
		attribute.Int("social.target", target),
		attribute.Int("social.lanes", len(active)),
		attribute.Int("social.per_lane", perLane),
	)

	// Each lane writes only its own slot; merging happens after Wait.
	results := make([][]Candidate, len(active))
	var eg errgroup.Group
	for i, plan := range active {
		eg.Go(func() error {
			out, err := g.lanes.GenerateLane(ctx, plan, perLane)
			if err != nil {
				g.logger.Warn().Err(err).Str("lane", plan.Lane).Int("round", plan.Round).Msg("lane generation failed")
				return nil
			}
			results[i] = tagLane(capLane(out, perLane), plan.Lane)
			return nil
		})
	}
	_ = eg.Wait()

	seen := make(map[string]struct{})
	var merged []Candidate
	for _, out := range results {
		merged = dedupe(merged, seen, out)
	}
	if len(merged) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: every lane came back empty", domain.ErrNoCandidates)
	}

	for _, plan := range active {
		if len(merged) >= target {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		extra := plan.WithAntiRepetition(hooksOf(merged, plan.Lane))
		out, err := g.lanes.GenerateLane(ctx, extra, perLane)
		if err != nil {
			g.logger.Warn().Err(err).Str("lane", plan.Lane).Int("round", extra.Round).Msg("lane backfill failed")
			continue
		}
		before := len(merged)
		merged = dedupe(merged, seen, tagLane(capLane(out, perLane), plan.Lane))
		g.logger.Debug().Str("lane", plan.Lane).Int("added", len(merged)-before).Msg("lane backfill round")
	}

	if len(merged) > target {
		merged = merged[:target]
	}
	span.SetAttributes(attribute.Int("social.candidates", len(merged)))
	if len(merged) < target {
		g.logger.Info().Int("target", target).Int("got", len(merged)).Msg("social batch short of target")
	}
	return merged, nil
}

// capLane keeps at most count candidates from one lane round.
func capLane(out []Candidate, count int) []Candidate {
	if len(out) > count {
		return out[:count]
	}
	return out
}

func tagLane(out []Candidate, lane string) []Candidate {
	for i := range out {
		if out[i].Lane == "" {
			out[i].Lane = lane
		}
	}
	return out
}

func hooksOf(cands []Candidate, lane string) []string {
	var hooks []string
	for _, c := range cands {
		if c.Lane == lane && c.Hook != "" {
			hooks = append(hooks, c.Hook)
		}
	}
	return hooks
}
