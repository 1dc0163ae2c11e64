// Package poller awaits externally executing jobs with bounded exponential
// backoff.
package poller

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"cmo/internal/infra"
)

const (
	DefaultInitialDelay = 2 * time.Second
	DefaultMaxDelay     = 6 * time.Second
	DefaultMaxAttempts  = 40

	// Multiplier is applied to the delay after every unsuccessful attempt.
	Multiplier = 1.5
)

// ErrEmptyPayload is returned when a probe reports ready without a payload.
var ErrEmptyPayload = errors.New("poller: probe reported ready with an empty payload")

// Result is the outcome of a single probe, and of a whole poll.
type Result[T any] struct {
	Ready   bool
	Payload T
}

// Probe checks the status of a job once.
type Probe[T any] func(ctx context.Context) (Result[T], error)

// Options configures a poll. Zero values take the package defaults.
type Options struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int
	// Name labels the span and log lines of the poll.
	Name   string
	Logger *infra.Logger
	// Sleep waits between attempts. Tests replace it to avoid real waits.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (o Options) withDefaults() Options {
	if o.InitialDelay <= 0 {
		o.InitialDelay = DefaultInitialDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = DefaultMaxDelay
	}
	if o.MaxDelay < o.InitialDelay {
		o.MaxDelay = o.InitialDelay
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.Name == "" {
		o.Name = "job"
	}
	if o.Sleep == nil {
		o.Sleep = sleepContext
	}
	o.Logger = infra.LoggerOrDiscard(o.Logger)
	return o
}

var tracer = infra.Tracer("poller")

// Poll calls probe until it reports ready or MaxAttempts probes were made.
//
// Exhausting the budget is not an error: Poll returns a Result with Ready
// false and the caller decides how to report the timeout. A probe error ends
// the poll immediately and is returned as is, wrapped with the attempt number.
// Cancelling ctx interrupts the wait between attempts.
func Poll[T any](ctx context.Context, probe Probe[T], opts Options) (Result[T], error) {
	opts = opts.withDefaults()
	ctx, span := tracer.Start(ctx, "poller.Poll", trace.WithAttributes(
		attribute.String("poll.name", opts.Name),
		attribute.Int("poll.max_attempts", opts.MaxAttempts),
	))
	defer span.End()

	schedule := newSchedule(opts)
	log := opts.Logger.With().Str("poll", opts.Name).Logger()

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		res, err := probe(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "probe failed")
			return Result[T]{}, fmt.Errorf("poll %s attempt %d: %w", opts.Name, attempt, err)
		}
		if res.Ready {
			span.SetAttributes(attribute.Int("poll.attempts", attempt))
			if isEmpty(res.Payload) {
				span.SetStatus(codes.Error, "empty payload")
				return Result[T]{}, fmt.Errorf("poll %s attempt %d: %w", opts.Name, attempt, ErrEmptyPayload)
			}
			log.Debug().Int("attempt", attempt).Msg("poll ready")
			return res, nil
		}
		if attempt == opts.MaxAttempts {
			break
		}

		delay := schedule.NextBackOff()
		log.Debug().Int("attempt", attempt).Dur("delay", delay).Msg("poll not ready")
		if err := opts.Sleep(ctx, delay); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "wait interrupted")
			return Result[T]{}, err
		}
	}

	span.SetAttributes(attribute.Int("poll.attempts", opts.MaxAttempts), attribute.Bool("poll.timed_out", true))
	log.Debug().Int("attempts", opts.MaxAttempts).Msg("poll exhausted")
	return Result[T]{}, nil
}

// Delays returns the first n waits Poll would perform with opts.
func Delays(opts Options, n int) []time.Duration {
	opts = opts.withDefaults()
	schedule := newSchedule(opts)
	out := make([]time.Duration, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, schedule.NextBackOff())
	}
	return out
}

func newSchedule(opts Options) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = opts.InitialDelay
	b.MaxInterval = opts.MaxDelay
	b.Multiplier = Multiplier
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// isEmpty reports whether v is a zero value or an empty slice, map or string.
func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.String, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	default:
		return rv.IsZero()
	}
}
