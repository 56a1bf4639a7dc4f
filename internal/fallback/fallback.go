// Package fallback runs ordered alternative strategies against an unreliable
// upstream and reports which one succeeded.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

var (
	// ErrExhausted is returned when every strategy failed or was skipped.
	ErrExhausted = errors.New("all strategies failed")
	// ErrSkip marks a strategy as not applicable; the next one runs.
	ErrSkip = errors.New("strategy not applicable")
	// ErrStopped is wrapped by the error of a chain aborted through Stop.
	ErrStopped = errors.New("chain stopped")
)

// Outcome labels recorded per attempt.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
	OutcomeStopped = "stopped"
)

// Recorder receives one observation per attempt.
type Recorder interface {
	RecordAttempt(chain, strategy, outcome string)
}

// Strategy is one named way of achieving the chain's goal.
type Strategy[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// Chain carries the name and sinks shared by a family of strategies.
type Chain struct {
	Name     string
	Logger   *slog.Logger
	Recorder Recorder
}

// Failure is a strategy error kept for the caller.
type Failure struct {
	Strategy string
	Err      error
}

// Result is the outcome of a successful run.
type Result[T any] struct {
	Value    T
	Strategy string
	Failures []Failure
}

type stopError struct{ err error }

func (e *stopError) Error() string { return e.err.Error() }
func (e *stopError) Unwrap() error { return e.err }

// Stop wraps err so that the chain aborts instead of trying the next strategy.
func Stop(err error) error {
	if err == nil {
		return nil
	}
	return &stopError{err: err}
}

// Run tries strategies in order and returns the first success.
func Run[T any](ctx context.Context, chain Chain, strategies ...Strategy[T]) (Result[T], error) {
	logger := chain.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var res Result[T]
	var errs []error
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("%s: %w", chain.Name, err)
		}
		value, err := s.Run(ctx)
		if err == nil {
			chain.record(s.Name, OutcomeSuccess)
			res.Value = value
			res.Strategy = s.Name
			if len(res.Failures) > 0 {
				logger.InfoContext(ctx, "fallback strategy succeeded",
					slog.String("chain", chain.Name),
					slog.String("strategy", s.Name),
					slog.Int("failed_before", len(res.Failures)))
			}
			return res, nil
		}

		var stop *stopError
		switch {
		case errors.As(err, &stop):
			chain.record(s.Name, OutcomeStopped)
			logger.WarnContext(ctx, "fallback chain stopped",
				slog.String("chain", chain.Name),
				slog.String("strategy", s.Name),
				slog.Any("error", stop.err))
			return res, fmt.Errorf("%s: %s: %w: %w", chain.Name, s.Name, ErrStopped, stop.err)
		case errors.Is(err, ErrSkip):
			chain.record(s.Name, OutcomeSkipped)
			logger.DebugContext(ctx, "fallback strategy skipped",
				slog.String("chain", chain.Name),
				slog.String("strategy", s.Name),
				slog.Any("reason", err))
		default:
			chain.record(s.Name, OutcomeFailure)
			logger.WarnContext(ctx, "fallback strategy failed",
				slog.String("chain", chain.Name),
				slog.String("strategy", s.Name),
				slog.Any("error", err))
		}
		res.Failures = append(res.Failures, Failure{Strategy: s.Name, Err: err})
		errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
	}
	return res, fmt.Errorf("%s: %w: %w", chain.Name, ErrExhausted, errors.Join(errs...))
}

func (c Chain) record(strategy, outcome string) {
	if c.Recorder != nil {
		c.Recorder.RecordAttempt(c.Name, strategy, outcome)
	}
}

// Do runs strategies that produce no value.
func Do(ctx context.Context, chain Chain, strategies ...Strategy[struct{}]) (string, error) {
	res, err := Run(ctx, chain, strategies...)
	return res.Strategy, err
}

// Step adapts a function without a result into a Strategy.
func Step(name string, fn func(ctx context.Context) error) Strategy[struct{}] {
	return Strategy[struct{}]{Name: name, Run: func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}}
}
