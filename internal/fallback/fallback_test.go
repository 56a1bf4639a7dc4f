package fallback

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type attempts []string

func (a *attempts) RecordAttempt(chain, strategy, outcome string) {
	*a = append(*a, chain+"/"+strategy+"/"+outcome)
}

func TestRunStopsAtFirstSuccess(t *testing.T) {
	var rec attempts
	ran := 0
	res, err := Run(context.Background(), Chain{Name: "session.open", Recorder: &rec},
		Strategy[int64]{Name: "open_session_cb", Run: func(context.Context) (int64, error) {
			ran++
			return 0, errors.New("method does not exist")
		}},
		Strategy[int64]{Name: "open_ui", Run: func(context.Context) (int64, error) {
			ran++
			return 42, nil
		}},
		Strategy[int64]{Name: "direct_create", Run: func(context.Context) (int64, error) {
			ran++
			return 0, nil
		}},
	)
	require.NoError(t, err)
	assert.Equal(t, int64(42), res.Value)
	assert.Equal(t, "open_ui", res.Strategy)
	assert.Equal(t, 2, ran)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "open_session_cb", res.Failures[0].Strategy)
	assert.Equal(t, attempts{"session.open/open_session_cb/failure", "session.open/open_ui/success"}, rec)
}

func TestRunExhaustedJoinsErrors(t *testing.T) {
	first := errors.New("picking failed")
	second := errors.New("quant write failed")
	_, err := Do(context.Background(), Chain{Name: "stock"},
		Step("order_picking", func(context.Context) error { return first }),
		Step("direct_quant", func(context.Context) error { return second }),
	)
	require.ErrorIs(t, err, ErrExhausted)
	require.ErrorIs(t, err, first)
	require.ErrorIs(t, err, second)
	assert.Contains(t, err.Error(), "order_picking")
}

func TestRunStopAborts(t *testing.T) {
	sentinel := errors.New("partially validated")
	called := false
	_, err := Do(context.Background(), Chain{Name: "stock"},
		Step("order_picking", func(context.Context) error { return Stop(sentinel) }),
		Step("direct_quant", func(context.Context) error { called = true; return nil }),
	)
	require.ErrorIs(t, err, sentinel)
	assert.ErrorIs(t, err, ErrStopped)
	assert.NotErrorIs(t, err, ErrExhausted)
	assert.False(t, called)
}

func TestRunSkipFallsThrough(t *testing.T) {
	var rec attempts
	name, err := Do(context.Background(), Chain{Name: "pay", Recorder: &rec},
		Step("add_payment", func(context.Context) error { return ErrSkip }),
		Step("direct_create", func(context.Context) error { return nil }),
	)
	require.NoError(t, err)
	assert.Equal(t, "direct_create", name)
	assert.Equal(t, attempts{"pay/add_payment/skipped", "pay/direct_create/success"}, rec)
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	_, err := Do(ctx, Chain{Name: "close"},
		Step("standard_close", func(context.Context) error { cancel(); return errors.New("timeout") }),
		Step("direct_write", func(context.Context) error { t.Fatal("must not run"); return nil }),
	)
	require.ErrorIs(t, err, context.Canceled)
}
