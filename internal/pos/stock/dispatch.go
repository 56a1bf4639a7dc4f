package stock

import (
	"context"
	"log/slog"

	"github.com/modaboutique/backoffice/internal/fallback"
)

// Reconcile modes.
const (
	ModeInline = "inline"
	ModeAsync  = "async"
)

// Enqueuer schedules reconciliation on the job queue and returns the task id.
type Enqueuer interface {
	EnqueueStockReconcile(ctx context.Context, orderID int64) (string, error)
}

// Dispatch reports what happened to stock after a payment.
type Dispatch struct {
	Mode   string  `json:"mode"`
	TaskID string  `json:"task_id,omitempty"`
	Result *Result `json:"result,omitempty"`
}

// Dispatcher runs reconciliation inline or hands it to the worker. In async
// mode a failed enqueue falls back to running inline.
type Dispatcher struct {
	service *Service
	queue   Enqueuer
	mode    string
}

// NewDispatcher constructs a dispatcher; a nil queue forces inline mode.
func NewDispatcher(service *Service, queue Enqueuer, mode string) *Dispatcher {
	if queue == nil {
		mode = ModeInline
	}
	if mode != ModeAsync {
		mode = ModeInline
	}
	return &Dispatcher{service: service, queue: queue, mode: mode}
}

// AfterPayment reconciles stock for a freshly paid order.
func (d *Dispatcher) AfterPayment(ctx context.Context, orderID int64) (*Dispatch, error) {
	inline := func(ctx context.Context) (*Dispatch, error) {
		res, err := d.service.Reconcile(ctx, orderID)
		if err != nil {
			return nil, err
		}
		return &Dispatch{Mode: ModeInline, Result: res}, nil
	}
	if d.mode == ModeInline {
		return inline(ctx)
	}
	run, err := fallback.Run(ctx, d.service.deps.Chain("stock.dispatch"),
		fallback.Strategy[*Dispatch]{Name: ModeAsync, Run: func(ctx context.Context) (*Dispatch, error) {
			id, err := d.queue.EnqueueStockReconcile(ctx, orderID)
			if err != nil {
				return nil, err
			}
			return &Dispatch{Mode: ModeAsync, TaskID: id}, nil
		}},
		fallback.Strategy[*Dispatch]{Name: ModeInline, Run: inline},
	)
	if err != nil {
		d.service.deps.Log().WarnContext(ctx, "stock dispatch failed", slog.Int64("order_id", orderID), slog.Any("error", err))
		return nil, err
	}
	return run.Value, nil
}
