package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/modaboutique/backoffice/internal/fallback"
	jobmetrics "github.com/modaboutique/backoffice/internal/jobs"
	"github.com/modaboutique/backoffice/internal/pos/stock"
	"github.com/modaboutique/backoffice/internal/shared"
)

// Reconciler moves stock for a paid order.
type Reconciler interface {
	Reconcile(ctx context.Context, orderID int64) (*stock.Result, error)
}

// StockReconcileJob processes TaskStockReconcile tasks.
type StockReconcileJob struct {
	Reconciler Reconciler
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
}

// NewStockReconcileJob constructs the job handler.
func NewStockReconcileJob(reconciler Reconciler, logger *slog.Logger, metrics *jobmetrics.Metrics) *StockReconcileJob {
	return &StockReconcileJob{Reconciler: reconciler, Logger: logger, Metrics: metrics}
}

// Handle executes the reconcile job. Orders that are missing or not paid
// are not retried, nor are runs stopped after moving part of the stock in a
// way that cannot be resumed. Lock contention and ERP failures are retried.
func (j *StockReconcileJob) Handle(ctx context.Context, task *asynq.Task) (err error) {
	if j == nil || j.Reconciler == nil {
		return errors.New("stock reconcile: dependencies not configured")
	}
	var payload StockReconcilePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil || payload.OrderID <= 0 {
		return fmt.Errorf("stock reconcile: bad payload: %w", asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(TaskStockReconcile)
	defer func() { err = tracker.End(err) }()

	res, err := j.Reconciler.Reconcile(ctx, payload.OrderID)
	if err != nil {
		j.log().ErrorContext(ctx, "stock reconcile failed", slog.Int64("order_id", payload.OrderID), slog.Any("error", err))
		if errors.Is(err, shared.ErrNotFound) || errors.Is(err, stock.ErrOrderNotPaid) || errors.Is(err, fallback.ErrStopped) {
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return err
	}
	j.Metrics.AddStrategy(res.Strategy)
	j.log().InfoContext(ctx, "stock reconciled",
		slog.Int64("order_id", payload.OrderID),
		slog.String("strategy", res.Strategy),
		slog.Int("adjusted", len(res.Adjusted)),
	)
	return nil
}

func (j *StockReconcileJob) log() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}
