package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStockReconcile moves stock for a paid POS order.
	TaskStockReconcile = "stock:reconcile"

	stockReconcileMaxRetry = 3
	stockReconcileTimeout  = 2 * time.Minute
)

// StockReconcilePayload identifies the order whose stock must be moved.
type StockReconcilePayload struct {
	OrderID int64 `json:"order_id"`
}

// StockReconcileTaskID is unique per order so a pending task is not queued twice.
func StockReconcileTaskID(orderID int64) string {
	return fmt.Sprintf("stock-reconcile-%d", orderID)
}

// NewStockReconcileTask constructs an Asynq task.
func NewStockReconcileTask(orderID int64) (*asynq.Task, error) {
	if orderID <= 0 {
		return nil, fmt.Errorf("stock reconcile: invalid order id %d", orderID)
	}
	body, err := json.Marshal(StockReconcilePayload{OrderID: orderID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockReconcile, body,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(stockReconcileMaxRetry),
		asynq.Timeout(stockReconcileTimeout),
		asynq.TaskID(StockReconcileTaskID(orderID)),
	), nil
}
