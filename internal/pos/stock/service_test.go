package stock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modaboutique/backoffice/internal/erp/erptest"
	"github.com/modaboutique/backoffice/internal/fallback"
	"github.com/modaboutique/backoffice/internal/pos"
	"github.com/modaboutique/backoffice/internal/pos/postest"
	"github.com/modaboutique/backoffice/internal/shared"
)

type clampCount struct{ n int }

func (c *clampCount) AddClamped(n int) { c.n += n }

func newService(t *testing.T, cfg Config) (*Service, *postest.Env) {
	env := postest.New(t)
	return NewService(env.Deps, cfg), env
}

func paidOrder(env *postest.Env, product int64, qty float64) int64 {
	id := env.DraftOrder(env.OpenSession(), product, qty, 50)
	env.ERP.Update(pos.ModelOrder, id, erptest.Record{"state": "paid"})
	return id
}

func onHand(env *postest.Env, product int64) float64 {
	quants := env.ERP.Records(pos.ModelQuant, []any{"product_id", "=", product}, []any{"location_id", "=", erptest.StockLocationID})
	if len(quants) == 0 {
		return 0
	}
	return erptest.Float(quants[0]["quantity"])
}

func TestReconcileThroughPicking(t *testing.T) {
	svc, env := newService(t, Config{})
	orderID := paidOrder(env, erptest.DressID, 2)

	res, err := svc.Reconcile(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, StrategyOrderPicking, res.Strategy)
	require.Len(t, res.PickingIDs, 1)
	assert.Equal(t, "done", env.ERP.Record(pos.ModelPicking, res.PickingIDs[0])["state"])
	assert.Equal(t, 8.0, onHand(env, erptest.DressID))

	again, err := svc.Reconcile(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, StrategyAlreadyDone, again.Strategy)
	assert.Equal(t, 8.0, onHand(env, erptest.DressID))
}

func TestReconcileFallsBackToDirectQuant(t *testing.T) {
	svc, env := newService(t, Config{LocationID: erptest.StockLocationID})
	orderID := paidOrder(env, erptest.DressID, 2)
	env.ERP.Fail(pos.ModelOrder, "_create_order_picking", "picking type not configured")

	res, err := svc.Reconcile(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, StrategyDirectQuant, res.Strategy)
	require.Len(t, res.Adjusted, 1)
	assert.Equal(t, "10", res.Adjusted[0].Before.String())
	assert.Equal(t, "8", res.Adjusted[0].After.String())
	assert.False(t, res.Adjusted[0].Clamped)
	assert.Equal(t, 8.0, onHand(env, erptest.DressID))
	assert.Equal(t, []string{
		"stock.reconcile/order_picking/failure",
		"stock.reconcile/direct_quant/success",
	}, env.Attempts.Seen)
}

func TestDirectQuantClampsAtZero(t *testing.T) {
	clamps := &clampCount{}
	svc, env := newService(t, Config{Clamps: clamps})
	orderID := paidOrder(env, erptest.DressLargeID, 5)
	env.ERP.Fail(pos.ModelPicking, "button_validate", "quantities not available")

	res, err := svc.Reconcile(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, StrategyDirectQuant, res.Strategy)
	require.Len(t, res.Adjusted, 1)
	assert.True(t, res.Adjusted[0].Clamped)
	assert.Equal(t, 0.0, onHand(env, erptest.DressLargeID))
	assert.Equal(t, 1, clamps.n)
}

func TestDirectQuantAllowsNegative(t *testing.T) {
	svc, env := newService(t, Config{AllowNegative: true})
	orderID := paidOrder(env, erptest.DressLargeID, 5)
	env.ERP.Fail(pos.ModelOrder, "_create_order_picking", "boom")

	res, err := svc.Reconcile(context.Background(), orderID)
	require.NoError(t, err)
	assert.False(t, res.Adjusted[0].Clamped)
	assert.Equal(t, -2.0, onHand(env, erptest.DressLargeID))
}

func TestReconcileCreatesMissingQuant(t *testing.T) {
	svc, env := newService(t, Config{})
	orderID := paidOrder(env, erptest.ShirtID, 1)
	for _, q := range env.ERP.Records(pos.ModelQuant, []any{"product_id", "=", erptest.ShirtID}) {
		env.ERP.Update(pos.ModelQuant, erptest.ID(q["id"]), erptest.Record{"location_id": erptest.CustomerLocID})
	}
	env.ERP.Fail(pos.ModelOrder, "_create_order_picking", "boom")

	res, err := svc.Reconcile(context.Background(), orderID)
	require.NoError(t, err)
	require.Len(t, res.Adjusted, 1)
	assert.True(t, res.Adjusted[0].Clamped)
	assert.Len(t, env.ERP.Records(pos.ModelQuant, []any{"product_id", "=", erptest.ShirtID}), 2)
}

func TestReconcileRejectsDraftOrder(t *testing.T) {
	svc, env := newService(t, Config{})
	orderID := env.DraftOrder(env.OpenSession(), erptest.DressID, 1, 50)

	_, err := svc.Reconcile(context.Background(), orderID)
	require.ErrorIs(t, err, ErrOrderNotPaid)
	require.ErrorIs(t, err, shared.ErrConflict)

	_, err = svc.Reconcile(context.Background(), 999)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestReconcileServiceOnlyOrder(t *testing.T) {
	svc, env := newService(t, Config{})
	orderID := paidOrder(env, erptest.AlterationID, 1)

	res, err := svc.Reconcile(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, StrategyNothingToDo, res.Strategy)
	assert.Zero(t, env.ERP.Calls(pos.ModelOrder, "_create_order_picking"))
}

func TestAdjust(t *testing.T) {
	svc, env := newService(t, Config{})
	ctx := context.Background()

	res, err := svc.Adjust(ctx, AdjustInput{ProductID: erptest.DressID, Quantity: ptr(20.0)})
	require.NoError(t, err)
	assert.Equal(t, "apply_inventory", res.Strategy)
	assert.Equal(t, "10", res.Before.String())
	assert.Equal(t, 20.0, onHand(env, erptest.DressID))

	env.ERP.Fail(pos.ModelQuant, "action_apply_inventory", "access denied on inventory mode")
	res, err = svc.Adjust(ctx, AdjustInput{ProductID: erptest.DressID, Delta: ptr(-25.0)})
	require.NoError(t, err)
	assert.Equal(t, "direct_write", res.Strategy)
	assert.True(t, res.Clamped)
	assert.Equal(t, 0.0, onHand(env, erptest.DressID))
}

func TestAdjustValidation(t *testing.T) {
	svc, _ := newService(t, Config{})
	ctx := context.Background()

	_, err := svc.Adjust(ctx, AdjustInput{ProductID: erptest.DressID})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Adjust(ctx, AdjustInput{ProductID: erptest.DressID, Quantity: ptr(1.0), Delta: ptr(1.0)})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Adjust(ctx, AdjustInput{ProductID: 999, Quantity: ptr(1.0)})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

type fakeQueue struct {
	err    error
	orders []int64
}

func (q *fakeQueue) EnqueueStockReconcile(_ context.Context, orderID int64) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	q.orders = append(q.orders, orderID)
	return "task-1", nil
}

func TestDispatcherModes(t *testing.T) {
	svc, env := newService(t, Config{})
	ctx := context.Background()
	orderID := paidOrder(env, erptest.DressID, 1)

	queue := &fakeQueue{}
	out, err := NewDispatcher(svc, queue, ModeAsync).AfterPayment(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, ModeAsync, out.Mode)
	assert.Equal(t, "task-1", out.TaskID)
	assert.Equal(t, []int64{orderID}, queue.orders)
	assert.Equal(t, 10.0, onHand(env, erptest.DressID))

	queue.err = errors.New("redis down")
	out, err = NewDispatcher(svc, queue, ModeAsync).AfterPayment(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, ModeInline, out.Mode)
	assert.Equal(t, 9.0, onHand(env, erptest.DressID))

	out, err = NewDispatcher(svc, nil, ModeAsync).AfterPayment(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, ModeInline, out.Mode)
	assert.Equal(t, StrategyAlreadyDone, out.Result.Strategy)
}

func ptr[T any](v T) *T { return &v }

func paidOrderOf(env *postest.Env, qty map[int64]float64, products ...int64) int64 {
	var lines []any
	for _, p := range products {
		lines = append(lines, []any{0, 0, map[string]any{"product_id": p, "qty": qty[p], "price_unit": 50.0}})
	}
	return env.ERP.Seed(pos.ModelOrder, erptest.Record{
		"session_id": env.OpenSession(),
		"state":      "paid",
		"lines":      lines,
	})
}

// moveShirtQuantAway leaves the shirt without a quant at the stock location,
// so the direct path has to create one.
func moveShirtQuantAway(env *postest.Env) {
	for _, q := range env.ERP.Records(pos.ModelQuant, []any{"product_id", "=", erptest.ShirtID}) {
		env.ERP.Update(pos.ModelQuant, erptest.ID(q["id"]), erptest.Record{"location_id": erptest.CustomerLocID})
	}
}

func TestDirectQuantResumesAfterPartialWrite(t *testing.T) {
	env := postest.New(t)
	svc := NewService(env.Deps, Config{
		LocationID: erptest.StockLocationID,
		Progress:   shared.NewProgress(env.Client, time.Hour),
	})
	orderID := paidOrderOf(env, map[int64]float64{erptest.DressID: 2, erptest.ShirtID: 1}, erptest.DressID, erptest.ShirtID)
	moveShirtQuantAway(env)
	env.ERP.Fail(pos.ModelOrder, "_create_order_picking", "picking type not configured")
	env.ERP.Fail(pos.ModelQuant, "create", "concurrent update")

	_, err := svc.Reconcile(context.Background(), orderID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, fallback.ErrStopped)
	assert.Equal(t, 8.0, onHand(env, erptest.DressID))

	env.ERP.Fail(pos.ModelQuant, "create", "")
	env.ERP.Fail(pos.ModelOrder, "_create_order_picking", "")
	res, err := svc.Reconcile(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, StrategyDirectQuant, res.Strategy)
	require.Len(t, res.Adjusted, 1)
	assert.Equal(t, erptest.ShirtID, res.Adjusted[0].ProductID)
	assert.Equal(t, 8.0, onHand(env, erptest.DressID))
	assert.Equal(t, 1, env.ERP.Calls(pos.ModelOrder, "_create_order_picking"))

	again, err := svc.Reconcile(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, StrategyAlreadyDone, again.Strategy)
	assert.Equal(t, 8.0, onHand(env, erptest.DressID))
}

func TestDirectQuantRerunDoesNotDecrementAgain(t *testing.T) {
	env := postest.New(t)
	svc := NewService(env.Deps, Config{
		LocationID: erptest.StockLocationID,
		Progress:   shared.NewProgress(env.Client, time.Hour),
	})
	orderID := paidOrder(env, erptest.DressID, 2)
	env.ERP.Fail(pos.ModelOrder, "_create_order_picking", "picking type not configured")

	res, err := svc.Reconcile(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, StrategyDirectQuant, res.Strategy)

	again, err := svc.Reconcile(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, StrategyAlreadyDone, again.Strategy)
	assert.Equal(t, 8.0, onHand(env, erptest.DressID))
}

func TestPartialDirectQuantStopsWithoutProgress(t *testing.T) {
	svc, env := newService(t, Config{LocationID: erptest.StockLocationID})
	orderID := paidOrderOf(env, map[int64]float64{erptest.DressID: 2, erptest.ShirtID: 1}, erptest.DressID, erptest.ShirtID)
	moveShirtQuantAway(env)
	env.ERP.Fail(pos.ModelOrder, "_create_order_picking", "picking type not configured")
	env.ERP.Fail(pos.ModelQuant, "create", "concurrent update")

	_, err := svc.Reconcile(context.Background(), orderID)
	require.ErrorIs(t, err, fallback.ErrStopped)
	assert.Equal(t, 8.0, onHand(env, erptest.DressID))
}
