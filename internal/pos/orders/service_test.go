package orders

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modaboutique/backoffice/internal/erp/erptest"
	"github.com/modaboutique/backoffice/internal/pos"
	"github.com/modaboutique/backoffice/internal/pos/postest"
	"github.com/modaboutique/backoffice/internal/pos/sessions"
	"github.com/modaboutique/backoffice/internal/shared"
)

func newService(t *testing.T) (*Service, *postest.Env) {
	env := postest.New(t)
	return NewService(env.Deps, sessions.NewService(env.Deps, erptest.ConfigID)), env
}

func ptr[T any](v T) *T { return &v }

func TestCreateWithDiscount(t *testing.T) {
	svc, env := newService(t)
	sessionID := env.OpenSession()

	order, err := svc.Create(context.Background(), CreateOrderInput{
		Lines: []LineInput{{ProductID: erptest.DressID, Qty: ptr(2.0), Discount: 10}},
	})
	require.NoError(t, err)
	assert.Equal(t, StateDraft, order.State)
	assert.Equal(t, sessionID, order.Session.ID)
	assert.Equal(t, "90.00", order.AmountTotal.StringFixed(2))
	require.NotNil(t, order.ClientTotal)
	assert.Equal(t, "90.00", order.ClientTotal.StringFixed(2))
	require.Len(t, order.Lines, 1)
	assert.Equal(t, "Vestido lino (M)", order.Lines[0].Description.String())
	assert.Equal(t, "50", order.Lines[0].PriceUnit.String())
	assert.Equal(t, "90", order.Lines[0].PriceSubtotal.String())
}

func TestCreateAppliesTaxesAndDefaults(t *testing.T) {
	svc, env := newService(t)
	env.OpenSession()

	order, err := svc.Create(context.Background(), CreateOrderInput{
		Lines: []LineInput{
			{ProductID: erptest.ShirtID},
			{ProductID: erptest.DressID, PriceUnit: ptr(45.0)},
		},
		Note: "regalo",
	})
	require.NoError(t, err)
	assert.Equal(t, "141.80", order.AmountTotal.StringFixed(2))
	assert.Equal(t, "16.80", order.AmountTax.StringFixed(2))
	assert.Equal(t, "regalo", order.Note)
	require.Len(t, order.Lines, 2)
	assert.Equal(t, []int64{erptest.TaxID}, order.Lines[0].TaxIDs)
	assert.Equal(t, "1", order.Lines[0].Qty.String())
}

func TestCreateValidation(t *testing.T) {
	svc, env := newService(t)
	env.OpenSession()
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateOrderInput{})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, CreateOrderInput{Lines: []LineInput{{ProductID: 999}}})
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Empty(t, env.ERP.Records(pos.ModelOrder))
}

func TestCreateWithoutSession(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Create(context.Background(), CreateOrderInput{Lines: []LineInput{{ProductID: erptest.DressID}}})
	require.ErrorIs(t, err, sessions.ErrNoActiveSession)
}

func TestGetMissingOrder(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Get(context.Background(), 404)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestLineMutations(t *testing.T) {
	svc, env := newService(t)
	ctx := context.Background()
	sessionID := env.OpenSession()
	orderID := env.DraftOrder(sessionID, erptest.DressID, 2, 50)

	order, err := svc.AddLine(ctx, orderID, LineInput{ProductID: erptest.ShirtID})
	require.NoError(t, err)
	require.Len(t, order.Lines, 2)
	assert.Equal(t, "196.80", order.AmountTotal.StringFixed(2))

	order, err = svc.RemoveLine(ctx, orderID, order.Lines[1].ID)
	require.NoError(t, err)
	require.Len(t, order.Lines, 1)
	assert.Equal(t, "100.00", order.AmountTotal.StringFixed(2))

	_, err = svc.RemoveLine(ctx, orderID, 9999)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestApplyDiscount(t *testing.T) {
	svc, env := newService(t)
	ctx := context.Background()
	sessionID := env.OpenSession()
	orderID := env.DraftOrder(sessionID, erptest.DressID, 2, 50)

	order, err := svc.ApplyDiscount(ctx, orderID, DiscountInput{Type: DiscountFixed, Value: 10})
	require.NoError(t, err)
	assert.Equal(t, "10", order.Lines[0].Discount.String())
	assert.Equal(t, "90.00", order.AmountTotal.StringFixed(2))

	order, err = svc.ApplyDiscount(ctx, orderID, DiscountInput{Type: DiscountPercentage, Value: 25, LineID: ptr(order.Lines[0].ID)})
	require.NoError(t, err)
	assert.Equal(t, "75.00", order.AmountTotal.StringFixed(2))

	_, err = svc.ApplyDiscount(ctx, orderID, DiscountInput{Type: "bogus", Value: 1})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestMutationsRequireDraft(t *testing.T) {
	svc, env := newService(t)
	ctx := context.Background()
	sessionID := env.OpenSession()
	orderID := env.DraftOrder(sessionID, erptest.DressID, 1, 50)
	env.ERP.Update(pos.ModelOrder, orderID, erptest.Record{"state": "paid"})

	_, err := svc.AddLine(ctx, orderID, LineInput{ProductID: erptest.ShirtID})
	require.ErrorIs(t, err, ErrOrderNotEditable)
	require.ErrorIs(t, err, shared.ErrConflict)

	_, err = svc.ApplyDiscount(ctx, orderID, DiscountInput{Type: DiscountPercentage, Value: 5})
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestListFiltersByState(t *testing.T) {
	svc, env := newService(t)
	sessionID := env.OpenSession()
	first := env.DraftOrder(sessionID, erptest.DressID, 1, 50)
	second := env.DraftOrder(sessionID, erptest.ShirtID, 1, 80)
	env.ERP.Update(pos.ModelOrder, first, erptest.Record{"state": "paid"})

	all, err := svc.List(context.Background(), ListFilter{SessionID: sessionID})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second, all[0].ID)

	paid, err := svc.List(context.Background(), ListFilter{State: "paid"})
	require.NoError(t, err)
	require.Len(t, paid, 1)
	assert.Equal(t, first, paid[0].ID)
}
