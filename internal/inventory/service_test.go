package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modaboutique/backoffice/internal/erp/erptest"
	"github.com/modaboutique/backoffice/internal/pos"
	"github.com/modaboutique/backoffice/internal/pos/postest"
	"github.com/modaboutique/backoffice/internal/pos/stock"
	"github.com/modaboutique/backoffice/internal/shared"
)

func newService(t *testing.T) (*Service, *postest.Env) {
	env := postest.New(t)
	return NewService(env.Deps, stock.NewService(env.Deps, stock.Config{})), env
}

func TestLevelsAggregatesInternalQuants(t *testing.T) {
	svc, env := newService(t)
	env.ERP.Seed(pos.ModelLocation, erptest.Record{"id": 20, "name": "Trastienda", "usage": "internal"})
	env.ERP.Seed(pos.ModelQuant, erptest.Record{"product_id": erptest.DressID, "location_id": 20, "quantity": 4.0})
	env.ERP.Seed(pos.ModelQuant, erptest.Record{"product_id": erptest.ShirtID, "location_id": erptest.CustomerLocID, "quantity": 7.0})

	levels, page, err := svc.Levels(context.Background(), LevelFilter{})
	require.NoError(t, err)
	require.Len(t, levels, 3)
	assert.Equal(t, 3, page.Total)

	dress := levels[0]
	assert.Equal(t, erptest.DressID, dress.ProductID)
	assert.Equal(t, "Vestido lino (M)", dress.Product)
	assert.Equal(t, "VL-M", dress.SKU)
	assert.Equal(t, "14", dress.Qty.String())
	assert.Len(t, dress.Locations, 2)

	shirt := levels[1]
	assert.Equal(t, "5", shirt.Qty.String(), "customer location is not on hand")
}

func TestLevelsFilterAndPaging(t *testing.T) {
	svc, _ := newService(t)

	levels, _, err := svc.Levels(context.Background(), LevelFilter{ProductIDs: []int64{erptest.ShirtID}})
	require.NoError(t, err)
	require.Len(t, levels, 1)
	assert.Equal(t, "Camisa seda", levels[0].Product)

	levels, page, err := svc.Levels(context.Background(), LevelFilter{Page: 2, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, levels, 1)
	assert.Equal(t, erptest.DressLargeID, levels[0].ProductID)
}

func TestDetailBuildsStockCard(t *testing.T) {
	svc, env := newService(t)
	env.ERP.Seed(pos.ModelLocation, erptest.Record{"id": 30, "name": "Proveedores", "usage": "supplier"})
	env.ERP.Seed(pos.ModelMove, erptest.Record{
		"product_id": erptest.DressID, "state": "done", "reference": "WH/IN/00001",
		"location_id": 30, "location_dest_id": erptest.StockLocationID, "quantity": 4.0,
	})
	orderID := env.DraftOrder(env.OpenSession(), erptest.DressID, 2, 50)
	env.ERP.Update(pos.ModelOrder, orderID, erptest.Record{"state": "paid"})
	_, err := stock.NewService(env.Deps, stock.Config{}).Reconcile(context.Background(), orderID)
	require.NoError(t, err)

	detail, err := svc.Detail(context.Background(), erptest.DressID, StockCardFilter{})
	require.NoError(t, err)
	assert.Equal(t, "8", detail.Qty.String())
	require.Len(t, detail.Card, 2)

	in, out := detail.Card[0], detail.Card[1]
	assert.Equal(t, "WH/IN/00001", in.Reference)
	assert.Equal(t, "4", in.QtyIn.String())
	assert.True(t, in.QtyOut.IsZero())
	assert.Equal(t, "10", in.BalanceQty.String())

	assert.Equal(t, "WH/POS/00001", out.Reference)
	assert.Equal(t, "2", out.QtyOut.String())
	assert.Equal(t, "8", out.BalanceQty.String())
}

func TestDetailUnknownProduct(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Detail(context.Background(), 999, StockCardFilter{})
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestAdjustDelegates(t *testing.T) {
	svc, env := newService(t)
	delta := -3.0
	res, err := svc.Adjust(context.Background(), stock.AdjustInput{ProductID: erptest.ShirtID, Delta: &delta})
	require.NoError(t, err)
	assert.Equal(t, "2", res.After.String())
	assert.Equal(t, 2.0, erptest.Float(env.ERP.Records(pos.ModelQuant, []any{"product_id", "=", erptest.ShirtID})[0]["quantity"]))

	_, err = NewService(env.Deps, nil).Adjust(context.Background(), stock.AdjustInput{ProductID: erptest.ShirtID, Delta: &delta})
	assert.True(t, errors.Is(err, shared.ErrValidation))
}
