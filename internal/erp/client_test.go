package erp_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modaboutique/backoffice/internal/erp"
	"github.com/modaboutique/backoffice/internal/erp/erptest"
)

type product struct {
	ID       int64        `json:"id"`
	Name     erp.Text     `json:"name"`
	Barcode  erp.Text     `json:"barcode"`
	Category erp.Many2One `json:"categ_id"`
	Price    float64      `json:"lst_price"`
}

func TestSearchReadDecodesRelationalFields(t *testing.T) {
	srv := erptest.NewPOS(t)
	client := srv.Client(t)

	rows, err := erp.SearchRead[product](context.Background(), client, "product.product",
		erp.Where("categ_id", "=", 1).And("type", "!=", "service"),
		erp.SearchOptions{Fields: []string{"name", "barcode", "categ_id", "lst_price"}, Order: "id desc"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, erptest.DressLargeID, rows[0].ID)
	assert.Equal(t, "Vestidos", rows[0].Category.Name)
	assert.Equal(t, int64(1), rows[0].Category.ID)
	assert.InDelta(t, 50.0, rows[1].Price, 0.0001)

	alteration, err := erp.Get[product](context.Background(), client, "product.product", erptest.AlterationID, nil)
	require.NoError(t, err)
	assert.Empty(t, alteration.Barcode, "false decodes to empty text")
	assert.False(t, alteration.Category.Valid())
}

func TestGetMissingRecord(t *testing.T) {
	srv := erptest.NewPOS(t)
	client := srv.Client(t)

	_, err := erp.Get[product](context.Background(), client, "product.product", 999, nil)
	require.ErrorIs(t, err, erp.ErrMissingRecord)
}

func TestCredentialIsCachedAndRenewedOnAccessDenied(t *testing.T) {
	srv := erptest.NewPOS(t)
	client := srv.Client(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := erp.SearchCount(ctx, client, "pos.session", nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, srv.Logins())

	srv.ExpireSession()
	n, err := erp.SearchCount(ctx, client, "product.product", erp.Where("active", "=", true))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, 2, srv.Logins())
}

func TestCredentialSharedThroughRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	srv := erptest.NewPOS(t)
	cfg := srv.Config()
	cfg.SessionTTL = time.Minute

	first, err := erp.New(cfg, erp.WithCredentialCache(rdb))
	require.NoError(t, err)
	uid, err := first.UID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, srv.UID, uid)
	assert.True(t, mr.Exists("erp:uid:boutique:admin"))

	second, err := erp.New(cfg, erp.WithCredentialCache(rdb))
	require.NoError(t, err)
	_, err = second.UID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, srv.Logins(), "second replica reuses the cached uid")

	mr.FastForward(2 * time.Minute)
	assert.False(t, mr.Exists("erp:uid:boutique:admin"))
}

func TestWrongPasswordIsAccessDenied(t *testing.T) {
	srv := erptest.NewPOS(t)
	cfg := srv.Config()
	cfg.Password = "wrong"
	client, err := erp.New(cfg)
	require.NoError(t, err)

	_, err = erp.SearchCount(context.Background(), client, "pos.order", nil)
	require.ErrorIs(t, err, erp.ErrAccessDenied)
}

func TestRemoteErrorSurfacesMessage(t *testing.T) {
	srv := erptest.NewPOS(t)
	srv.Fail("pos.order", "create", "Missing required session")
	client := srv.Client(t)

	_, err := erp.Create(context.Background(), client, "pos.order", map[string]any{})
	require.Error(t, err)
	var remote *erp.RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, "odoo.exceptions.UserError", remote.Data.Name)
	assert.Contains(t, err.Error(), "pos.order.create")
	assert.Contains(t, err.Error(), "Missing required session")
}

func TestUnavailableWhenServerDown(t *testing.T) {
	srv := erptest.NewPOS(t)
	client := srv.Client(t)
	srv.Close()

	_, err := client.UID(context.Background())
	require.ErrorIs(t, err, erp.ErrUnavailable)
}

type recorder struct {
	calls []string
	fails int
}

func (r *recorder) ObserveCall(model, method string, _ time.Duration, err error) {
	r.calls = append(r.calls, model+"."+method)
	if err != nil {
		r.fails++
	}
}

func TestObserverSeesEveryCall(t *testing.T) {
	srv := erptest.NewPOS(t)
	obs := &recorder{}
	client := srv.Client(t, erp.WithObserver(obs))
	srv.Fail("stock.picking", "button_validate", "nothing to validate")

	_, err := erp.SearchCount(context.Background(), client, "pos.order", nil)
	require.NoError(t, err)
	require.Error(t, erp.Execute(context.Background(), client, "stock.picking", "button_validate", []int64{1}, nil))

	assert.Equal(t, []string{"pos.order.search_count", "stock.picking.button_validate"}, obs.calls)
	assert.Equal(t, 1, obs.fails)
}

func TestCreateWithLineCommands(t *testing.T) {
	srv := erptest.NewPOS(t)
	client := srv.Client(t)
	ctx := context.Background()

	id, err := erp.Create(ctx, client, "pos.order", map[string]any{
		"lines": []any{
			erp.CmdCreate(map[string]any{"product_id": erptest.DressID, "qty": 2, "price_unit": 50, "discount": 10}),
			erp.CmdCreate(map[string]any{"product_id": erptest.ShirtID, "qty": 1, "price_unit": 80, "tax_ids": []any{erp.CmdSet([]int64{erptest.TaxID})}}),
		},
	})
	require.NoError(t, err)

	order := srv.Record("pos.order", id)
	assert.InDelta(t, 186.80, erptest.Float(order["amount_total"]), 0.001)
	assert.InDelta(t, 16.80, erptest.Float(order["amount_tax"]), 0.001)
	assert.Len(t, srv.Records("pos.order.line", []any{"order_id", "=", id}), 2)
}

func TestManyToOneDecoding(t *testing.T) {
	cases := map[string]erp.Many2One{
		`false`:           {},
		`null`:            {},
		`12`:              {ID: 12},
		`[3, "WH/Stock"]`: {ID: 3, Name: "WH/Stock"},
		`[4, false]`:      {ID: 4},
		`[]`:              {},
	}
	for raw, want := range cases {
		var got erp.Many2One
		require.NoError(t, json.Unmarshal([]byte(raw), &got), raw)
		assert.Equal(t, want, got, raw)
	}

	out, err := json.Marshal(erp.Many2One{ID: 3, Name: "WH/Stock"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":3,"name":"WH/Stock"}`, string(out))
}

func TestTimeDecoding(t *testing.T) {
	var ts erp.Time
	require.NoError(t, json.Unmarshal([]byte(`"2025-03-01 09:30:00"`), &ts))
	assert.Equal(t, time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC), ts.Time)
	require.NoError(t, json.Unmarshal([]byte(`false`), &ts))
	assert.True(t, ts.IsZero())
	assert.Equal(t, "2025-03-01 09:30:00", erp.FormatTime(time.Date(2025, 3, 1, 10, 30, 0, 0, time.FixedZone("CET", 3600))))
}

func TestNumberDecoding(t *testing.T) {
	var rec struct {
		Price erp.Number `json:"standard_price"`
		Qty   erp.Number `json:"qty_available"`
		Cost  erp.Number `json:"cost"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"standard_price": false, "qty_available": 12.5, "cost": null}`), &rec))
	assert.True(t, rec.Price.IsZero())
	assert.Equal(t, "12.5", rec.Qty.String())
	assert.True(t, rec.Cost.IsZero())

	out, err := json.Marshal(rec.Qty)
	require.NoError(t, err)
	assert.Contains(t, string(out), "12.5")

	assert.Error(t, json.Unmarshal([]byte(`{"qty_available": "lots"}`), &rec))
}

func TestDomainComposition(t *testing.T) {
	d := erp.Or(
		erp.Where("name", "ilike", "vestido"),
		erp.Where("default_code", "=", "VL-M").And("active", "=", true),
	)
	out, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `["|",["name","ilike","vestido"],"&",["default_code","=","VL-M"],["active","=",true]]`, string(out))

	empty, err := json.Marshal(erp.Domain(nil))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(empty))

	srv := erptest.NewPOS(t)
	ids, err := erp.Search(context.Background(), srv.Client(t), "product.product", d, erp.SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, []int64{erptest.DressID, erptest.DressLargeID}, ids)
}
