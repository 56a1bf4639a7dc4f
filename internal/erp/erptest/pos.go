package erptest

import (
	"fmt"
	"math"
	"testing"
	"time"
)

// Seeded identifiers of the POS fixture.
const (
	CompanyID       int64 = 1
	ConfigID        int64 = 1
	StockLocationID int64 = 8
	CustomerLocID   int64 = 9
	CashMethodID    int64 = 1
	CardMethodID    int64 = 2
	TaxID           int64 = 1
	DressID         int64 = 7
	ShirtID         int64 = 8
	DressLargeID    int64 = 9
	AlterationID    int64 = 10
	DressTemplateID int64 = 70
)

// NewPOS starts a fake ERP preloaded with one shop: a POS config with cash
// and card methods, a few products and on-hand stock at WH/Stock. Session,
// order, payment and picking methods follow the ERP's state machines.
func NewPOS(t testing.TB) *Server {
	s := New(t)
	s.relations()
	s.seedShop()
	s.posMethods()
	s.stockMethods()
	return s
}

func (s *Server) relations() {
	for _, r := range [][3]string{
		{"res.company", "currency_id", "res.currency"},
		{"pos.config", "company_id", "res.company"},
		{"pos.session", "config_id", "pos.config"},
		{"pos.session", "user_id", "res.users"},
		{"pos.order", "session_id", "pos.session"},
		{"pos.order", "partner_id", "res.partner"},
		{"pos.order", "company_id", "res.company"},
		{"pos.order", "user_id", "res.users"},
		{"pos.order.line", "order_id", "pos.order"},
		{"pos.order.line", "product_id", "product.product"},
		{"pos.payment", "pos_order_id", "pos.order"},
		{"pos.payment", "payment_method_id", "pos.payment.method"},
		{"pos.payment", "session_id", "pos.session"},
		{"pos.payment.method", "journal_id", "account.journal"},
		{"product.product", "product_tmpl_id", "product.template"},
		{"product.product", "categ_id", "product.category"},
		{"product.template", "categ_id", "product.category"},
		{"product.template.attribute.value", "attribute_id", "product.attribute"},
		{"stock.quant", "product_id", "product.product"},
		{"stock.quant", "location_id", "stock.location"},
		{"stock.picking", "location_id", "stock.location"},
		{"stock.picking", "location_dest_id", "stock.location"},
		{"stock.picking", "pos_order_id", "pos.order"},
		{"stock.move", "picking_id", "stock.picking"},
		{"stock.move", "product_id", "product.product"},
		{"stock.move", "location_id", "stock.location"},
		{"stock.move", "location_dest_id", "stock.location"},
		{"stock.warehouse", "lot_stock_id", "stock.location"},
		{"stock.warehouse", "company_id", "res.company"},
	} {
		s.ManyToOne(r[0], r[1], r[2])
	}
	s.ManyToMany("product.product", "taxes_id")
	s.ManyToMany("product.template", "taxes_id")
	s.OneToMany("pos.order", "lines", "pos.order.line", "order_id")
	s.OneToMany("pos.order", "payment_ids", "pos.payment", "pos_order_id")
	s.OneToMany("pos.order", "picking_ids", "stock.picking", "pos_order_id")
	s.OneToMany("stock.picking", "move_ids", "stock.move", "picking_id")
	s.OneToMany("product.template", "product_variant_ids", "product.product", "product_tmpl_id")

	s.Default("pos.session", Record{"state": "opening_control", "user_id": s.UID, "config_id": ConfigID})
	s.Default("pos.order", Record{"state": "draft", "amount_total": 0.0, "amount_tax": 0.0, "amount_paid": 0.0, "amount_return": 0.0, "company_id": CompanyID})
	s.Default("pos.order.line", Record{"qty": 1.0, "discount": 0.0})
	s.Default("stock.picking", Record{"state": "draft"})
	s.Default("stock.move", Record{"state": "draft", "quantity": 0.0})
	s.Default("stock.quant", Record{"quantity": 0.0, "inventory_quantity": 0.0})
	s.Default("product.product", Record{"active": true, "type": "product"})
	s.Default("product.template", Record{"active": true, "type": "product"})

	s.Compute("pos.session", nameSequence("POS/%05d"))
	s.Compute("pos.order", nameSequence("Tienda Serrano/%04d"))
	s.Compute("pos.order", orderTotals)
	s.Compute("pos.order.line", lineTotals)
	s.Compute("pos.payment", paidTotals)
	s.Compute("stock.picking", nameSequence("WH/POS/%05d"))
	s.Compute("stock.quant", onHand)
}

func (s *Server) seedShop() {
	s.Seed("res.currency", Record{"id": 1, "name": "EUR", "symbol": "€"})
	s.Seed("res.company", Record{
		"id": CompanyID, "name": "Moda Boutique SL", "vat": "ESB12345678",
		"street": "Calle Serrano 12", "city": "Madrid", "zip": "28001",
		"phone": "+34 910 000 000", "email": "tienda@modaboutique.es", "currency_id": 1,
	})
	s.Seed("res.users", Record{"id": s.UID, "name": "Administrador"})
	s.Seed("account.journal", Record{"id": 1, "name": "Efectivo", "type": "cash"})
	s.Seed("account.journal", Record{"id": 2, "name": "Banco", "type": "bank"})
	s.Seed("pos.payment.method", Record{"id": CashMethodID, "name": "Efectivo", "is_cash_count": true, "journal_id": 1})
	s.Seed("pos.payment.method", Record{"id": CardMethodID, "name": "Tarjeta", "is_cash_count": false, "journal_id": 2})
	s.Seed("pos.config", Record{"id": ConfigID, "name": "Tienda Serrano", "company_id": CompanyID, "payment_method_ids": []int64{CashMethodID, CardMethodID}})
	s.Seed("account.tax", Record{"id": TaxID, "name": "IVA 21%", "amount": 21.0, "amount_type": "percent", "price_include": false})

	s.Seed("stock.location", Record{"id": StockLocationID, "name": "Stock", "complete_name": "WH/Stock", "usage": "internal"})
	s.Seed("stock.location", Record{"id": CustomerLocID, "name": "Customers", "complete_name": "Partners/Customers", "usage": "customer"})
	s.Seed("stock.warehouse", Record{"id": 1, "name": "WH", "lot_stock_id": StockLocationID, "company_id": CompanyID})

	s.Seed("product.category", Record{"id": 1, "name": "Vestidos"})
	s.Seed("product.category", Record{"id": 2, "name": "Camisas"})
	s.Seed("product.attribute", Record{"id": 1, "name": "Talla"})
	s.Seed("product.template.attribute.value", Record{"id": 1, "name": "M", "attribute_id": 1})
	s.Seed("product.template.attribute.value", Record{"id": 2, "name": "L", "attribute_id": 1})

	s.Seed("product.template", Record{"id": DressTemplateID, "name": "Vestido lino", "list_price": 50.0, "standard_price": 21.0, "default_code": "VL", "categ_id": 1, "taxes_id": []int64{}})
	s.Seed("product.template", Record{"id": 71, "name": "Camisa seda", "list_price": 80.0, "standard_price": 35.0, "default_code": "CS", "categ_id": 2, "taxes_id": []int64{TaxID}})
	s.Seed("product.template", Record{"id": 72, "name": "Arreglo bajo", "list_price": 12.0, "type": "service", "taxes_id": []int64{}})

	s.Seed("product.product", Record{
		"id": DressID, "name": "Vestido lino", "display_name": "Vestido lino (M)", "default_code": "VL-M",
		"barcode": "8400000000071", "list_price": 50.0, "lst_price": 50.0, "standard_price": 21.0,
		"categ_id": 1, "product_tmpl_id": DressTemplateID, "taxes_id": []int64{},
		"product_template_attribute_value_ids": []int64{1},
	})
	s.Seed("product.product", Record{
		"id": ShirtID, "name": "Camisa seda", "display_name": "Camisa seda", "default_code": "CS-01",
		"barcode": "8400000000088", "list_price": 80.0, "lst_price": 80.0, "standard_price": 35.0,
		"categ_id": 2, "product_tmpl_id": 71, "taxes_id": []int64{TaxID},
	})
	s.Seed("product.product", Record{
		"id": DressLargeID, "name": "Vestido lino", "display_name": "Vestido lino (L)", "default_code": "VL-L",
		"barcode": "8400000000095", "list_price": 50.0, "lst_price": 50.0, "standard_price": 21.0,
		"categ_id": 1, "product_tmpl_id": DressTemplateID, "taxes_id": []int64{},
		"product_template_attribute_value_ids": []int64{2},
	})
	s.Seed("product.product", Record{
		"id": AlterationID, "name": "Arreglo bajo", "display_name": "Arreglo bajo", "type": "service",
		"list_price": 12.0, "lst_price": 12.0, "product_tmpl_id": 72, "taxes_id": []int64{},
	})

	s.Seed("stock.quant", Record{"id": 1, "product_id": DressID, "location_id": StockLocationID, "quantity": 10.0})
	s.Seed("stock.quant", Record{"id": 2, "product_id": ShirtID, "location_id": StockLocationID, "quantity": 5.0})
	s.Seed("stock.quant", Record{"id": 3, "product_id": DressLargeID, "location_id": StockLocationID, "quantity": 3.0})
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func nameSequence(format string) func(*Store, Record) {
	return func(_ *Store, rec Record) {
		if name, ok := rec["name"].(string); !ok || name == "" {
			rec["name"] = fmt.Sprintf(format, toInt(rec["id"]))
		}
	}
}

func lineTotals(st *Store, rec Record) {
	if _, alive := st.Find("pos.order.line", toInt(rec["id"])); alive {
		subtotal := round2(Float(rec["qty"]) * Float(rec["price_unit"]) * (1 - Float(rec["discount"])/100))
		rate := 0.0
		for _, taxID := range toIDs(rec["tax_ids"]) {
			if tax, ok := st.Find("account.tax", taxID); ok && tax["amount_type"] == "percent" {
				rate += Float(tax["amount"])
			}
		}
		rec["price_subtotal"] = subtotal
		rec["price_subtotal_incl"] = round2(subtotal * (1 + rate/100))
	}
	if order, ok := st.Find("pos.order", toInt(rec["order_id"])); ok {
		orderTotals(st, order)
	}
}

func orderTotals(st *Store, order Record) {
	var total, untaxed float64
	for _, lineID := range st.Children("pos.order", toInt(order["id"]), "lines") {
		line, _ := st.Find("pos.order.line", lineID)
		total += Float(line["price_subtotal_incl"])
		untaxed += Float(line["price_subtotal"])
	}
	order["amount_total"] = round2(total)
	order["amount_tax"] = round2(total - untaxed)
}

func paidTotals(st *Store, rec Record) {
	order, ok := st.Find("pos.order", toInt(rec["pos_order_id"]))
	if !ok {
		return
	}
	var paid float64
	for _, id := range st.Children("pos.order", toInt(order["id"]), "payment_ids") {
		payment, _ := st.Find("pos.payment", id)
		paid += Float(payment["amount"])
	}
	order["amount_paid"] = round2(paid)
	if change := round2(paid - Float(order["amount_total"])); change > 0 {
		order["amount_return"] = change
	}
}

func onHand(st *Store, rec Record) {
	productID := toInt(rec["product_id"])
	product, ok := st.Find("product.product", productID)
	if !ok {
		return
	}
	var qty float64
	for _, id := range st.Select("stock.quant", []any{[]any{"product_id", "=", productID}, []any{"location_id.usage", "=", "internal"}}) {
		quant, _ := st.Find("stock.quant", id)
		qty += Float(quant["quantity"])
	}
	product["qty_available"] = qty
}

func now() string {
	return time.Now().UTC().Format("2006-01-02 15:04:05")
}

func (s *Server) posMethods() {
	openSession := func(st *Store, configIDs []int64) error {
		for _, configID := range configIDs {
			busy := st.Select("pos.session", []any{[]any{"config_id", "=", configID}, []any{"state", "!=", "closed"}})
			if len(busy) > 0 {
				return UserError("Another session is already opened for this point of sale.")
			}
			st.Insert("pos.session", Record{"config_id": configID, "user_id": s.UID, "state": "opening_control"})
		}
		return nil
	}
	s.Handle("pos.config", "open_session_cb", func(st *Store, ids []int64, _ []any, _ map[string]any) (any, error) {
		return true, openSession(st, ids)
	})
	s.Handle("pos.config", "open_ui", func(st *Store, ids []int64, _ []any, _ map[string]any) (any, error) {
		if err := openSession(st, ids); err != nil {
			return nil, err
		}
		return Record{"type": "ir.actions.act_url", "url": "/pos/ui", "target": "self"}, nil
	})
	s.Handle("pos.session", "set_opening_control", func(st *Store, ids []int64, _ []any, _ map[string]any) (any, error) {
		for _, id := range ids {
			rec, ok := st.Find("pos.session", id)
			if !ok {
				return nil, missing("pos.session", ids)
			}
			if rec["state"] != "opening_control" {
				return nil, UserError("This session is not in opening control.")
			}
			_ = st.Update("pos.session", id, Record{"state": "opened", "start_at": now()})
		}
		return nil, nil
	})
	s.Handle("pos.session", "action_pos_session_closing_control", func(st *Store, ids []int64, _ []any, _ map[string]any) (any, error) {
		for _, id := range ids {
			drafts := st.Select("pos.order", []any{[]any{"session_id", "=", id}, []any{"state", "=", "draft"}})
			if len(drafts) > 0 {
				return nil, UserError("You cannot close the POS when orders are still in draft")
			}
			_ = st.Update("pos.session", id, Record{"state": "closing_control", "stop_at": now()})
		}
		return true, nil
	})
	s.Handle("pos.session", "action_pos_session_close", func(st *Store, ids []int64, _ []any, _ map[string]any) (any, error) {
		for _, id := range ids {
			rec, ok := st.Find("pos.session", id)
			if !ok {
				return nil, missing("pos.session", ids)
			}
			if rec["state"] != "closing_control" {
				return nil, UserError("The session must be in closing control before it can be closed.")
			}
			for _, orderID := range st.Select("pos.order", []any{[]any{"session_id", "=", id}, []any{"state", "=", "paid"}}) {
				_ = st.Update("pos.order", orderID, Record{"state": "done"})
			}
			_ = st.Update("pos.session", id, Record{"state": "closed"})
		}
		return true, nil
	})
	s.Handle("pos.order", "add_payment", func(st *Store, ids []int64, args []any, _ map[string]any) (any, error) {
		if len(args) < 2 || len(ids) != 1 {
			return nil, UserError("add_payment expects one order and payment data")
		}
		order, ok := st.Find("pos.order", ids[0])
		if !ok {
			return nil, missing("pos.order", ids)
		}
		data := asRecord(args[1])
		data["pos_order_id"] = ids[0]
		data["session_id"] = order["session_id"]
		return st.Insert("pos.payment", data), nil
	})
	s.Handle("pos.order", "action_pos_order_paid", func(st *Store, ids []int64, _ []any, _ map[string]any) (any, error) {
		for _, id := range ids {
			order, ok := st.Find("pos.order", id)
			if !ok {
				return nil, missing("pos.order", ids)
			}
			if Float(order["amount_paid"])+0.005 < Float(order["amount_total"]) {
				return nil, UserError(fmt.Sprintf("Order %s is not fully paid.", order["name"]))
			}
			_ = st.Update("pos.order", id, Record{"state": "paid"})
		}
		return true, nil
	})
	s.Handle("pos.order", "_create_order_picking", func(st *Store, ids []int64, _ []any, _ map[string]any) (any, error) {
		for _, id := range ids {
			order, ok := st.Find("pos.order", id)
			if !ok {
				return nil, missing("pos.order", ids)
			}
			if len(st.Children("pos.order", id, "picking_ids")) > 0 {
				continue
			}
			var moves []any
			for _, lineID := range st.Children("pos.order", id, "lines") {
				line, _ := st.Find("pos.order.line", lineID)
				product, _ := st.Find("product.product", toInt(line["product_id"]))
				if product == nil || product["type"] == "service" {
					continue
				}
				moves = append(moves, []any{0, 0, Record{
					"name":             product["name"],
					"product_id":       toInt(line["product_id"]),
					"product_uom_qty":  Float(line["qty"]),
					"location_id":      StockLocationID,
					"location_dest_id": CustomerLocID,
				}})
			}
			if len(moves) == 0 {
				continue
			}
			st.Insert("stock.picking", Record{
				"origin":           order["name"],
				"pos_order_id":     id,
				"location_id":      StockLocationID,
				"location_dest_id": CustomerLocID,
				"move_ids":         moves,
			})
		}
		return nil, nil
	})
}

func (s *Server) stockMethods() {
	transition := func(from []string, to string) MethodFunc {
		return func(st *Store, ids []int64, _ []any, _ map[string]any) (any, error) {
			for _, id := range ids {
				picking, ok := st.Find("stock.picking", id)
				if !ok {
					return nil, missing("stock.picking", ids)
				}
				allowed := false
				for _, state := range from {
					allowed = allowed || picking["state"] == state
				}
				if !allowed {
					return nil, UserError(fmt.Sprintf("Picking %s is %s.", picking["name"], picking["state"]))
				}
				for _, moveID := range st.Children("stock.picking", id, "move_ids") {
					move, _ := st.Find("stock.move", moveID)
					vals := Record{"state": to}
					if to == "assigned" {
						vals["quantity"] = Float(move["product_uom_qty"])
					}
					_ = st.Update("stock.move", moveID, vals)
				}
				_ = st.Update("stock.picking", id, Record{"state": to})
			}
			return true, nil
		}
	}
	s.Handle("stock.picking", "action_confirm", transition([]string{"draft"}, "confirmed"))
	s.Handle("stock.picking", "action_assign", transition([]string{"confirmed", "waiting", "assigned"}, "assigned"))
	s.Handle("stock.picking", "button_validate", func(st *Store, ids []int64, _ []any, _ map[string]any) (any, error) {
		for _, id := range ids {
			picking, ok := st.Find("stock.picking", id)
			if !ok {
				return nil, missing("stock.picking", ids)
			}
			if picking["state"] == "done" {
				continue
			}
			if picking["state"] != "assigned" {
				return nil, UserError(fmt.Sprintf("Picking %s is not ready.", picking["name"]))
			}
			for _, moveID := range st.Children("stock.picking", id, "move_ids") {
				move, _ := st.Find("stock.move", moveID)
				qty := Float(move["quantity"])
				if qty == 0 {
					qty = Float(move["product_uom_qty"])
				}
				decrement(st, toInt(move["product_id"]), toInt(move["location_id"]), qty)
				_ = st.Update("stock.move", moveID, Record{"state": "done", "quantity": qty})
			}
			_ = st.Update("stock.picking", id, Record{"state": "done", "date_done": now()})
		}
		return true, nil
	})
	s.Handle("stock.quant", "action_apply_inventory", func(st *Store, ids []int64, _ []any, _ map[string]any) (any, error) {
		for _, id := range ids {
			quant, ok := st.Find("stock.quant", id)
			if !ok {
				return nil, missing("stock.quant", ids)
			}
			_ = st.Update("stock.quant", id, Record{"quantity": Float(quant["inventory_quantity"]), "inventory_quantity": 0.0})
		}
		return nil, nil
	})
}

func decrement(st *Store, productID, locationID int64, qty float64) {
	ids := st.Select("stock.quant", []any{[]any{"product_id", "=", productID}, []any{"location_id", "=", locationID}})
	if len(ids) == 0 {
		st.Insert("stock.quant", Record{"product_id": productID, "location_id": locationID, "quantity": -qty})
		return
	}
	quant, _ := st.Find("stock.quant", ids[0])
	_ = st.Update("stock.quant", ids[0], Record{"quantity": Float(quant["quantity"]) - qty})
}
