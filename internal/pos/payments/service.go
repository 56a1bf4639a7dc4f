package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/modaboutique/backoffice/internal/erp"
	"github.com/modaboutique/backoffice/internal/fallback"
	"github.com/modaboutique/backoffice/internal/pos"
	"github.com/modaboutique/backoffice/internal/pos/stock"
	"github.com/modaboutique/backoffice/internal/shared"
)

const idempotencyModule = "pos.payment"

// Idempotency claims request keys; a nil store disables the check.
type Idempotency interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// StockSync reconciles inventory once an order is paid.
type StockSync interface {
	AfterPayment(ctx context.Context, orderID int64) (*stock.Dispatch, error)
}

// Service takes payments for POS orders.
type Service struct {
	deps        pos.Deps
	idempotency Idempotency
	stock       StockSync
	now         func() time.Time
}

// NewService constructs the payment orchestrator. idempotency and stock may be nil.
func NewService(deps pos.Deps, idempotency Idempotency, stock StockSync) *Service {
	return &Service{deps: deps, idempotency: idempotency, stock: stock, now: time.Now}
}

// Process records a payment for a draft order, marks it paid and finalizes
// it. The tendered amount is recorded; change is amount minus total.
func (s *Service) Process(ctx context.Context, in PaymentInput) (*Result, error) {
	if in.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", shared.ErrValidation)
	}
	if strings.TrimSpace(in.Method) == "" {
		return nil, fmt.Errorf("%w: method is required", shared.ErrValidation)
	}
	if in.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, in.IdempotencyKey, idempotencyModule); err != nil {
			return nil, err
		}
	}

	var (
		res      *Result
		recorded bool
	)
	err := s.deps.Locker.WithLock(ctx, shared.OrderLockKey(in.OrderID), func(ctx context.Context) error {
		var err error
		res, recorded, err = s.process(ctx, in)
		return err
	})
	if err != nil {
		// Once the payment exists in the ERP the key stays claimed, so a
		// replay cannot pay twice.
		if !recorded {
			s.release(ctx, in.IdempotencyKey)
		}
		return nil, err
	}

	s.deps.Record(ctx, "order.payment", pos.ModelOrder, in.OrderID, map[string]any{
		"method": res.Method.Name.String(),
		"amount": decimal.NewFromFloat(in.Amount).StringFixed(2),
		"change": res.ChangeAmount.StringFixed(2),
	})

	if s.stock != nil {
		dispatch, err := s.stock.AfterPayment(ctx, in.OrderID)
		if err != nil {
			s.deps.Log().WarnContext(ctx, "stock reconciliation after payment failed",
				slog.Int64("order_id", in.OrderID), slog.Any("error", err))
			res.StockError = err.Error()
		}
		res.Stock = dispatch
	}
	return res, nil
}

func (s *Service) release(ctx context.Context, key string) {
	if key == "" || s.idempotency == nil {
		return
	}
	if err := s.idempotency.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.deps.Log().WarnContext(ctx, "release idempotency key", slog.String("key", key), slog.Any("error", err))
	}
}

// process reports whether a payment was written to the ERP, even when a
// later step failed.
func (s *Service) process(ctx context.Context, in PaymentInput) (*Result, bool, error) {
	order, err := erp.Get[orderRecord](ctx, s.deps.ERP, pos.ModelOrder, in.OrderID, orderFields)
	if err != nil {
		return nil, false, pos.NotFound(err, "order", in.OrderID)
	}
	if order.State != "draft" {
		return nil, false, fmt.Errorf("%w: order %d is %s", ErrAlreadyPaid, order.ID, order.State)
	}
	method, err := s.resolve(ctx, order.Session, in.Method)
	if err != nil {
		return nil, false, err
	}
	res := &Result{OrderID: order.ID, Method: method}

	amount := decimal.NewFromFloat(in.Amount).Round(2)
	if settled(order) {
		// An earlier attempt recorded the payment but did not mark the
		// order paid; resume there.
		amount = order.AmountPaid.Decimal
		res.Strategies.Record = StrategyAlreadyRecorded
		ids, err := erp.Search(ctx, s.deps.ERP, pos.ModelPayment, erp.Where("pos_order_id", "=", order.ID),
			erp.SearchOptions{Order: "id desc", Limit: 1})
		if err != nil {
			return nil, true, err
		}
		if len(ids) > 0 {
			res.PaymentID = ids[0]
		}
		s.deps.Log().InfoContext(ctx, "resuming payment at mark paid",
			slog.Int64("order_id", order.ID), slog.String("amount_paid", amount.StringFixed(2)))
	} else {
		if amount.LessThan(order.AmountTotal.Decimal) {
			return nil, false, fmt.Errorf("%w: tendered %s, total %s", ErrInsufficientPayment,
				amount.StringFixed(2), order.AmountTotal.StringFixed(2))
		}
		res.PaymentID, res.Strategies.Record, err = s.record(ctx, order, method, amount)
		if err != nil {
			return nil, errors.Is(err, fallback.ErrStopped), err
		}
	}

	res.Strategies.MarkPaid, err = fallback.Do(ctx, s.deps.Chain("payment.mark_paid"),
		fallback.Step("action_pos_order_paid", func(ctx context.Context) error {
			return erp.Execute(ctx, s.deps.ERP, pos.ModelOrder, "action_pos_order_paid", []int64{order.ID}, nil)
		}),
		fallback.Step("direct_write", func(ctx context.Context) error {
			return erp.Write(ctx, s.deps.ERP, pos.ModelOrder, []int64{order.ID}, map[string]any{"state": "paid"})
		}),
	)
	if err != nil {
		return nil, true, fmt.Errorf("mark order %d paid: %w", order.ID, err)
	}

	if err := erp.Execute(ctx, s.deps.ERP, pos.ModelOrder, "_create_order_picking", []int64{order.ID}, nil); err != nil {
		s.deps.Log().WarnContext(ctx, "order finalization skipped", slog.Int64("order_id", order.ID), slog.Any("error", err))
	} else {
		res.Strategies.Finalize = "_create_order_picking"
	}

	paid, err := erp.Get[orderRecord](ctx, s.deps.ERP, pos.ModelOrder, order.ID, orderFields)
	if err != nil {
		return nil, true, err
	}
	res.OrderName = paid.Name.String()
	res.State = paid.State
	res.AmountTotal = paid.AmountTotal.Decimal
	res.AmountPaid = paid.AmountPaid.Decimal
	res.ChangeAmount = amount.Sub(paid.AmountTotal.Decimal)
	if res.ChangeAmount.IsNegative() {
		res.ChangeAmount = decimal.Zero
	}
	return res, true, nil
}

// settled reports a draft order already carrying payments that cover its
// total.
func settled(order orderRecord) bool {
	return order.AmountPaid.IsPositive() && !order.AmountPaid.LessThan(order.AmountTotal.Decimal)
}

// record stores the payment line through the order, falling back to a
// direct pos.payment create.
func (s *Service) record(ctx context.Context, order orderRecord, method Method, amount decimal.Decimal) (int64, string, error) {
	values := map[string]any{
		"pos_order_id":      order.ID,
		"payment_method_id": method.ID,
		"amount":            amount.InexactFloat64(),
		"name":              "POS " + s.now().UTC().Format("2006-01-02 15:04:05"),
		"payment_date":      erp.FormatTime(s.now()),
	}
	run, err := fallback.Run(ctx, s.deps.Chain("payment.record"),
		fallback.Strategy[int64]{Name: "add_payment", Run: func(ctx context.Context) (int64, error) {
			var id any
			if err := s.deps.ERP.Call(ctx, pos.ModelOrder, "add_payment", []any{[]int64{order.ID}, values}, nil, &id); err != nil {
				return 0, err
			}
			return s.paymentID(ctx, order.ID, id)
		}},
		fallback.Strategy[int64]{Name: "direct_create", Run: func(ctx context.Context) (int64, error) {
			direct := make(map[string]any, len(values)+1)
			for k, v := range values {
				direct[k] = v
			}
			if order.Session.Valid() {
				direct["session_id"] = order.Session.ID
			}
			id, err := erp.Create(ctx, s.deps.ERP, pos.ModelPayment, direct)
			if err != nil {
				return 0, err
			}
			paid := order.AmountPaid.Add(amount)
			err = erp.Write(ctx, s.deps.ERP, pos.ModelOrder, []int64{order.ID}, map[string]any{
				"amount_paid":   paid.InexactFloat64(),
				"amount_return": decimal.Max(paid.Sub(order.AmountTotal.Decimal), decimal.Zero).InexactFloat64(),
			})
			if err != nil {
				return 0, fallback.Stop(fmt.Errorf("payment %d created but order totals not updated: %w", id, err))
			}
			return id, nil
		}},
	)
	if err != nil {
		return 0, "", fmt.Errorf("record payment for order %d: %w", order.ID, err)
	}
	return run.Value, run.Strategy, nil
}

// paymentID returns the id add_payment answered with, or looks up the
// newest payment of the order when the ERP returned none.
func (s *Service) paymentID(ctx context.Context, orderID int64, result any) (int64, error) {
	if f, ok := result.(float64); ok && f > 0 {
		return int64(f), nil
	}
	ids, err := erp.Search(ctx, s.deps.ERP, pos.ModelPayment, erp.Where("pos_order_id", "=", orderID),
		erp.SearchOptions{Order: "id desc", Limit: 1})
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, fallback.Stop(errors.New("add_payment returned no payment"))
	}
	return ids[0], nil
}

// Methods lists the payment methods of the configured POS.
func (s *Service) Methods(ctx context.Context, configID int64) ([]Method, error) {
	type config struct {
		MethodIDs []int64 `json:"payment_method_ids"`
	}
	var (
		methods []Method
		err     error
	)
	if configID > 0 {
		cfg, cerr := erp.Get[config](ctx, s.deps.ERP, pos.ModelConfig, configID, []string{"payment_method_ids"})
		if cerr != nil {
			return nil, pos.NotFound(cerr, "pos config", configID)
		}
		methods, err = erp.Read[Method](ctx, s.deps.ERP, pos.ModelPaymentMethod, cfg.MethodIDs, methodFields)
	} else {
		methods, err = erp.SearchRead[Method](ctx, s.deps.ERP, pos.ModelPaymentMethod, nil,
			erp.SearchOptions{Fields: methodFields, Order: "id"})
	}
	if err != nil {
		return nil, err
	}
	if err := s.classify(ctx, methods); err != nil {
		return nil, err
	}
	return methods, nil
}

// classify sets Kind from is_cash_count and the journal type.
func (s *Service) classify(ctx context.Context, methods []Method) error {
	var journalIDs []int64
	for _, m := range methods {
		if m.Journal.Valid() {
			journalIDs = append(journalIDs, m.Journal.ID)
		}
	}
	types := map[int64]string{}
	if len(journalIDs) > 0 {
		type journal struct {
			ID   int64    `json:"id"`
			Type erp.Text `json:"type"`
		}
		journals, err := erp.Read[journal](ctx, s.deps.ERP, pos.ModelJournal, journalIDs, []string{"type"})
		if err != nil {
			return fmt.Errorf("load journals: %w", err)
		}
		for _, j := range journals {
			types[j.ID] = j.Type.String()
		}
	}
	for i := range methods {
		m := &methods[i]
		switch {
		case m.IsCash || types[m.Journal.ID] == "cash":
			m.Kind = MethodCash
		case types[m.Journal.ID] == "bank":
			m.Kind = MethodCard
		default:
			m.Kind = "other"
		}
	}
	return nil
}

// resolve maps "cash", "card", a numeric id or a method name onto one of
// the methods available to the order's session.
func (s *Service) resolve(ctx context.Context, session erp.Many2One, want string) (Method, error) {
	var configID int64
	if session.Valid() {
		type sessionRecord struct {
			Config erp.Many2One `json:"config_id"`
		}
		sess, err := erp.Get[sessionRecord](ctx, s.deps.ERP, pos.ModelSession, session.ID, []string{"config_id"})
		if err != nil {
			return Method{}, pos.NotFound(err, "session", session.ID)
		}
		configID = sess.Config.ID
	}
	methods, err := s.Methods(ctx, configID)
	if err != nil {
		return Method{}, err
	}
	want = strings.ToLower(strings.TrimSpace(want))
	id, numErr := strconv.ParseInt(want, 10, 64)
	for _, m := range methods {
		switch {
		case numErr == nil && m.ID == id:
			return m, nil
		case numErr != nil && (m.Kind == want || strings.EqualFold(m.Name.String(), want)):
			return m, nil
		}
	}
	return Method{}, fmt.Errorf("%w: %q", ErrUnknownMethod, want)
}
