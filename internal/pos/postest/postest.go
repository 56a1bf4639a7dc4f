// Package postest wires POS services against the fake ERP for tests.
package postest

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/modaboutique/backoffice/internal/erp/erptest"
	"github.com/modaboutique/backoffice/internal/pos"
	"github.com/modaboutique/backoffice/internal/shared"
)

// Attempts collects fallback attempts as "chain/strategy/outcome".
type Attempts struct {
	Seen []string
}

// RecordAttempt implements fallback.Recorder.
func (a *Attempts) RecordAttempt(chain, strategy, outcome string) {
	a.Seen = append(a.Seen, chain+"/"+strategy+"/"+outcome)
}

// Env is a fake ERP plus the collaborators POS services need.
type Env struct {
	ERP      *erptest.Server
	Redis    *miniredis.Miniredis
	Client   *redis.Client
	Deps     pos.Deps
	Attempts *Attempts
}

// New starts the fake shop and a miniredis-backed locker.
func New(t testing.TB) *Env {
	t.Helper()
	srv := erptest.NewPOS(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	attempts := &Attempts{}
	return &Env{
		ERP:    srv,
		Redis:  mr,
		Client: rdb,
		Deps: pos.Deps{
			ERP:      srv.Client(t),
			Locker:   shared.NewLocker(rdb, 5*time.Second),
			Recorder: attempts,
		},
		Attempts: attempts,
	}
}

// OpenSession seeds an opened session and returns its id.
func (e *Env) OpenSession() int64 {
	return e.ERP.Seed(pos.ModelSession, erptest.Record{
		"config_id": erptest.ConfigID,
		"state":     "opened",
		"start_at":  "2025-03-01 09:00:00",
	})
}

// DraftOrder seeds a draft order with one line of qty × price on product.
func (e *Env) DraftOrder(sessionID, product int64, qty, price float64) int64 {
	return e.ERP.Seed(pos.ModelOrder, erptest.Record{
		"session_id": sessionID,
		"lines": []any{[]any{0, 0, map[string]any{
			"product_id": product,
			"qty":        qty,
			"price_unit": price,
		}}},
	})
}
