package erptest

import (
	"fmt"
	"sort"
	"strings"
)

// Record is a stored ERP row keyed by field name.
type Record map[string]any

type inverse struct {
	model string
	field string
}

// Store holds the in-memory models. Its methods are not synchronised; they
// are meant for method handlers, which run under the server lock.
type Store struct {
	records   map[string]map[int64]Record
	next      map[string]int64
	many2one  map[string]map[string]string
	one2many  map[string]map[string]inverse
	many2many map[string]map[string]bool
	defaults  map[string]Record
	computes  map[string][]func(*Store, Record)
}

func newStore() *Store {
	return &Store{
		records:   map[string]map[int64]Record{},
		next:      map[string]int64{},
		many2one:  map[string]map[string]string{},
		one2many:  map[string]map[string]inverse{},
		many2many: map[string]map[string]bool{},
		defaults:  map[string]Record{},
		computes:  map[string][]func(*Store, Record){},
	}
}

// Find returns the live record.
func (st *Store) Find(model string, id int64) (Record, bool) {
	rec, ok := st.records[model][id]
	return rec, ok
}

// Insert creates a record, applying defaults and x2many commands.
func (st *Store) Insert(model string, values Record) int64 {
	table, ok := st.records[model]
	if !ok {
		table = map[int64]Record{}
		st.records[model] = table
	}
	id := toInt(values["id"])
	if id == 0 {
		id = st.next[model] + 1
	}
	if id > st.next[model] {
		st.next[model] = id
	}
	rec := Record{"id": id}
	for k, v := range st.defaults[model] {
		rec[k] = v
	}
	table[id] = rec
	pending := st.assign(model, id, rec, values)
	for _, fn := range pending {
		fn()
	}
	st.recompute(model, id)
	return id
}

// Update writes values onto an existing record.
func (st *Store) Update(model string, id int64, values Record) error {
	rec, ok := st.records[model][id]
	if !ok {
		return fmt.Errorf("record %s(%d) does not exist", model, id)
	}
	pending := st.assign(model, id, rec, values)
	for _, fn := range pending {
		fn()
	}
	st.recompute(model, id)
	return nil
}

// Delete removes a record.
func (st *Store) Delete(model string, id int64) bool {
	rec, ok := st.records[model][id]
	if !ok {
		return false
	}
	delete(st.records[model], id)
	for _, fn := range st.computes[model] {
		fn(st, rec)
	}
	return true
}

// Select returns ids of records matching the domain, ascending.
func (st *Store) Select(model string, domain []any) []int64 {
	ids := make([]int64, 0, len(st.records[model]))
	for id, rec := range st.records[model] {
		if st.matches(model, rec, domain) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Children returns ids linked through a registered one2many field.
func (st *Store) Children(model string, id int64, field string) []int64 {
	inv, ok := st.one2many[model][field]
	if !ok {
		return nil
	}
	return st.Select(inv.model, []any{[]any{inv.field, "=", id}})
}

func (st *Store) recompute(model string, id int64) {
	rec, ok := st.records[model][id]
	if !ok {
		return
	}
	for _, fn := range st.computes[model] {
		fn(st, rec)
	}
}

// assign applies values to rec and returns deferred child writes, which must
// run once the parent row is stored.
func (st *Store) assign(model string, id int64, rec Record, values Record) []func() {
	var pending []func()
	for field, value := range values {
		if field == "id" {
			continue
		}
		if inv, ok := st.one2many[model][field]; ok {
			commands := asList(value)
			pending = append(pending, func() { st.applyOne2Many(inv, id, commands) })
			continue
		}
		if _, ok := st.many2one[model][field]; ok {
			rec[field] = toInt(value)
			continue
		}
		if st.isMany2Many(model, field) {
			rec[field] = applyMany2Many(toIDs(rec[field]), value)
			continue
		}
		rec[field] = value
	}
	return pending
}

func (st *Store) applyOne2Many(inv inverse, parent int64, commands []any) {
	for _, raw := range commands {
		cmd := asList(raw)
		if len(cmd) == 0 {
			continue
		}
		switch toInt(cmd[0]) {
		case 0:
			vals := asRecord(lastOf(cmd))
			vals[inv.field] = parent
			st.Insert(inv.model, vals)
		case 1:
			_ = st.Update(inv.model, toInt(cmd[1]), asRecord(lastOf(cmd)))
		case 2, 3:
			st.Delete(inv.model, toInt(cmd[1]))
		case 6:
			keep := map[int64]bool{}
			for _, cid := range toIDs(lastOf(cmd)) {
				keep[cid] = true
				_ = st.Update(inv.model, cid, Record{inv.field: parent})
			}
			for _, cid := range st.Select(inv.model, []any{[]any{inv.field, "=", parent}}) {
				if !keep[cid] {
					st.Delete(inv.model, cid)
				}
			}
		}
	}
}

func applyMany2Many(current []int64, value any) []int64 {
	list := asList(value)
	if len(list) == 0 {
		if value == nil || value == false {
			return []int64{}
		}
		return current
	}
	if _, isCmd := list[0].([]any); !isCmd {
		return toIDs(list)
	}
	out := append([]int64{}, current...)
	for _, raw := range list {
		cmd := asList(raw)
		if len(cmd) == 0 {
			continue
		}
		switch toInt(cmd[0]) {
		case 3:
			out = removeID(out, toInt(cmd[1]))
		case 4:
			out = append(removeID(out, toInt(cmd[1])), toInt(cmd[1]))
		case 5:
			out = []int64{}
		case 6:
			out = toIDs(lastOf(cmd))
		}
	}
	return out
}

func removeID(ids []int64, id int64) []int64 {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// render projects a record for the wire: many2one as [id, name], one2many as ids.
func (st *Store) render(model string, rec Record, fields []string) Record {
	if len(fields) == 0 {
		fields = make([]string, 0, len(rec))
		for k := range rec {
			fields = append(fields, k)
		}
		for k := range st.one2many[model] {
			fields = append(fields, k)
		}
	}
	out := Record{"id": rec["id"]}
	id := toInt(rec["id"])
	for _, field := range fields {
		if comodel, ok := st.many2one[model][field]; ok {
			ref := toInt(rec[field])
			if ref == 0 {
				out[field] = false
				continue
			}
			out[field] = []any{ref, st.displayName(comodel, ref)}
			continue
		}
		if _, ok := st.one2many[model][field]; ok {
			out[field] = st.Children(model, id, field)
			continue
		}
		value, ok := rec[field]
		if !ok || value == nil {
			if st.isMany2Many(model, field) {
				out[field] = []int64{}
			} else {
				out[field] = false
			}
			continue
		}
		out[field] = value
	}
	return out
}

func (st *Store) isMany2Many(model, field string) bool {
	return st.many2many[model][field] || strings.HasSuffix(field, "_ids")
}

func (st *Store) displayName(model string, id int64) string {
	rec, ok := st.Find(model, id)
	if !ok {
		return fmt.Sprintf("%s,%d", model, id)
	}
	for _, key := range []string{"display_name", "name"} {
		if s, ok := rec[key].(string); ok && s != "" {
			return s
		}
	}
	return fmt.Sprintf("%s,%d", model, id)
}

func (st *Store) sorted(model string, ids []int64, order string) {
	if order == "" {
		return
	}
	first := strings.TrimSpace(strings.Split(order, ",")[0])
	parts := strings.Fields(first)
	field := parts[0]
	desc := len(parts) > 1 && strings.EqualFold(parts[1], "desc")
	sort.SliceStable(ids, func(i, j int) bool {
		a := st.fieldValue(model, st.records[model][ids[i]], field)
		b := st.fieldValue(model, st.records[model][ids[j]], field)
		c := compare(a, b)
		if c == 0 {
			c = compare(ids[i], ids[j])
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
}
