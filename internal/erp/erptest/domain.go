package erptest

import (
	"strings"
)

func (st *Store) matches(model string, rec Record, domain []any) bool {
	result := true
	for pos := 0; pos < len(domain); {
		ok, next := st.evalExpr(model, rec, domain, pos)
		result = result && ok
		pos = next
	}
	return result
}

func (st *Store) evalExpr(model string, rec Record, domain []any, pos int) (bool, int) {
	if pos >= len(domain) {
		return true, pos
	}
	switch tok := domain[pos].(type) {
	case string:
		switch tok {
		case "!":
			ok, next := st.evalExpr(model, rec, domain, pos+1)
			return !ok, next
		case "&", "|":
			left, next := st.evalExpr(model, rec, domain, pos+1)
			right, end := st.evalExpr(model, rec, domain, next)
			if tok == "&" {
				return left && right, end
			}
			return left || right, end
		}
	case []any:
		return st.term(model, rec, tok), pos + 1
	}
	return true, pos + 1
}

func (st *Store) term(model string, rec Record, t []any) bool {
	if len(t) != 3 {
		return true
	}
	field, _ := t[0].(string)
	op, _ := t[1].(string)
	value := t[2]
	left := st.fieldValue(model, rec, field)

	if ids, ok := left.([]int64); ok {
		hit := false
		for _, id := range ids {
			if st.compareOp(id, op, value) {
				hit = true
				break
			}
		}
		if op == "not in" || op == "!=" {
			for _, id := range ids {
				if !st.compareOp(id, op, value) {
					return false
				}
			}
			return true
		}
		return hit
	}
	return st.compareOp(left, op, value)
}

func (st *Store) compareOp(left any, op string, value any) bool {
	switch op {
	case "=", "child_of":
		return equal(left, value)
	case "!=", "<>":
		return !equal(left, value)
	case "in":
		for _, v := range asList(value) {
			if equal(left, v) {
				return true
			}
		}
		return false
	case "not in":
		for _, v := range asList(value) {
			if equal(left, v) {
				return false
			}
		}
		return true
	case "<":
		return normalize(left) != nil && compare(left, value) < 0
	case "<=":
		return normalize(left) != nil && compare(left, value) <= 0
	case ">":
		return normalize(left) != nil && compare(left, value) > 0
	case ">=":
		return normalize(left) != nil && compare(left, value) >= 0
	case "like", "ilike", "=like", "=ilike":
		s, _ := left.(string)
		pattern, _ := value.(string)
		if strings.HasPrefix(op, "=") {
			if op == "=ilike" {
				return strings.EqualFold(s, pattern)
			}
			return s == pattern
		}
		if op == "ilike" {
			return strings.Contains(strings.ToLower(s), strings.ToLower(pattern))
		}
		return strings.Contains(s, pattern)
	}
	return false
}

// fieldValue resolves dotted paths through many2one links and normalises
// relational values to ids.
func (st *Store) fieldValue(model string, rec Record, path string) any {
	if rec == nil {
		return nil
	}
	field, rest, nested := strings.Cut(path, ".")
	if comodel, ok := st.many2one[model][field]; ok {
		ref := toInt(rec[field])
		if ref == 0 {
			return nil
		}
		if !nested {
			return ref
		}
		target, _ := st.Find(comodel, ref)
		return st.fieldValue(comodel, target, rest)
	}
	if _, ok := st.one2many[model][field]; ok {
		return st.Children(model, toInt(rec["id"]), field)
	}
	if st.isMany2Many(model, field) {
		return toIDs(rec[field])
	}
	return rec[field]
}
