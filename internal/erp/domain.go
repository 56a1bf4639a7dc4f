package erp

import "encoding/json"

// Domain is a search filter in prefix notation: a list of
// [field, operator, value] terms and "&", "|", "!" operators.
type Domain []any

// Where starts a domain with a single term.
func Where(field, op string, value any) Domain {
	return Domain{[]any{field, op, value}}
}

// And appends a term, implicitly joined with AND.
func (d Domain) And(field, op string, value any) Domain {
	out := make(Domain, 0, len(d)+1)
	out = append(out, d...)
	return append(out, []any{field, op, value})
}

// Or joins domains with OR.
func Or(domains ...Domain) Domain {
	var out Domain
	for i := 1; i < len(domains); i++ {
		out = append(out, "|")
	}
	for _, d := range domains {
		out = append(out, d.normalized()...)
	}
	return out
}

// normalized makes implicit ANDs explicit so the domain can be nested.
func (d Domain) normalized() Domain {
	terms := 0
	for _, item := range d {
		if _, ok := item.(string); !ok {
			terms++
		}
	}
	var ops int
	for _, item := range d {
		if s, ok := item.(string); ok && (s == "&" || s == "|") {
			ops++
		}
	}
	out := make(Domain, 0, len(d)+terms)
	for i := ops; i < terms-1; i++ {
		out = append(out, "&")
	}
	return append(out, d...)
}

// MarshalJSON renders an empty domain as [] instead of null.
func (d Domain) MarshalJSON() ([]byte, error) {
	if len(d) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal([]any(d))
}

// CmdCreate is the x2many command creating a linked record.
func CmdCreate(values map[string]any) []any { return []any{0, 0, values} }

// CmdUpdate is the x2many command updating a linked record.
func CmdUpdate(id int64, values map[string]any) []any { return []any{1, id, values} }

// CmdDelete is the x2many command deleting a linked record.
func CmdDelete(id int64) []any { return []any{2, id, 0} }

// CmdSet is the x2many command replacing the linked set.
func CmdSet(ids []int64) []any {
	if ids == nil {
		ids = []int64{}
	}
	return []any{6, 0, ids}
}
