package erptest

import (
	"strings"
)

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}

func toInt(v any) int64 {
	if list, ok := v.([]any); ok && len(list) > 0 {
		v = list[0]
	}
	f, _ := toFloat(v)
	return int64(f)
}

// Float reads a numeric field, treating unset values as zero.
func Float(v any) float64 {
	f, _ := toFloat(v)
	return f
}

// ID reads a relational field as an id.
func ID(v any) int64 { return toInt(v) }

func toIDs(v any) []int64 {
	switch ids := v.(type) {
	case []int64:
		return append([]int64{}, ids...)
	case []int:
		out := make([]int64, 0, len(ids))
		for _, id := range ids {
			out = append(out, int64(id))
		}
		return out
	case []any:
		out := make([]int64, 0, len(ids))
		for _, id := range ids {
			out = append(out, toInt(id))
		}
		return out
	}
	return []int64{}
}

func asList(v any) []any {
	switch list := v.(type) {
	case []any:
		return list
	case []int64:
		out := make([]any, 0, len(list))
		for _, id := range list {
			out = append(out, id)
		}
		return out
	case []int:
		out := make([]any, 0, len(list))
		for _, id := range list {
			out = append(out, id)
		}
		return out
	case []string:
		out := make([]any, 0, len(list))
		for _, s := range list {
			out = append(out, s)
		}
		return out
	}
	return nil
}

func asRecord(v any) Record {
	switch m := v.(type) {
	case Record:
		out := Record{}
		for k, val := range m {
			out[k] = val
		}
		return out
	case map[string]any:
		out := Record{}
		for k, val := range m {
			out[k] = val
		}
		return out
	}
	return Record{}
}

func lastOf(list []any) any {
	if len(list) == 0 {
		return nil
	}
	return list[len(list)-1]
}

func normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case bool:
		if !x {
			return nil
		}
		return true
	case []any:
		if len(x) == 0 {
			return nil
		}
		return normalize(x[0])
	case string:
		return x
	}
	if f, ok := toFloat(v); ok {
		return f
	}
	return v
}

func equal(a, b any) bool {
	na, nb := normalize(a), normalize(b)
	if na == nil || nb == nil {
		return na == nil && nb == nil
	}
	return compare(na, nb) == 0 && sameKind(na, nb)
}

func sameKind(a, b any) bool {
	switch a.(type) {
	case float64:
		_, ok := b.(float64)
		return ok
	case string:
		_, ok := b.(string)
		return ok
	case bool:
		_, ok := b.(bool)
		return ok
	}
	return false
}

func compare(a, b any) int {
	na, nb := normalize(a), normalize(b)
	switch {
	case na == nil && nb == nil:
		return 0
	case na == nil:
		return -1
	case nb == nil:
		return 1
	}
	fa, aNum := na.(float64)
	fb, bNum := nb.(float64)
	if aNum && bNum {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	sa, aStr := na.(string)
	sb, bStr := nb.(string)
	if aStr && bStr {
		return strings.Compare(sa, sb)
	}
	return 0
}
