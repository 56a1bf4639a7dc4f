package erp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateTimeLayout is the wire format of datetime fields.
const DateTimeLayout = "2006-01-02 15:04:05"

var falseLiteral = []byte("false")

func isEmpty(data []byte) bool {
	data = bytes.TrimSpace(data)
	return len(data) == 0 || bytes.Equal(data, falseLiteral) || bytes.Equal(data, []byte("null"))
}

// Many2One is a relational reference, rendered by the ERP as [id, "name"] or false.
type Many2One struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Valid reports whether the reference points at a record.
func (m Many2One) Valid() bool { return m.ID > 0 }

// UnmarshalJSON accepts [id, name], a bare id, false, null, or the
// {id, name} object produced by MarshalJSON.
func (m *Many2One) UnmarshalJSON(data []byte) error {
	if isEmpty(data) {
		*m = Many2One{}
		return nil
	}
	data = bytes.TrimSpace(data)
	if data[0] == '{' {
		type plain Many2One
		var p plain
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("erp: many2one: %w", err)
		}
		*m = Many2One(p)
		return nil
	}
	if data[0] != '[' {
		var id float64
		if err := json.Unmarshal(data, &id); err != nil {
			return fmt.Errorf("erp: many2one: %w", err)
		}
		*m = Many2One{ID: int64(id)}
		return nil
	}
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("erp: many2one: %w", err)
	}
	*m = Many2One{}
	if len(pair) == 0 {
		return nil
	}
	var id float64
	if err := json.Unmarshal(pair[0], &id); err != nil {
		return fmt.Errorf("erp: many2one id: %w", err)
	}
	m.ID = int64(id)
	if len(pair) > 1 {
		var name Text
		if err := json.Unmarshal(pair[1], &name); err == nil {
			m.Name = string(name)
		}
	}
	return nil
}

// MarshalJSON renders the reference as an object, or null when unset.
func (m Many2One) MarshalJSON() ([]byte, error) {
	if !m.Valid() {
		return []byte("null"), nil
	}
	type plain Many2One
	return json.Marshal(plain(m))
}

// Text is a char field; the ERP sends false for empty values.
type Text string

// UnmarshalJSON maps false to the empty string.
func (t *Text) UnmarshalJSON(data []byte) error {
	if isEmpty(data) {
		*t = ""
		return nil
	}
	return json.Unmarshal(data, (*string)(t))
}

// String returns the text value.
func (t Text) String() string { return string(t) }

// Number is a float or monetary field. The ERP sends false for fields it
// has no value for; those decode to zero.
type Number struct {
	decimal.Decimal
}

// NewNumber wraps d.
func NewNumber(d decimal.Decimal) Number { return Number{Decimal: d} }

// UnmarshalJSON maps false and null to zero.
func (n *Number) UnmarshalJSON(data []byte) error {
	if isEmpty(data) {
		n.Decimal = decimal.Zero
		return nil
	}
	if err := n.Decimal.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("erp: number: %w", err)
	}
	return nil
}

// Time is a datetime field in UTC, false when unset.
type Time struct {
	time.Time
}

// UnmarshalJSON parses "2006-01-02 15:04:05" or a bare date.
func (t *Time) UnmarshalJSON(data []byte) error {
	if isEmpty(data) {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("erp: datetime: %w", err)
	}
	for _, layout := range []string{DateTimeLayout, time.DateOnly, time.RFC3339} {
		if parsed, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("erp: datetime: unrecognised value %q", raw)
}

// MarshalJSON renders RFC3339 or null.
func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339))
}

// FormatTime renders a time in the ERP wire format.
func FormatTime(t time.Time) string {
	return t.UTC().Format(DateTimeLayout)
}
