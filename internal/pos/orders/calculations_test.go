package orders

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestLineTotals(t *testing.T) {
	cases := []struct {
		name               string
		qty, price, disc   string
		rates              []decimal.Decimal
		wantSub, wantTotal string
	}{
		{"plain", "2", "50", "0", nil, "100", "100"},
		{"discounted", "2", "50", "10", nil, "90", "90"},
		{"taxed", "1", "80", "0", []decimal.Decimal{dec("21")}, "80", "96.8"},
		{"clamped discount", "1", "80", "150", []decimal.Decimal{dec("21")}, "0", "0"},
		{"rounded", "3", "9.99", "12.5", nil, "26.22", "26.22"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sub, incl := LineTotals(dec(tc.qty), dec(tc.price), dec(tc.disc), tc.rates)
			assert.True(t, sub.Equal(dec(tc.wantSub)), "subtotal %s", sub)
			assert.True(t, incl.Equal(dec(tc.wantTotal)), "total %s", incl)
		})
	}
}

func TestFixedToPercent(t *testing.T) {
	assert.True(t, FixedToPercent(dec("10"), dec("100")).Equal(dec("10")))
	assert.True(t, FixedToPercent(dec("500"), dec("100")).Equal(dec("100")))
	assert.True(t, FixedToPercent(dec("5"), decimal.Zero).IsZero())
}

func TestSplitEven(t *testing.T) {
	shares := SplitEven(dec("10"), 3)
	assert.Len(t, shares, 3)
	assert.Equal(t, "3.33", shares[0].String())
	assert.Equal(t, "3.34", shares[2].String())
	assert.Nil(t, SplitEven(dec("1"), 0))
}
