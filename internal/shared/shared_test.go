package shared

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatINR(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0", "₹0.00"},
		{"999", "₹999.00"},
		{"1000", "₹1,000.00"},
		{"30000", "₹30,000.00"},
		{"100000", "₹1,00,000.00"},
		{"1234567.89", "₹12,34,567.89"},
		{"10000000", "₹1,00,00,000.00"},
		{"-4500.5", "-₹4,500.50"},
	}
	for _, c := range cases {
		d, err := decimal.NewFromString(c.in)
		assert.NoError(t, err)
		assert.Equal(t, c.want, FormatINR(d), "FormatINR(%s)", c.in)
	}
}

func TestRoundINR(t *testing.T) {
	d := decimal.RequireFromString("1234.567")
	assert.True(t, RoundINR(d).Equal(decimal.RequireFromString("1234.57")))
}

func TestSameISTDay(t *testing.T) {
	// 2026-08-23 22:00 UTC is already 2026-08-24 03:30 IST.
	a := time.Date(2026, 8, 23, 22, 0, 0, 0, time.UTC)
	b := time.Date(2026, 8, 24, 9, 0, 0, 0, IST)
	assert.True(t, SameISTDay(a, b))

	c := time.Date(2026, 8, 23, 9, 0, 0, 0, IST)
	assert.False(t, SameISTDay(a, c))
}

func TestStartOfDayIST(t *testing.T) {
	ts := time.Date(2026, 8, 24, 1, 15, 0, 0, time.UTC) // 06:45 IST
	got := StartOfDayIST(ts)
	assert.Equal(t, time.Date(2026, 8, 24, 0, 0, 0, 0, IST), got)
}

func TestMonthKeyIST(t *testing.T) {
	// 2026-08-31 20:00 UTC crosses into September in IST.
	ts := time.Date(2026, 8, 31, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-09", MonthKeyIST(ts))
}

func TestFixedClockReportsIST(t *testing.T) {
	clock := FixedClock{T: time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)}
	assert.Equal(t, "IST", clock.Now().Location().String())
}
