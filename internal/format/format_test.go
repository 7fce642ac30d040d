package format

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestText(t *testing.T) {
	assert.Equal(t, "", Text(nil))
	assert.Equal(t, "abc", Text("abc"))
	assert.Equal(t, "1500", Text(float64(1500)))
	assert.Equal(t, "12.5", Text(12.5))
	assert.Equal(t, "42", Text(json.Number("42")))
	assert.Equal(t, "true", Text(true))
	assert.Equal(t, "[a b]", Text([]string{"a", "b"}))
}

func TestISODate(t *testing.T) {
	cases := []struct {
		in   any
		want string
		ok   bool
	}{
		{"2024-03-05", "2024-03-05", true},
		{"2024-03-05T10:11:12Z", "2024-03-05", true},
		{"2024-03-05 10:11:12", "2024-03-05", true},
		{"05/03/2024", "", false},
		{"2024-13-01", "", false},
		{"", "", false},
		{nil, "", false},
		{float64(20240305), "", false},
		{time.Date(2024, 3, 5, 23, 0, 0, 0, time.UTC), "2024-03-05", true},
	}
	for _, tc := range cases {
		got, ok := ISODate(tc.in)
		assert.Equal(t, tc.ok, ok, "%v", tc.in)
		assert.Equal(t, tc.want, got, "%v", tc.in)
	}
}

func TestDisplayDate(t *testing.T) {
	assert.Equal(t, "05/03/2024", DisplayDate("2024-03-05T00:00:00"))
	assert.Equal(t, "sin fecha", DisplayDate("sin fecha"))
}

func TestAmount(t *testing.T) {
	d, ok := Amount("1234.50")
	assert.True(t, ok)
	assert.True(t, d.Equal(decimal.RequireFromString("1234.5")))

	d, ok = Amount(json.Number("-3"))
	assert.True(t, ok)
	assert.True(t, d.Equal(decimal.NewFromInt(-3)))

	_, ok = Amount("n/a")
	assert.False(t, ok)
	_, ok = Amount(nil)
	assert.False(t, ok)
}

func TestMoneyEnglish(t *testing.T) {
	assert.Equal(t, "$ 1,234.50", Money(decimal.RequireFromString("1234.5"), "usd", language.AmericanEnglish))
	assert.Equal(t, "-$ 12.00", Money(decimal.NewFromInt(-12), "USD", language.AmericanEnglish))
	assert.Equal(t, "€ 0.99", Money(decimal.RequireFromString("0.994"), "EUR", language.AmericanEnglish))
}

func TestMoneySymbolsFollowLocale(t *testing.T) {
	assert.Equal(t, "€ 3,00", Money(decimal.NewFromInt(3), "EUR", DefaultLocale))
	assert.Equal(t, "¥ 1,235", Money(decimal.RequireFromString("1234.6"), "JPY", language.AmericanEnglish))
	assert.Equal(t, "XYZ 1.00", Money(decimal.NewFromInt(1), "xyz", language.AmericanEnglish))
}

func TestMoneySpanish(t *testing.T) {
	assert.Equal(t, "$ 1.234.567,50", Money(decimal.RequireFromString("1234567.5"), "ARS", DefaultLocale))
	assert.Equal(t, "$ 90.071.992.547.409,93", Money(decimal.RequireFromString("90071992547409.93"), "ARS", DefaultLocale))
	assert.Equal(t, "-$ 0,05", Money(decimal.RequireFromString("-0.049"), "ARS", DefaultLocale))
}

func TestCell(t *testing.T) {
	assert.Equal(t, "05/03/2024", Cell("2024-03-05", KindDate, "", DefaultLocale))
	assert.Equal(t, "Sí", Cell(true, KindBool, "", DefaultLocale))
	assert.Equal(t, "pendiente", Cell("pendiente", KindMoney, "ARS", DefaultLocale))
	assert.Equal(t, "$ 10.00", Cell(float64(10), KindMoney, "USD", language.AmericanEnglish))
}
