// Package format renders list values for display: text coercion, ISO dates and
// localized money amounts.
package format

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// ISOLayout is the layout of dates exchanged with the backend.
const ISOLayout = "2006-01-02"

// DisplayLayout is the layout dates are shown with.
const DisplayLayout = "02/01/2006"

// DefaultLocale is the locale the desks run in.
var DefaultLocale = language.MustParse("es-AR")

// Kind selects how a cell is rendered.
type Kind string

const (
	KindText   Kind = "text"
	KindMoney  Kind = "money"
	KindDate   Kind = "date"
	KindStatus Kind = "status"
	KindBool   Kind = "bool"
)

// Text coerces any decoded JSON value into a string. nil becomes "".
func Text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339)
	case decimal.Decimal:
		return x.String()
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// ISODate extracts the YYYY-MM-DD token of a date value. The first token before
// any time component is used and no timezone conversion is performed.
func ISODate(v any) (string, bool) {
	if t, ok := v.(time.Time); ok {
		if t.IsZero() {
			return "", false
		}
		return t.Format(ISOLayout), true
	}
	raw := strings.TrimSpace(Text(v))
	if i := strings.IndexAny(raw, "T "); i >= 0 {
		raw = raw[:i]
	}
	if len(raw) != len(ISOLayout) {
		return "", false
	}
	if _, err := time.Parse(ISOLayout, raw); err != nil {
		return "", false
	}
	return raw, true
}

// DisplayDate renders an ISO date as DD/MM/YYYY. Invalid input is returned as is.
func DisplayDate(v any) string {
	iso, ok := ISODate(v)
	if !ok {
		return Text(v)
	}
	t, err := time.Parse(ISOLayout, iso)
	if err != nil {
		return iso
	}
	return t.Format(DisplayLayout)
}

// Amount converts a decoded JSON value into a decimal.
func Amount(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, true
	case float64:
		return decimal.NewFromFloat(x), true
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int64:
		return decimal.NewFromInt(x), true
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(x))
		return d, err == nil
	default:
		return decimal.Zero, false
	}
}

// Money renders an amount in the given ISO currency and locale, e.g. "$ 1.234,50".
// Unknown currency codes are used verbatim as the symbol with two decimals.
func Money(amount decimal.Decimal, code string, tag language.Tag) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	printer := message.NewPrinter(tag)
	scale := 2
	symbol := code
	if unit, err := currency.ParseISO(code); err == nil {
		scale, _ = currency.Standard.Rounding(unit)
		symbol = printer.Sprint(currency.NarrowSymbol(unit))
	}
	rounded := amount.Round(int32(scale))

	var b strings.Builder
	if rounded.IsNegative() {
		b.WriteByte('-')
	}
	if symbol != "" {
		b.WriteString(symbol)
		b.WriteByte(' ')
	}
	b.WriteString(digits(printer, rounded.Abs(), scale))
	return b.String()
}

var maxExactInt = decimal.NewFromInt(math.MaxInt64)

// digits formats a non-negative amount without going through float64: the
// printer groups the integer part and the fraction digits are copied from the
// decimal itself.
func digits(printer *message.Printer, amount decimal.Decimal, scale int) string {
	whole := amount.Truncate(0)
	if whole.GreaterThan(maxExactInt) {
		value, _ := amount.Float64()
		return printer.Sprint(number.Decimal(value, number.Scale(scale)))
	}
	grouped := printer.Sprint(number.Decimal(whole.IntPart(), number.Scale(scale)))
	if scale <= 0 {
		return grouped
	}
	fixed := amount.StringFixed(int32(scale))
	fraction := fixed[len(fixed)-scale:]
	runes := []rune(grouped)
	if len(runes) < scale {
		return grouped
	}
	return string(runes[:len(runes)-scale]) + fraction
}

// Cell renders a value for a table column of the given kind.
func Cell(v any, kind Kind, code string, tag language.Tag) string {
	switch kind {
	case KindMoney:
		amount, ok := Amount(v)
		if !ok {
			return Text(v)
		}
		return Money(amount, code, tag)
	case KindDate:
		return DisplayDate(v)
	case KindBool:
		if b, ok := v.(bool); ok {
			if b {
				return "Sí"
			}
			return "No"
		}
		return Text(v)
	default:
		return Text(v)
	}
}
