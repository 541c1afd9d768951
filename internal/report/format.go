package report

import (
	"math"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// missing is printed for undefined or non-finite values.
const missing = "-"

// printer groups thousands with commas.
var printer = message.NewPrinter(language.English)

// Money formats v with two decimals and comma separators, e.g.
// "-1,234,567.89".
func Money(v float64) string {
	if !finite(v) {
		return missing
	}
	return fixed2(decimal.NewFromFloat(v))
}

// Quantity formats a share quantity with up to six decimals.
func Quantity(v float64) string {
	if !finite(v) {
		return missing
	}
	return decimal.NewFromFloat(v).Round(6).String()
}

// Percent formats a fraction as a percentage with two decimals, e.g.
// 0.1234 as "12.34%".
func Percent(frac float64) string {
	if !finite(frac) {
		return missing
	}
	return fixed2(decimal.NewFromFloat(frac).Shift(2)) + "%"
}

// Ratio formats an optional ratio with three decimals.
func Ratio(v *float64) string {
	if v == nil || !finite(*v) {
		return missing
	}
	return decimal.NewFromFloat(*v).StringFixed(3)
}

// fixed2 rounds d to cents and groups thousands.
func fixed2(d decimal.Decimal) string {
	f, _ := d.Round(2).Float64()
	if f == 0 {
		f = 0 // drop the sign of negative zero
	}
	return printer.Sprintf("%.2f", f)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
