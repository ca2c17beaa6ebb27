// Package format renders amounts for tables, reports and CSV exports.
package format

import (
	"math"
	"strings"

	"github.com/iwvelando/sprint-budget/pkg/constants"
	"github.com/iwvelando/sprint-budget/pkg/mathutil"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Currency returns a currency string with the given symbol and thousands
// separators (e.g., "-$1,234.56"). An empty symbol falls back to the default.
func Currency(symbol string, amount float64) string {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		symbol = constants.DefaultCurrency
	}
	formatted := NumericCurrency(math.Abs(amount))
	if mathutil.Round(amount) < 0 {
		return "-" + symbol + formatted
	}
	return symbol + formatted
}

// NumericCurrency returns a currency string without a symbol but with separators (e.g., "-1,234.56").
func NumericCurrency(amount float64) string {
	return printer.Sprintf("%.2f", mathutil.Round(amount))
}

// Percent renders a percentage with one decimal place (e.g., "60.0%").
func Percent(value float64) string {
	return printer.Sprintf("%.1f%%", value)
}
