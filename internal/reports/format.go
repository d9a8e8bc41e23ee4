package reports

import (
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/evergreen-media/backstage/internal/money"
)

var usdPrinter = message.NewPrinter(language.AmericanEnglish)

// FormatUSD renders an amount for display, e.g. "$1,234.56". Display-only:
// the engine never consumes formatted values.
func FormatUSD(a money.Amount) string {
	return usdPrinter.Sprint(currency.NarrowSymbol(currency.USD.Amount(a.Float64())))
}

// FormatUSDPtr renders an optional amount; unknown values stay blank
// rather than showing as $0.00.
func FormatUSDPtr(a *money.Amount) string {
	if a == nil {
		return ""
	}
	return FormatUSD(*a)
}
