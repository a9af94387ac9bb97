package currency

import "strings"

// Unknown is returned when a raw currency value cannot be mapped to an ISO
// 4217 code.
const Unknown = "UNKNOWN"

// Symbols and textual names seen in model output, mapped to ISO 4217 codes.
// Keys are matched after lower-casing and trimming.
var lookup = map[string]string{
	// Symbols
	"$":  "USD",
	"€":  "EUR",
	"£":  "GBP",
	"¥":  "JPY",
	"₹":  "INR",
	"₽":  "RUB",
	"₩":  "KRW",
	"฿":  "THB",
	"₺":  "TRY",
	"₫":  "VND",
	"₴":  "UAH",
	"zł": "PLN",
	"kr": "SEK",

	// Textual names and local spellings
	"dollar":  "USD",
	"dollars": "USD",
	"usd$":    "USD",
	"us$":     "USD",
	"euro":    "EUR",
	"euros":   "EUR",
	"pound":   "GBP",
	"pounds":  "GBP",
	"yen":     "JPY",
	"円":       "JPY",
	"rub":     "RUB",
	"руб":     "RUB",
	"руб.":    "RUB",
	"рубль":   "RUB",
	"рублей":  "RUB",
	"won":     "KRW",
	"원":       "KRW",
	"rupee":   "INR",
	"rupees":  "INR",
	"baht":    "THB",
	"yuan":    "CNY",
	"rmb":     "CNY",
	"元":       "CNY",
	"zloty":   "PLN",
	"hryvnia": "UAH",
	"грн":     "UAH",
}

// isoCodes is the accepted set for 3-letter pass-through. A random
// alphabetic triple from model output ("foo") must not survive as a
// currency.
var isoCodes = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "JPY": true, "CNY": true,
	"KRW": true, "INR": true, "RUB": true, "THB": true, "TRY": true,
	"VND": true, "UAH": true, "PLN": true, "SEK": true, "NOK": true,
	"DKK": true, "CHF": true, "CAD": true, "AUD": true, "NZD": true,
	"SGD": true, "HKD": true, "TWD": true, "MYR": true, "IDR": true,
	"PHP": true, "BRL": true, "MXN": true, "ARS": true, "CLP": true,
	"COP": true, "PEN": true, "ZAR": true, "EGP": true, "AED": true,
	"SAR": true, "ILS": true, "CZK": true, "HUF": true, "RON": true,
	"BGN": true, "GEL": true, "KZT": true,
}

// Normalize maps a raw currency value from model output to an ISO 4217 code.
// Already-valid 3-letter codes pass through case-insensitively; known
// symbols and currency names go through the lookup table; anything else is
// Unknown.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Unknown
	}

	if code, ok := lookup[strings.ToLower(s)]; ok {
		return code
	}

	if code := strings.ToUpper(s); isoCodes[code] {
		return code
	}

	return Unknown
}
