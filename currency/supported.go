// Package currency converts and formats amounts between the currencies
// offered in the display currency selector.
package currency

import "strings"

// Currency is one entry of the selector list.
type Currency struct {
	Code   string `json:"code"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// Supported is the fixed list of selectable display currencies.
var Supported = []Currency{
	{"USD", "$", "US Dollar"},
	{"EUR", "€", "Euro"},
	{"GBP", "£", "British Pound"},
	{"JPY", "¥", "Japanese Yen"},
	{"INR", "₹", "Indian Rupee"},
	{"CAD", "C$", "Canadian Dollar"},
	{"AUD", "A$", "Australian Dollar"},
	{"CHF", "CHF", "Swiss Franc"},
	{"CNY", "¥", "Chinese Yuan"},
	{"SEK", "kr", "Swedish Krona"},
	{"NZD", "NZ$", "New Zealand Dollar"},
	{"MXN", "MX$", "Mexican Peso"},
	{"SGD", "S$", "Singapore Dollar"},
	{"HKD", "HK$", "Hong Kong Dollar"},
	{"KRW", "₩", "South Korean Won"},
	{"BRL", "R$", "Brazilian Real"},
	{"ZAR", "R", "South African Rand"},
}

// Lookup returns the selector entry for code, case-insensitive.
func Lookup(code string) (Currency, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, c := range Supported {
		if c.Code == code {
			return c, true
		}
	}
	return Currency{}, false
}

// IsSupported reports whether code is in the selector list.
func IsSupported(code string) bool {
	_, ok := Lookup(code)
	return ok
}
