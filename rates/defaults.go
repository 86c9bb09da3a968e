package rates

// DefaultRates is the built-in USD based table used before the first refresh
// and for codes the provider does not quote.
var DefaultRates = Table{
	"USD": 1,
	"EUR": 0.85,
	"GBP": 0.73,
	"JPY": 110,
	"INR": 74.5,
	"CAD": 1.25,
	"AUD": 1.35,
	"CHF": 0.92,
	"CNY": 6.45,
	"SEK": 8.6,
	"NZD": 1.4,
	"MXN": 20.1,
	"SGD": 1.35,
	"HKD": 7.77,
	"KRW": 1180,
	"BRL": 5.2,
	"ZAR": 14.5,
}
