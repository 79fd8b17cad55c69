package domain

// ============================================================
// Reference data: currencies and countries
// ============================================================

// CurrencyInfo is display metadata for a currency code.
type CurrencyInfo struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Flag   string `json:"flag"`
	Symbol string `json:"symbol"`
}

// CountryInfo is display metadata for a country code.
type CountryInfo struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Flag string `json:"flag"`
}

const (
	unknownCurrencyFlag = "💱"
	unknownCountryFlag  = "🌍"
)

// Currencies is the ordered list of currencies offered for transfers.
var Currencies = []CurrencyInfo{
	{Code: "USD", Name: "US Dollar", Flag: "🇺🇸", Symbol: "$"},
	{Code: "EUR", Name: "Euro", Flag: "🇪🇺", Symbol: "€"},
	{Code: "GBP", Name: "British Pound", Flag: "🇬🇧", Symbol: "£"},
	{Code: "CAD", Name: "Canadian Dollar", Flag: "🇨🇦", Symbol: "CA$"},
	{Code: "AUD", Name: "Australian Dollar", Flag: "🇦🇺", Symbol: "A$"},
	{Code: "JPY", Name: "Japanese Yen", Flag: "🇯🇵", Symbol: "¥"},
	{Code: "NGN", Name: "Nigerian Naira", Flag: "🇳🇬", Symbol: "₦"},
	{Code: "INR", Name: "Indian Rupee", Flag: "🇮🇳", Symbol: "₹"},
	{Code: "MXN", Name: "Mexican Peso", Flag: "🇲🇽", Symbol: "MX$"},
	{Code: "PHP", Name: "Philippine Peso", Flag: "🇵🇭", Symbol: "₱"},
}

// Countries is the ordered list of recipient countries.
var Countries = []CountryInfo{
	{Code: "US", Name: "United States", Flag: "🇺🇸"},
	{Code: "UK", Name: "United Kingdom", Flag: "🇬🇧"},
	{Code: "EU", Name: "European Union", Flag: "🇪🇺"},
	{Code: "CA", Name: "Canada", Flag: "🇨🇦"},
	{Code: "AU", Name: "Australia", Flag: "🇦🇺"},
	{Code: "JP", Name: "Japan", Flag: "🇯🇵"},
	{Code: "NG", Name: "Nigeria", Flag: "🇳🇬"},
	{Code: "IN", Name: "India", Flag: "🇮🇳"},
	{Code: "MX", Name: "Mexico", Flag: "🇲🇽"},
	{Code: "PH", Name: "Philippines", Flag: "🇵🇭"},
}

var (
	currencyByCode = indexCurrencies(Currencies)
	countryByCode  = indexCountries(Countries)
)

func indexCurrencies(list []CurrencyInfo) map[string]CurrencyInfo {
	m := make(map[string]CurrencyInfo, len(list))
	for _, c := range list {
		m[c.Code] = c
	}
	return m
}

func indexCountries(list []CountryInfo) map[string]CountryInfo {
	m := make(map[string]CountryInfo, len(list))
	for _, c := range list {
		m[c.Code] = c
	}
	return m
}

// LookupCurrency returns display metadata for code. Unknown codes fall back to
// the code itself as name and symbol.
func LookupCurrency(code string) CurrencyInfo {
	if c, ok := currencyByCode[code]; ok {
		return c
	}
	return CurrencyInfo{Code: code, Name: code, Flag: unknownCurrencyFlag, Symbol: code}
}

// LookupCountry returns display metadata for code, with a globe flag for
// unknown codes.
func LookupCountry(code string) CountryInfo {
	if c, ok := countryByCode[code]; ok {
		return c
	}
	return CountryInfo{Code: code, Name: code, Flag: unknownCountryFlag}
}
