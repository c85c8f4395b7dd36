package country

// Static reference tables for country resolution. All three tables are
// read-only after process start; no mutation paths exist.

// countryNames maps lowercase country names (and common aliases) to ISO-2
// codes. Matching is whole-word and case-insensitive.
var countryNames = map[string]string{
	"france":         "FR",
	"germany":        "DE",
	"deutschland":    "DE",
	"united kingdom": "GB",
	"uk":             "GB",
	"britain":        "GB",
	"great britain":  "GB",
	"england":        "GB",
	"spain":          "ES",
	"italy":          "IT",
	"austria":        "AT",
	"switzerland":    "CH",
	"belgium":        "BE",
	"netherlands":    "NL",
	"holland":        "NL",
	"denmark":        "DK",
	"norway":         "NO",
	"sweden":         "SE",
	"finland":        "FI",
	"poland":         "PL",
	"czech republic": "CZ",
	"czechia":        "CZ",
	"hungary":        "HU",
	"portugal":       "PT",
	"ireland":        "IE",
	"greece":         "GR",
	"croatia":        "HR",
	"slovenia":       "SI",
	"slovakia":       "SK",
	"bulgaria":       "BG",
	"romania":        "RO",
	"estonia":        "EE",
	"latvia":         "LV",
	"lithuania":      "LT",
	"luxembourg":     "LU",
	"iceland":        "IS",
	"malta":          "MT",
	"cyprus":         "CY",
	"turkey":         "TR",
	"serbia":         "RS",
	"albania":        "AL",
	"montenegro":     "ME",
	"north macedonia": "MK",
	"bosnia":          "BA",
	"morocco":         "MA",
	"tunisia":         "TN",
	"united states":   "US",
	"usa":             "US",
	"america":         "US",
	"canada":          "CA",
}

// icaoPrefixes maps the first two letters of a four-letter ICAO airport code
// to the issuing country. Matching is lexical: any four-letter uppercase
// token whose first two letters appear here resolves, even if the full code
// is not a registered airport. That imprecision is accepted; validating
// against a live airport registry is out of scope.
var icaoPrefixes = map[string]string{
	"LF": "FR", // France (LFMD = Cannes-Mandelieu)
	"ED": "DE", // Germany, civil
	"ET": "DE", // Germany, military
	"EG": "GB",
	"LE": "ES",
	"LI": "IT",
	"LO": "AT",
	"LS": "CH",
	"EB": "BE",
	"EH": "NL",
	"EK": "DK",
	"EN": "NO",
	"ES": "SE",
	"EF": "FI",
	"EP": "PL",
	"LK": "CZ",
	"LH": "HU",
	"LP": "PT",
	"EI": "IE",
	"LG": "GR",
	"LD": "HR",
	"LJ": "SI",
	"LZ": "SK",
	"LB": "BG",
	"LR": "RO",
	"EE": "EE",
	"EV": "LV",
	"EY": "LT",
	"EL": "LU",
	"BI": "IS",
	"LM": "MT",
	"LC": "CY",
	"LT": "TR",
	"LY": "RS", // Serbia and Montenegro share the LY prefix
	"LA": "AL",
	"LW": "MK",
	"LQ": "BA",
	"GM": "MA",
	"DT": "TN",
}

// isoCodes is the set of ISO-2 codes the resolver accepts from bare
// two-letter tokens. Kept aligned with the corpus coverage rather than the
// full ISO 3166-1 table so that stray uppercase pairs ("OK", "TV") do not
// resolve to countries the corpus will never answer for.
var isoCodes = map[string]struct{}{
	"FR": {}, "DE": {}, "GB": {}, "ES": {}, "IT": {}, "AT": {}, "CH": {},
	"BE": {}, "NL": {}, "DK": {}, "NO": {}, "SE": {}, "FI": {}, "PL": {},
	"CZ": {}, "HU": {}, "PT": {}, "IE": {}, "GR": {}, "HR": {}, "SI": {},
	"SK": {}, "BG": {}, "RO": {}, "EE": {}, "LV": {}, "LT": {}, "LU": {},
	"IS": {}, "MT": {}, "CY": {}, "TR": {}, "RS": {}, "AL": {}, "ME": {},
	"MK": {}, "BA": {}, "MA": {}, "TN": {}, "US": {}, "CA": {},
}

// IsValidCode reports whether code is an ISO-2 code known to the resolver.
func IsValidCode(code string) bool {
	_, ok := isoCodes[code]
	return ok
}
