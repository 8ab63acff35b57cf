package notify

import "strings"

// DefaultCountryCode is prefixed to numbers given without one.
const DefaultCountryCode = "+91"

// NormalizePhone strips spaces and dashes and prefixes countryCode when the
// number has no leading '+'. An empty countryCode means DefaultCountryCode.
func NormalizePhone(raw, countryCode string) string {
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}
	phone := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '-':
			return -1
		}
		return r
	}, raw)
	if phone == "" {
		return ""
	}
	if !strings.HasPrefix(phone, "+") {
		phone = countryCode + phone
	}
	return phone
}
