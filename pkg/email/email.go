package email

import (
	"strings"
	"unicode"
)

// GreetingName picks the name used in "Dear ..." lines: the first word of the
// full name when known, otherwise the leading token of the address's local part.
func GreetingName(fullName, address string) string {
	if fields := strings.Fields(fullName); len(fields) > 0 {
		return capitalize(fields[0])
	}

	localPart := address
	if at := strings.IndexByte(address, '@'); at > 0 {
		localPart = address[:at]
	}
	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+' || unicode.IsDigit(r)
	})
	if len(parts) == 0 || strings.Contains(parts[0], "@") {
		return "Landlord"
	}
	return capitalize(parts[0])
}

// IsPlausibleAddress is a cheap shape check before handing an address to SMTP.
func IsPlausibleAddress(address string) bool {
	at := strings.LastIndexByte(address, '@')
	return at > 0 && at < len(address)-1 && !strings.ContainsAny(address, " \r\n") &&
		strings.Contains(address[at:], ".")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
