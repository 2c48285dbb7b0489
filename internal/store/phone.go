package store

import (
	"strings"

	"github.com/JonMunkholm/guarantor/internal/merge"
)

// CountryCode is prefixed to local mobile numbers.
const CountryCode = "92"

// InternationalPhone rewrites a local number into digits-only international
// form: "0300-1111111" becomes "923001111111". Ten and eleven digit numbers
// get the country code in place of a leading 0; longer numbers already
// starting with the country code are kept. ok is false when there is
// nothing to dial.
func InternationalPhone(phone string) (string, bool) {
	phone = strings.TrimSpace(phone)
	if phone == "" || phone == "-" {
		return "", false
	}
	digits := merge.NormalizeIDString(phone)
	if digits == "" {
		return "", false
	}

	if len(digits) == 10 || len(digits) == 11 {
		return CountryCode + strings.TrimPrefix(digits, "0"), true
	}
	if strings.HasPrefix(digits, CountryCode) {
		return digits, true
	}
	return CountryCode + digits, true
}

// CallLink returns a tel: URI for phone, or "" when it has no digits.
func CallLink(phone string) string {
	n, ok := InternationalPhone(phone)
	if !ok {
		return ""
	}
	return "tel:+" + n
}

// WhatsAppLink returns a wa.me chat link for phone, or "".
func WhatsAppLink(phone string) string {
	n, ok := InternationalPhone(phone)
	if !ok {
		return ""
	}
	return "https://wa.me/" + n
}
