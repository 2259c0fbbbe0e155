package utils

import "strings"

// FormatPhone normalizes a phone number to the +7XXXXXXXXXX form the rest of
// the system keys on: formatting characters are stripped, a leading 8 becomes
// +7, and a missing + is prepended.
func FormatPhone(phone string) string {
	r := strings.NewReplacer("(", "", ")", "", " ", "", "-", "")
	formatted := r.Replace(phone)
	switch {
	case strings.HasPrefix(formatted, "8"):
		formatted = "+7" + formatted[1:]
	case !strings.HasPrefix(formatted, "+"):
		formatted = "+" + formatted
	}
	return formatted
}
