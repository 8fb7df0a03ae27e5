// Package phone validates and reformats Kenyan mobile numbers.
package phone

import (
	"regexp"
	"strings"
)

var pattern = regexp.MustCompile(`^\+254[17]\d{8}$`)

// Valid reports whether p is a Safaricom/Airtel style +254 mobile number.
func Valid(p string) bool {
	return pattern.MatchString(p)
}

// Normalize rewrites 07.../01... and 254... forms into +254...; other input is returned trimmed.
func Normalize(raw string) string {
	p := strings.TrimSpace(raw)
	p = strings.ReplaceAll(p, " ", "")
	switch {
	case strings.HasPrefix(p, "0"):
		return "+254" + p[1:]
	case strings.HasPrefix(p, "254"):
		return "+" + p
	}
	return p
}

// MSISDN returns the number without the leading plus, the form the payment service expects.
func MSISDN(p string) string {
	return strings.TrimPrefix(Normalize(p), "+")
}
