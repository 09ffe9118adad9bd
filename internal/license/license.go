// Package license handles tenant addressing: turning a license token into the
// canonical storage key under which a tenant's data lives.
package license

import (
	"regexp"
	"strings"
)

// Prefix is the fixed leading segment of every license token.
const Prefix = "DJRQ"

const separator = "-"

// Display shape: DJRQ-XXXX-XXXX-XXXX, 16 alphanumeric characters in total.
var keyPattern = regexp.MustCompile(`^` + Prefix + `-[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}$`)

// Normalize uppercases and trims a license token for comparison and storage.
func Normalize(licenseKey string) string {
	return strings.ToUpper(strings.TrimSpace(licenseKey))
}

// PathKey converts a license token into its storage key by stripping the
// separator. It performs no validation and no case normalization; callers
// normalize first. Two tokens differing only by separator placement map to
// the same storage key.
func PathKey(licenseKey string) string {
	return strings.ReplaceAll(licenseKey, separator, "")
}

// Valid reports whether the token matches the license shape after
// normalization.
func Valid(licenseKey string) bool {
	return keyPattern.MatchString(Normalize(licenseKey))
}
