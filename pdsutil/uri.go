package pdsutil

import (
	"net/url"
	"strings"
)

// EncodeURIComponent percent-encodes everything but the unreserved characters
// A-Z a-z 0-9 - _ . ~, with spaces as %20.
func EncodeURIComponent(s string) string {
	// QueryEscape already writes a literal '+' as %2B, so any '+' left is a space
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
