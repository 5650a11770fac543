// Package util holds small string helpers shared by the other packages.
package util

import "strings"

// SafeTruncate returns at most the first maxLen bytes of s. It is used to log
// a recognisable prefix of a secret such as a grant code or access token.
// A negative maxLen yields "".
func SafeTruncate(s string, maxLen int) string {
	if maxLen < 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// CleanPath normalises a configured URL path prefix: it gains a leading
// slash and loses any trailing ones. "" and "/" both yield "".
//
//	CleanPath("oauth2/")  // "/oauth2"
//	CleanPath("/api")     // "/api"
//	CleanPath("/")        // ""
func CleanPath(p string) string {
	p = strings.TrimRight(strings.TrimSpace(p), "/")
	if p == "" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
