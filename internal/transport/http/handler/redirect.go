package handler

import "strings"

// safeRedirect constrains a client-supplied redirect path to same-origin
// targets. Anything that could be interpreted as an absolute or
// protocol-relative URL falls back to "/".
func safeRedirect(to string) string {
	if to == "" {
		return "/"
	}
	if !strings.HasPrefix(to, "/") {
		return "/"
	}
	if strings.HasPrefix(to, "//") || strings.HasPrefix(to, "/\\") {
		return "/"
	}
	return to
}
