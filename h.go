package pgsession

import "strings"

// isEmpty reports whether s is empty or consists solely of whitespace.
func isEmpty(s string) bool {
	return len(strings.TrimSpace(s)) == 0
}

// isNotEmpty is the negation of isEmpty.
func isNotEmpty(s string) bool {
	return !isEmpty(s)
}

// looksLikeIdentifier performs a best-effort check on a schema name before
// it is interpolated, unescaped, into the session-initialization string
// (§9 "Schema interpolation"). It never blocks construction — callers who
// pass a name containing an embedded double quote get a warning, not a
// rewrite of their input, since the behavior must not silently change.
func looksLikeIdentifier(name string) bool {
	return !strings.ContainsRune(name, '"')
}
