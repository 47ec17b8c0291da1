// Package normalize trims and case-folds form input before it is stored or
// compared.
package normalize

import "strings"

// Email trims and lowercases an address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims a display name, collapses inner whitespace runs to one space
// and keeps its case.
func Name(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Role trims and lowercases a role value.
func Role(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// QueryParam trims a query-string value and keeps its case.
func QueryParam(s string) string {
	return strings.TrimSpace(s)
}
