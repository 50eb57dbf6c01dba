package utils

import "strings"

// CleanList trims every item and drops the empty ones. Config lists read
// from INI files arrive as split comma-separated text.
func CleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// ContainsAnyFold reports whether s contains any of words, ignoring case.
func ContainsAnyFold(s string, words []string) bool {
	upper := strings.ToUpper(s)
	for _, w := range words {
		if w != "" && strings.Contains(upper, strings.ToUpper(w)) {
			return true
		}
	}
	return false
}
