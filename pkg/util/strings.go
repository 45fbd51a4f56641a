package util

import "strings"

// NormalizeSymbol trims and upper-cases a ticker. It returns false for empty input or
// characters outside letters, digits, '.', '-', '_', '^' and '&'.
func NormalizeSymbol(s string) (string, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "", false
	}
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.', r == '-', r == '_', r == '^', r == '&':
		default:
			return "", false
		}
	}
	return s, true
}
