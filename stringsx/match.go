package stringsx

import "strings"

// SimpleMatch reports whether s matches pattern, where '*' matches any sequence of
// characters, including none.
func SimpleMatch(pattern, s string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == s
	}

	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]

	last := parts[len(parts)-1]
	for _, p := range parts[1 : len(parts)-1] {
		i := strings.Index(s, p)
		if i == -1 {
			return false
		}
		s = s[i+len(p):]
	}
	return len(s) >= len(last) && strings.HasSuffix(s, last)
}

// SimpleMatchAny reports whether s matches one of the patterns.
func SimpleMatchAny(patterns []string, s string) bool {
	for _, p := range patterns {
		if SimpleMatch(p, s) {
			return true
		}
	}
	return false
}

// SplitTrimmed splits s on sep and drops empty elements.
func SplitTrimmed(s, sep string) []string {
	var out []string
	for _, p := range strings.Split(s, sep) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
