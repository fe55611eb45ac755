package helpers

import "strings"

// SplitAndTrim splits s on sep, trims the spaces around every part and drops
// the parts left empty, so "Gel, ,French," gives [Gel French]. The result is
// never nil.
func SplitAndTrim(s, sep string) []string {
	out := make([]string, 0, strings.Count(s, sep)+1)
	for part := range strings.SplitSeq(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
