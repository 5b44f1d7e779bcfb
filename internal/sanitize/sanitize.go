// Package sanitize cleans player-chosen display names before they are ranked.
// The filter is a heuristic, not an exhaustive list.
package sanitize

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	MaxNameRunes = 24
	Fallback     = "anon"
	mask         = "***"
)

// Patterns tolerate separators, digits and repeated letters between the letters
// of each word, so "f.u.c.k" and "sh1t" are caught after NFKC folding.
var badPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)n[\W_]*[i1l|!\[\W_]*g+[\W_]*g*[\W_]*[ae4@]?`),
	regexp.MustCompile(`(?i)f[\W_]*u[\W_]*c[\W_]*k+`),
	regexp.MustCompile(`(?i)s[\W_]*h[\W_]*i[\W_]*t+`),
	regexp.MustCompile(`(?i)b[\W_]*i[\W_]*t[\W_]*c[\W_]*h+`),
	regexp.MustCompile(`(?i)c[\W_]*u[\W_]*n[\W_]*t+`),
	regexp.MustCompile(`(?i)a[\W_]*s[\W_]*s+h*[\W_]*`),
}

var (
	maskRun        = regexp.MustCompile(`\*{2,}`)
	spaceRun       = regexp.MustCompile(`\s{2,}`)
	leadingNoAlnum = regexp.MustCompile(`^[^A-Za-z0-9]+`)
)

// Name returns a display-safe version of input. It never returns "".
func Name(input string) string {
	name := norm.NFKC.String(input)
	for _, p := range badPatterns {
		name = p.ReplaceAllString(name, mask)
	}
	name = maskRun.ReplaceAllString(name, mask)
	name = spaceRun.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)
	if name == "" || name == mask {
		name = Fallback
	}
	name = leadingNoAlnum.ReplaceAllString(name, "")
	if name == "" {
		name = Fallback
	}
	return Truncate(name, MaxNameRunes)
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
