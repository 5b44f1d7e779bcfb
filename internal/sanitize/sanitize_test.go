package sanitize

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Alice", "Alice"},
		{"  Bob   the   Builder ", "Bob the Builder"},
		{"", "anon"},
		{"   ", "anon"},
		{"fuck", "anon"},
		{"f.u.c.k you", "you"},
		{"xx shit xx", "xx *** xx"},
		{"Sh1t", "Sh1t"},
		{"!!!Zed", "Zed"},
		{"---", "anon"},
		{"ＡＢＣ", "ABC"},
	}
	for _, tc := range cases {
		if got := Name(tc.in); got != tc.want {
			t.Fatalf("Name(%q)=%q want %q", tc.in, got, tc.want)
		}
	}
}

func TestName_Truncates(t *testing.T) {
	got := Name(strings.Repeat("é", 40))
	if utf8.RuneCountInString(got) != MaxNameRunes {
		t.Fatalf("runes=%d want %d", utf8.RuneCountInString(got), MaxNameRunes)
	}
	if !utf8.ValidString(got) {
		t.Fatalf("truncation split a rune: %q", got)
	}
}

func TestName_MasksEveryOccurrence(t *testing.T) {
	got := Name("Zed shit and shit")
	if strings.Contains(strings.ToLower(got), "shit") {
		t.Fatalf("unmasked: %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("abcdef", 3); got != "abc" {
		t.Fatalf("got %q", got)
	}
	if got := Truncate("ab", 3); got != "ab" {
		t.Fatalf("got %q", got)
	}
	if got := Truncate("ab", 0); got != "" {
		t.Fatalf("got %q", got)
	}
}
