// Package sanitize normalises user-supplied strings before they reach the
// commerce store.
package sanitize

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// Text strips markup, drops invalid UTF-8, collapses every run of
// whitespace (line breaks and tabs included) to a single space and trims the
// result.
func Text(s string) string {
	return strings.Join(strings.Fields(stripTags(s)), " ")
}

// Textarea is like Text but preserves line breaks. Runs of other whitespace
// inside a line are kept as typed; each line is trimmed on the right.
func Textarea(s string) string {
	s = strings.ReplaceAll(stripTags(s), "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRightFunc(line, unicode.IsSpace)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// Email trims the address, removes characters that cannot appear in an
// e-mail address and lower-cases it. The result is not validated; an empty or
// malformed address is rejected later by the user directory.
func Email(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if allowedEmailRune(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

func allowedEmailRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	return strings.ContainsRune("!#$%&'*+-/=?^_`{|}~.@", r)
}

// stripTags returns the text content of s with every HTML tag, comment and
// doctype removed. Entities are left encoded so the stored value matches what
// the caller sent.
func stripTags(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	if !strings.ContainsAny(s, "<>") {
		return s
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.Write(z.Raw())
		}
	}
}
