// Package sanitize cleans user-provided free text before it is stored.
package sanitize

import (
	"html"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var htmlTagRegex = regexp.MustCompile(`<[^>]*>`)

// StripHTML removes HTML tags, decodes entities and strips again so that
// encoded markup such as "&lt;script&gt;" cannot survive the first pass.
func StripHTML(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, "")
	result = html.UnescapeString(result)
	return htmlTagRegex.ReplaceAllString(result, "")
}

// Text strips markup, drops control characters other than line breaks and
// tabs, and normalizes to NFC so "ç" typed two ways compares equal.
func Text(s string) string {
	if s == "" {
		return s
	}
	result := StripHTML(s)
	result = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, result)
	return strings.TrimSpace(norm.NFC.String(result))
}

// Line is Text for single-line fields: inner whitespace runs collapse to
// one space.
func Line(s string) string {
	return strings.Join(strings.Fields(Text(s)), " ")
}
