// Package markup turns rich-text editor markup into plain text.
package markup

import (
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// Strip drops every tag and keeps the text between them. Entities are decoded.
func Strip(s string) string {
	if !strings.ContainsRune(s, '<') && !strings.ContainsRune(s, '&') {
		return s
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			// A '<' that never closes is text, not a tag.
			if errors.Is(z.Err(), io.EOF) {
				b.Write(z.Raw())
			}
			return b.String()
		case html.TextToken:
			b.Write(z.Text())
		}
	}
}

// Preview returns at most n runes of the stripped text.
func Preview(s string, n int) string {
	text := strings.TrimSpace(Strip(s))
	if utf8.RuneCountInString(text) <= n {
		return text
	}

	runes := []rune(text)
	return string(runes[:n])
}
