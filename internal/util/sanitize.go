package util

import (
	"strings"

	"golang.org/x/net/html"
)

// StripHTML drops markup from user-entered text and keeps the text nodes.
// Chat histories are replayed to every member of a class, so stored text
// must never carry tags.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<>") {
		return s
	}
	tok := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	for {
		switch tok.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.TextToken:
			b.Write(tok.Text())
		}
	}
}
