package extract

import (
	"strings"
	"unicode/utf8"
)

// DefaultMinLength is the number of characters a paragraph must exceed to be kept.
const DefaultMinLength = 50

// SplitParagraphs splits page text on blank lines and keeps the trimmed
// paragraphs longer than minLength characters.
func SplitParagraphs(text string, minLength int) []string {
	var paragraphs []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if utf8.RuneCountInString(para) > minLength {
			paragraphs = append(paragraphs, para)
		}
	}
	return paragraphs
}
