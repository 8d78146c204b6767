package normalize

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

const (
	TitleMaxLen   = 500
	SummaryMaxLen = 5000
)

var (
	stripPolicy   = bluemonday.StrictPolicy()
	whitespaceRe  = regexp.MustCompile(`\s+`)
	sentenceEndRe = regexp.MustCompile(`[.!?](\s|$)`)
)

// CleanText strips markup, decodes entities, collapses whitespace and truncates to maxLen runes.
func CleanText(s string, maxLen int) string {
	if s == "" {
		return ""
	}

	text := html.UnescapeString(stripPolicy.Sanitize(s))
	text = strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))

	return Truncate(text, maxLen)
}

// Truncate cuts s to maxLen runes, the last three being "...".
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return strings.TrimSpace(string(r[:maxLen-3])) + "..."
}

// FirstSentence returns the first sentence of an HTML or text fragment, capped at maxLen.
func FirstSentence(s string, maxLen int) string {
	text := CleanText(s, 0)
	if text == "" {
		return ""
	}
	if loc := sentenceEndRe.FindStringIndex(text); loc != nil {
		text = text[:loc[0]+1]
	}
	return Truncate(text, maxLen)
}
