package bill

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const slugMaxLen = 40

// Slugify folds accents, lowercases and joins alphanumeric runs with dashes.
func Slugify(s string, maxLen int) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}

	slug := strings.Trim(b.String(), "-")
	if maxLen > 0 && len(slug) > maxLen {
		slug = strings.Trim(slug[:maxLen], "-")
	}
	return slug
}

// BillID builds the public identifier of a production bill: "<fr|eu>-<slug>-<year>".
func BillID(level Level, title string, at time.Time) string {
	prefix := "fr"
	if level == LevelEU {
		prefix = "eu"
	}
	slug := Slugify(title, slugMaxLen)
	if slug == "" {
		slug = "projet"
	}
	return fmt.Sprintf("%s-%s-%d", prefix, slug, at.Year())
}

// UniqueBillID appends the unix time to id, used when the plain id is already taken.
func UniqueBillID(id string, at time.Time) string {
	return fmt.Sprintf("%s-%d", id, at.Unix())
}
