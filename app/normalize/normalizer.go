package normalize

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"strings"
	"time"

	"github.com/constituant/constituant/app/bill"
)

// Profile describes how one source names its fields. Every list is tried in order.
type Profile struct {
	Source         bill.Source
	TitleKeys      []string
	SummaryKeys    []string
	HTMLBodyKeys   []string
	IDKeys         []string
	URLKeys        []string
	DateKeys       []string
	ChamberKeys    []string
	DefaultLevel   bill.Level
	DefaultChamber string
	// IDFromURL extracts an external id from the record URL when no id key is present.
	IDFromURL *regexp.Regexp
	// HashTitle uses md5(title) as the last external id fallback.
	HashTitle bool
}

type Normalizer struct {
	loc *time.Location
}

func NewNormalizer(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return &Normalizer{loc: loc}
}

// Run maps a raw record onto a draft. It reports false when no usable title
// or external id can be derived.
func (n *Normalizer) Run(raw bill.RawRecord, p Profile) (bill.Draft, bool) {
	rawTitle, ok := raw.Lookup(p.TitleKeys...)
	if !ok {
		return bill.Draft{}, false
	}
	title := CleanText(rawTitle, TitleMaxLen)
	if title == "" {
		return bill.Draft{}, false
	}

	link, _ := raw.Lookup(p.URLKeys...)
	link = strings.TrimSpace(link)

	externalID := n.externalID(raw, p, link, title)
	if externalID == "" {
		return bill.Draft{}, false
	}

	draft := bill.Draft{
		ExternalID:  externalID,
		Source:      p.Source,
		Title:       title,
		FullTextURL: link,
		Level:       p.DefaultLevel,
		Chamber:     p.DefaultChamber,
		RawPayload:  raw.JSON(),
	}

	if summary, ok := raw.Lookup(p.SummaryKeys...); ok {
		draft.Summary = CleanText(summary, SummaryMaxLen)
	}
	if draft.Summary == "" {
		if body, ok := raw.Lookup(p.HTMLBodyKeys...); ok {
			draft.Summary = FirstSentence(body, 500)
		}
	}

	if level, chamber, ok := FromURL(link); ok {
		draft.Level = level
		draft.Chamber = chamber
	}
	if code, ok := raw.Lookup(p.ChamberKeys...); ok {
		if chamber, ok := ChamberFromCode(code); ok {
			draft.Chamber = chamber
		}
	}
	if !draft.Level.Valid() {
		draft.Level = bill.LevelFrance
	}
	if draft.Chamber == "" {
		draft.Chamber = DefaultChamber(draft.Level)
	}

	if rawDate, ok := raw.Lookup(p.DateKeys...); ok {
		if t, ok := ParseDate(rawDate, n.loc); ok {
			draft.VoteDatetime = &t
		}
	}

	return draft, true
}

func (n *Normalizer) externalID(raw bill.RawRecord, p Profile, link, title string) string {
	if id, ok := raw.Lookup(p.IDKeys...); ok {
		return id
	}
	if p.IDFromURL != nil && link != "" {
		if m := p.IDFromURL.FindStringSubmatch(link); len(m) > 1 && m[1] != "" {
			return m[1]
		}
	}
	if p.HashTitle {
		sum := md5.Sum([]byte(title))
		return hex.EncodeToString(sum[:])
	}
	return ""
}

func DefaultChamber(level bill.Level) string {
	if level == bill.LevelEU {
		return ChamberParliament
	}
	return ChamberAssemblee
}
