package api

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/constituant/constituant/app/bill"
	"github.com/constituant/constituant/app/vote"
)

// Generator renders open bills as an RSS 2.0 channel.
type Generator struct {
	baseURL string
	version string
	now     func() time.Time
}

func NewGenerator(baseURL, version string) *Generator {
	return &Generator{baseURL: strings.TrimRight(baseURL, "/"), version: version, now: time.Now}
}

func (g *Generator) Run(bills []vote.BillView, level bill.Level) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	title := "Constituant : projets de loi ouverts au vote"
	switch level {
	case bill.LevelEU:
		title += " (Union européenne)"
	case bill.LevelFrance:
		title += " (France)"
	}
	g.writeElement(&buf, "title", title, 4)
	g.writeElement(&buf, "link", cmp.Or(g.baseURL, "/"), 4)
	g.writeElement(&buf, "description", "Donnez votre avis sur les textes examinés au Parlement français et européen", 4)

	selfLink := g.baseURL + "/feeds/bills.rss"
	if level != "" {
		selfLink += "?level=" + string(level)
	}
	buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
		html.EscapeString(selfLink)))

	g.writeElement(&buf, "lastBuildDate", g.now().Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("Constituant/%s", g.version), 4)
	g.writeElement(&buf, "language", "fr", 4)

	for _, b := range bills {
		g.writeItem(&buf, b)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, b vote.BillView) {
	buf.WriteString("    <item>\n")

	buf.WriteString("      <guid isPermaLink=\"false\">")
	xml.EscapeText(buf, []byte(b.ID))
	buf.WriteString("</guid>\n")

	g.writeElement(buf, "title", b.Title, 6)
	g.writeElement(buf, "link", cmp.Or(b.FullTextURL, fmt.Sprintf("%s/#%s", g.baseURL, b.ID)), 6)
	g.writeElement(buf, "description", cmp.Or(b.AISummary, b.Summary, "Aucun résumé disponible"), 6)
	g.writeElement(buf, "pubDate", b.VoteDatetime.Format(time.RFC1123Z), 6)
	g.writeElement(buf, "category", b.Theme, 6)
	g.writeElement(buf, "category", b.Chamber, 6)

	buf.WriteString("    </item>\n")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}
