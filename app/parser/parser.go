package parser

import (
	"bytes"
	"cmp"
	"fmt"
	"time"

	"github.com/constituant/constituant/app/bill"
	"github.com/mmcdole/gofeed"
)

// Parser turns raw source payloads into loosely-typed records.
type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Feed parses RSS or Atom data. Each item becomes a record keyed
// title, link, guid, description, pubDate and categories.
func (p *Parser) Feed(data []byte) ([]bill.RawRecord, error) {
	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	records := make([]bill.RawRecord, 0, len(feed.Items))
	for _, item := range feed.Items {
		records = append(records, p.normalizeItem(item))
	}

	return records, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item) bill.RawRecord {
	record := bill.RawRecord{
		"title":       item.Title,
		"link":        item.Link,
		"guid":        cmp.Or(item.GUID, item.Link),
		"description": cmp.Or(item.Description, item.Content),
	}

	// gofeed already parsed the date; keep a single canonical format for the normalizer
	if item.PublishedParsed != nil {
		record["pubDate"] = item.PublishedParsed.Format(time.RFC3339)
	} else if item.UpdatedParsed != nil {
		record["pubDate"] = item.UpdatedParsed.Format(time.RFC3339)
	} else if item.Published != "" {
		record["pubDate"] = item.Published
	}

	if len(item.Categories) > 0 {
		categories := make([]any, 0, len(item.Categories))
		for _, c := range item.Categories {
			categories = append(categories, c)
		}
		record["categories"] = categories
	}

	return record
}
