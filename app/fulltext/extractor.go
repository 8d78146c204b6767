package fulltext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"codeberg.org/readeck/go-readability"
	"github.com/PuerkitoBio/goquery"
	"github.com/constituant/constituant/app/fetch"
	"github.com/constituant/constituant/app/normalize"
)

const (
	DefaultTimeout = 20 * time.Second
	MaxLength      = 50000
)

var ErrPDF = errors.New("document is a PDF")

type Extractor struct {
	client  *fetch.Client
	timeout time.Duration
}

func NewExtractor(client *fetch.Client) *Extractor {
	return &Extractor{client: client, timeout: DefaultTimeout}
}

// Fetch downloads a bill page and returns its readable text. PDFs are skipped.
func (e *Extractor) Fetch(ctx context.Context, url string) (string, error) {
	if url == "" {
		return "", fmt.Errorf("URL is empty")
	}

	resp, err := e.client.Get(ctx, url, fetch.RequestOptions{
		Accept:  "text/html,application/xhtml+xml",
		Timeout: e.timeout,
	})
	if err != nil {
		return "", err
	}

	if strings.Contains(resp.ContentType, "application/pdf") || bytes.HasPrefix(resp.Body, []byte("%PDF-")) {
		return "", ErrPDF
	}

	return e.Run(resp.Body)
}

// Run extracts the main text of an HTML document, falling back to the whole body.
func (e *Extractor) Run(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("HTML data is empty")
	}

	article, err := readability.FromReader(bytes.NewReader(data), nil)
	if err == nil && article.Content != "" {
		if text, textErr := bodyText(strings.NewReader(article.Content), ""); textErr == nil && text != "" {
			slog.Debug("Content extracted successfully",
				"title", article.Title,
				"content_length", len(text))
			return text, nil
		}
	}

	text, err := bodyText(bytes.NewReader(data), "body")
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", fmt.Errorf("no content extracted from HTML data")
	}
	return text, nil
}

// bodyText returns the cleaned text under selector, or the whole document
// when selector is empty.
func bodyText(r io.Reader, selector string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc.Find("script, style, noscript").Remove()

	sel := doc.Selection
	if selector != "" {
		sel = doc.Find(selector)
	}
	return normalize.CleanText(sel.Text(), MaxLength), nil
}
