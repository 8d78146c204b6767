package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/constituant/constituant/app/bill"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSV reads a delimited export whose first row holds the column names.
// Short rows leave the missing columns unset.
func (p *Parser) CSV(data []byte, sep rune) ([]bill.RawRecord, error) {
	reader := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	reader.Comma = sep
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("CSV data is empty")
		}
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var records []bill.RawRecord
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}

		record := make(bill.RawRecord, len(header))
		for i, value := range row {
			if i >= len(header) || header[i] == "" {
				continue
			}
			record[header[i]] = value
		}
		records = append(records, record)
	}

	return records, nil
}
