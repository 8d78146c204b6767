package parser

import (
	"strings"
	"testing"
)

func TestParseRSS2(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>OEIL</title>
    <link>https://oeil.secure.europarl.europa.eu</link>
    <description>Legislative procedures</description>
    <item>
      <title>2024/0035(COD) Packaging and packaging waste</title>
      <link>https://oeil.secure.europarl.europa.eu/oeil/popups/ficheprocedure.do?reference=2024/0035(COD)</link>
      <description>&lt;p&gt;Proposal for a regulation&lt;/p&gt;</description>
      <guid>2024/0035(COD)</guid>
      <pubDate>Mon, 03 Jun 2024 10:00:00 GMT</pubDate>
      <category>Environment</category>
    </item>
    <item>
      <title>Second procedure</title>
      <link>https://example.com/item2</link>
    </item>
  </channel>
</rss>`

	records, err := NewParser().Feed([]byte(rssData))
	if err != nil {
		t.Fatal(err)
	}

	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}

	first := records[0]
	if title, _ := first.Lookup("title"); title != "2024/0035(COD) Packaging and packaging waste" {
		t.Errorf("Unexpected title '%s'", title)
	}
	if guid, _ := first.Lookup("guid"); guid != "2024/0035(COD)" {
		t.Errorf("Expected guid '2024/0035(COD)', got '%s'", guid)
	}
	if date, _ := first.Lookup("pubDate"); date != "2024-06-03T10:00:00Z" {
		t.Errorf("Expected RFC3339 pubDate, got '%s'", date)
	}
	if desc, _ := first.Lookup("description"); !strings.Contains(desc, "Proposal for a regulation") {
		t.Errorf("Unexpected description '%s'", desc)
	}

	second := records[1]
	if guid, _ := second.Lookup("guid"); guid != "https://example.com/item2" {
		t.Errorf("Expected guid to fall back to link, got '%s'", guid)
	}
	if _, ok := second.Lookup("pubDate"); ok {
		t.Error("Expected no pubDate for undated item")
	}
}

func TestParseInvalidFeed(t *testing.T) {
	_, err := NewParser().Feed([]byte("not a feed"))
	if err == nil {
		t.Error("Expected error for invalid feed data")
	}
}

func TestParseJSON(t *testing.T) {
	parser := NewParser()

	tests := []struct {
		name      string
		data      string
		keys      []string
		wantCount int
		wantTitle string
		wantErr   bool
	}{
		{
			name:      "wrapped under key",
			data:      `{"dossiers_legislatif":[{"dossier":{"id":12,"titre":"Loi Test"}}]}`,
			keys:      []string{"dossiers_legislatif", "dossiers"},
			wantCount: 1,
			wantTitle: "Loi Test",
		},
		{
			name:      "fallback key",
			data:      `{"dossiers":[{"titre":"A"},{"titre":"B"}]}`,
			keys:      []string{"dossiers_legislatif", "dossiers"},
			wantCount: 2,
			wantTitle: "A",
		},
		{
			name:      "top level array skips scalars",
			data:      `[{"title":"X"}, 3, "y"]`,
			wantCount: 1,
			wantTitle: "X",
		},
		{
			name:    "missing key",
			data:    `{"other":[]}`,
			keys:    []string{"dossiers"},
			wantErr: true,
		},
		{
			name:    "malformed",
			data:    `{"dossiers":[`,
			keys:    []string{"dossiers"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := parser.JSON([]byte(tt.data), tt.keys...)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(records) != tt.wantCount {
				t.Fatalf("Expected %d records, got %d", tt.wantCount, len(records))
			}
			title, _ := records[0].Lookup("titre", "title")
			if title != tt.wantTitle {
				t.Errorf("Expected title '%s', got '%s'", tt.wantTitle, title)
			}
		})
	}
}

func TestParseJSONKeepsNumbers(t *testing.T) {
	records, err := NewParser().JSON([]byte(`[{"numero": 1234567890123}]`))
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := records[0].Lookup("numero"); v != "1234567890123" {
		t.Errorf("Expected exact number, got '%s'", v)
	}
}

func TestParseCSV(t *testing.T) {
	data := "\xEF\xBB\xBFTitre;URL du dossier;État du dossier;Thèmes\n" +
		"\"Projet de loi; énergie\";https://example.com/a;En cours d'examen;Énergie\n" +
		"Loi courte;https://example.com/b\n"

	records, err := NewParser().CSV([]byte(data), ';')
	if err != nil {
		t.Fatal(err)
	}

	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if title, _ := records[0].Lookup("Titre"); title != "Projet de loi; énergie" {
		t.Errorf("Expected quoted separator to be kept, got '%s'", title)
	}
	if state, _ := records[0].Lookup("État du dossier"); state != "En cours d'examen" {
		t.Errorf("Unexpected state '%s'", state)
	}
	if _, ok := records[1].Lookup("État du dossier"); ok {
		t.Error("Short row should leave missing columns unset")
	}
}

func TestParseCSVEmpty(t *testing.T) {
	if _, err := NewParser().CSV(nil, ';'); err == nil {
		t.Error("Expected error for empty CSV")
	}
}
