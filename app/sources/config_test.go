package sources

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadConfigsMissingFileUsesDefaults(t *testing.T) {
	configs, err := LoadConfigs(filepath.Join(t.TempDir(), "missing.yml"))
	if err != nil {
		t.Fatal(err)
	}

	if len(configs) != 3 {
		t.Fatalf("Expected 3 configs, got %d", len(configs))
	}

	want := []string{"nosdeputes", "lafabrique", "europarl"}
	for i, name := range want {
		if configs[i].Name != name {
			t.Errorf("Expected %s at position %d, got %s", name, i, configs[i].Name)
		}
		if !configs[i].Enabled {
			t.Errorf("Expected %s to be enabled by default", name)
		}
	}

	if !configs[1].ProvisionalVoteDate {
		t.Error("Expected lafabrique to use provisional vote dates")
	}
	if configs[0].ProvisionalVoteDate || configs[2].ProvisionalVoteDate {
		t.Error("Only lafabrique should use provisional vote dates")
	}
}

func TestLoadConfigsOverlay(t *testing.T) {
	content := `
sources:
  europarl:
    enabled: false
    priority: 0
  lafabrique:
    max_items: 10
    delay: 5
    filters:
      - field: "Titre"
        excludes:
          - "ratification"
`
	path := filepath.Join(t.TempDir(), "sources.yml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	configs, err := LoadConfigs(path)
	if err != nil {
		t.Fatal(err)
	}

	if configs[0].Name != "europarl" || configs[0].Enabled {
		t.Errorf("Expected disabled europarl first, got %s (enabled=%v)", configs[0].Name, configs[0].Enabled)
	}

	var lf Config
	for _, c := range configs {
		if c.Name == "lafabrique" {
			lf = c
		}
	}
	if lf.MaxItems != 10 {
		t.Errorf("Expected max items 10, got %d", lf.MaxItems)
	}
	if lf.DelayDuration().Seconds() != 5 {
		t.Errorf("Expected delay 5s, got %v", lf.DelayDuration())
	}
	if lf.StaleDays != 730 {
		t.Errorf("Expected default stale days to survive overlay, got %d", lf.StaleDays)
	}
	if lf.Endpoint("dossiers") != "https://www.lafabriquedelaloi.fr/api/dossiers.csv" {
		t.Errorf("Unexpected endpoint %s", lf.Endpoint("dossiers"))
	}
	if len(lf.Filters) != 1 || lf.Filters[0].Field != "Titre" {
		t.Errorf("Expected filters to be replaced, got %+v", lf.Filters)
	}

	enabled := Enabled(configs)
	if len(enabled) != 2 {
		t.Errorf("Expected 2 enabled sources, got %d", len(enabled))
	}
}

func TestParseConfigsValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "unknown source",
			content: "sources:\n  senat:\n    enabled: true\n",
			wantErr: "unknown source",
		},
		{
			name:    "negative delay",
			content: "sources:\n  nosdeputes:\n    delay: -1\n",
			wantErr: "delay must be non-negative",
		},
		{
			name:    "invalid level",
			content: "sources:\n  nosdeputes:\n    level: world\n",
			wantErr: "invalid level",
		},
		{
			name:    "empty filter",
			content: "sources:\n  europarl:\n    filters:\n      - field: title\n",
			wantErr: "at least one include or exclude rule",
		},
		{
			name:    "enabled without base url",
			content: "sources:\n  europarl:\n    base_url: \"\"\n",
			wantErr: "base URL is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfigs([]byte(tt.content), DefaultConfigs())
			if err == nil {
				t.Fatalf("Expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfigEndpoint(t *testing.T) {
	c := Config{
		BaseURL: "https://example.org",
		Endpoints: map[string]string{
			"relative": "/api/list",
			"absolute": "https://other.example.org/feed",
		},
	}

	if got := c.Endpoint("relative"); got != "https://example.org/api/list" {
		t.Errorf("Unexpected relative endpoint %s", got)
	}
	if got := c.Endpoint("absolute"); got != "https://other.example.org/feed" {
		t.Errorf("Unexpected absolute endpoint %s", got)
	}
	if got := c.Endpoint("missing"); got != "" {
		t.Errorf("Expected empty endpoint, got %s", got)
	}
}
