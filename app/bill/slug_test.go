package bill

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"Loi Test", 40, "loi-test"},
		{"Projet de loi relatif à l'énergie", 40, "projet-de-loi-relatif-a-l-energie"},
		{"  --Réforme   des retraites!! ", 40, "reforme-des-retraites"},
		{"Économie & Finances", 0, "economie-finances"},
		{"abcdefghij klmnop", 11, "abcdefghij"},
		{"???", 40, ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in, tt.max))
		})
	}
}

func TestBillID(t *testing.T) {
	at := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "fr-loi-test-2025", BillID(LevelFrance, "Loi Test", at))
	assert.Equal(t, "eu-digital-markets-act-2025", BillID(LevelEU, "Digital Markets Act", at))
	assert.Equal(t, "fr-projet-2025", BillID(LevelFrance, "!!!", at))

	long := BillID(LevelFrance, strings.Repeat("transition ", 10), at)
	assert.LessOrEqual(t, len(long), len("fr-")+slugMaxLen+len("-2025"))

	assert.Equal(t, "fr-loi-test-2025-1748736000", UniqueBillID("fr-loi-test-2025", at))
}
