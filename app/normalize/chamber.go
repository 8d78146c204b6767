package normalize

import (
	"net/url"
	"strings"

	"github.com/constituant/constituant/app/bill"
)

const (
	ChamberAssemblee  = "Assemblée Nationale"
	ChamberSenat      = "Sénat"
	ChamberParliament = "European Parliament"
	ChamberCouncil    = "Council of the European Union"
	ChamberCommission = "European Commission"
)

var chamberCodes = map[string]string{
	"EP":                    ChamberParliament,
	"PARL":                  ChamberParliament,
	"COUNCIL":               ChamberCouncil,
	"COMMISSION":            ChamberCommission,
	"SENAT":                 ChamberSenat,
	"ASSEMBLEE":             ChamberAssemblee,
	"AN":                    ChamberAssemblee,
	"ASSEMBLEE NATIONALE":   ChamberAssemblee,
	"ASSEMBLÉE NATIONALE":   ChamberAssemblee,
	"EUROPEAN PARLIAMENT":   ChamberParliament,
	"EUROPEAN COMMISSION":   ChamberCommission,
	"COUNCIL OF THE EU":     ChamberCouncil,
	"PARLEMENT EUROPÉEN":    ChamberParliament,
	"COMMISSION EUROPÉENNE": ChamberCommission,
}

// ChamberFromCode maps a source chamber code or name onto a display name.
func ChamberFromCode(code string) (string, bool) {
	name, ok := chamberCodes[strings.ToUpper(strings.TrimSpace(code))]
	return name, ok
}

type hostRule struct {
	suffix  string
	level   bill.Level
	chamber string
}

var hostRules = []hostRule{
	{"senat.fr", bill.LevelFrance, ChamberSenat},
	{"assemblee-nationale.fr", bill.LevelFrance, ChamberAssemblee},
	{"nosdeputes.fr", bill.LevelFrance, ChamberAssemblee},
	{"lafabriquedelaloi.fr", bill.LevelFrance, ChamberAssemblee},
	{"legifrance.gouv.fr", bill.LevelFrance, ChamberAssemblee},
	{"europarl.europa.eu", bill.LevelEU, ChamberParliament},
	{"consilium.europa.eu", bill.LevelEU, ChamberCouncil},
	{"ec.europa.eu", bill.LevelEU, ChamberCommission},
	{"eur-lex.europa.eu", bill.LevelEU, ChamberParliament},
	{"europa.eu", bill.LevelEU, ChamberParliament},
}

// FromURL derives level and chamber from the host of a bill URL.
func FromURL(raw string) (bill.Level, string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", "", false
	}
	host := strings.ToLower(u.Hostname())
	for _, rule := range hostRules {
		if host == rule.suffix || strings.HasSuffix(host, "."+rule.suffix) {
			return rule.level, rule.chamber, true
		}
	}
	return "", "", false
}
