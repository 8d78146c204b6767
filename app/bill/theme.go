package bill

// SentinelTheme marks a bill that has not been classified, or whose classification failed.
const SentinelTheme = "Sans catégorie"

var Themes = []string{
	"Économie & Finances",
	"Travail & Emploi",
	"Santé",
	"Éducation",
	"Justice",
	"Sécurité & Défense",
	"Environnement & Énergie",
	"Transports & Infrastructures",
	"Agriculture",
	"Culture & Communication",
	"Affaires sociales",
	"Numérique",
	"Affaires européennes",
	"Institutions",
	SentinelTheme,
}

var themeSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(Themes))
	for _, t := range Themes {
		set[t] = struct{}{}
	}
	return set
}()

func IsTheme(theme string) bool {
	_, ok := themeSet[theme]
	return ok
}

// NeedsClassification reports whether a record should be sent to the classifier again.
func NeedsClassification(processed bool, theme string) bool {
	return !processed || theme == "" || theme == SentinelTheme
}
