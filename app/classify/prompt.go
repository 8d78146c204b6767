package classify

import (
	"fmt"
	"strings"

	"github.com/constituant/constituant/app/bill"
)

const promptFullTextLimit = 3000

func buildPrompt(in Input) string {
	fullText := []rune(in.FullText)
	if len(fullText) > promptFullTextLimit {
		fullText = fullText[:promptFullTextLimit]
	}

	var b strings.Builder
	b.WriteString("Tu es un assistant qui analyse des textes législatifs pour des citoyens.\n")
	b.WriteString("Classe ce texte dans UNE seule catégorie et explique-le simplement.\n\n")
	fmt.Fprintf(&b, "Catégories autorisées : %s\n\n", strings.Join(bill.Themes, ", "))
	fmt.Fprintf(&b, "Titre : %s\n", in.Title)
	fmt.Fprintf(&b, "Description : %s\n", in.Summary)
	if len(fullText) > 0 {
		fmt.Fprintf(&b, "Texte intégral : %s\n", string(fullText))
	}
	b.WriteString(`
Réponds UNIQUEMENT avec un JSON valide de la forme :
{
  "theme": "une catégorie de la liste",
  "abstract": "une phrase de 280 caractères maximum",
  "summary": "explication en français simple en 2 ou 3 phrases",
  "pour": ["argument en faveur"],
  "contre": ["argument contre"],
  "concerne": ["groupe de personnes concerné"],
  "confidence": 0.9
}`)

	return b.String()
}
