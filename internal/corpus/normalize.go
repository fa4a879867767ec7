package corpus

import (
	"regexp"
	"strings"

	"github.com/wikifactslab/wikifacts/internal/textnorm"
	"golang.org/x/text/unicode/norm"
)

var headingRe = regexp.MustCompile(`==+\s*(.*?)\s*==+\s*`)

// NormalizeText cleans a MediaWiki plain-text extract for the corpus:
// heading markup is flattened into the text, non-breaking spaces become
// plain spaces, the text is NFC-composed and combining diacritics are
// stripped (Cyrillic й/ё excepted, matching the published dataset).
func NormalizeText(text string) string {
	text = headingRe.ReplaceAllString(text, "$1 ")
	text = strings.ReplaceAll(text, " ", " ")
	text = strings.TrimSpace(text)
	text = norm.NFC.String(text)
	return textnorm.FoldDiacritics(text)
}

// Abstract returns the first paragraph of an article text.
func Abstract(text string) string {
	if i := strings.Index(text, "\n\n"); i >= 0 {
		return strings.TrimSpace(text[:i])
	}
	return strings.TrimSpace(text)
}
