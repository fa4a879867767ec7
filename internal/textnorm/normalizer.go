// Package textnorm provides per-language token normalization used by
// lexical retrieval and full-text query building. It replaces the heavy
// lemmatizer pipeline of the reference datasets with a light analyzer:
// tokenize, lowercase, fold diacritics, strip a small set of inflectional
// suffixes, drop stopwords.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalizer analyzes text for one language.
type Normalizer struct {
	lang      string
	stopwords map[string]struct{}
	suffixes  []string
	perRune   bool // CJK: every rune is its own token
	minLen    int
}

// New returns a Normalizer for the given language code. Unknown codes get
// a generic analyzer (lowercase + diacritic folding, no stemming).
func New(lang string) *Normalizer {
	lang = strings.ToLower(strings.TrimSpace(lang))

	n := &Normalizer{
		lang:      lang,
		stopwords: stopwords[lang],
		suffixes:  suffixes[lang],
		minLen:    2,
	}
	switch lang {
	case "zh":
		n.perRune = true
		n.minLen = 1
	case "vi":
		n.minLen = 1
	}
	return n
}

// Lang returns the language code the normalizer was built for.
func (n *Normalizer) Lang() string {
	if n == nil {
		return ""
	}
	return n.lang
}

// Tokens returns normalized tokens for text.
func (n *Normalizer) Tokens(text string) []string {
	if n == nil || strings.TrimSpace(text) == "" {
		return nil
	}

	var out []string
	for _, raw := range n.split(text) {
		tok := n.normalizeToken(raw)
		if tok == "" {
			continue
		}
		if _, stop := n.stopwords[tok]; stop {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// Normalize returns the normalized tokens joined by single spaces.
func (n *Normalizer) Normalize(text string) string {
	return strings.Join(n.Tokens(text), " ")
}

func (n *Normalizer) split(text string) []string {
	if n.perRune {
		var toks []string
		for _, r := range text {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				toks = append(toks, string(r))
			}
		}
		return toks
	}

	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

func (n *Normalizer) normalizeToken(raw string) string {
	tok := strings.ToLower(strings.Trim(raw, "'"))
	if tok == "" {
		return ""
	}

	tok = FoldDiacritics(tok)
	if len([]rune(tok)) < n.minLen {
		return ""
	}
	return n.stem(tok)
}

func (n *Normalizer) stem(tok string) string {
	runes := []rune(tok)
	for _, suf := range n.suffixes {
		sr := []rune(suf)
		if len(runes)-len(sr) < 3 {
			continue
		}
		if strings.HasSuffix(tok, suf) {
			return string(runes[:len(runes)-len(sr)])
		}
	}
	return tok
}

// FoldDiacritics strips combining marks from each rune. Cyrillic й and ё
// survive intact: decomposing them would merge distinct letters (и/й, е/ё)
// and corrupt Russian and Ukrainian tokens.
func FoldDiacritics(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == 'й' || r == 'ё' || r == 'Й' || r == 'Ё' {
			b.WriteRune(r)
			continue
		}
		decomposed := norm.NFD.String(string(r))
		for _, d := range decomposed {
			if unicode.Is(unicode.Mn, d) {
				continue
			}
			b.WriteRune(d)
		}
	}
	return norm.NFC.String(b.String())
}
