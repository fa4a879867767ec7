package retrieval

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Splitter names accepted by NewSplitter.
const (
	SplitterSentence  = "sentence"
	SplitterParagraph = "paragraph"
)

// SplitFunc breaks an article into candidate fragments.
type SplitFunc func(text string) []string

// NewSplitter returns the named splitter, or nil for unknown names.
func NewSplitter(name string) SplitFunc {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case SplitterSentence:
		return SplitSentences
	case SplitterParagraph:
		return SplitParagraphs
	default:
		return nil
	}
}

// SplitParagraphs splits on blank lines and drops empty paragraphs.
func SplitParagraphs(text string) []string {
	var out []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para != "" {
			out = append(out, para)
		}
	}
	return out
}

// SplitSentences splits on sentence-final punctuation. A terminator only
// closes a sentence when followed by whitespace and an upper-case or
// non-letter rune, which keeps abbreviations like "Dr. Smith" and
// decimals like "3.5" intact most of the time.
func SplitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var out []string
	var sb strings.Builder
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		sb.WriteRune(r)
		if !isSentenceEnd(r) {
			continue
		}
		// Absorb closing quotes and brackets.
		for i+1 < len(runes) && isClosing(runes[i+1]) {
			i++
			sb.WriteRune(runes[i])
		}
		if i+1 >= len(runes) {
			break
		}
		if !unicode.IsSpace(runes[i+1]) {
			continue
		}
		next := nextNonSpace(runes, i+1)
		if next == utf8.RuneError || (unicode.IsLetter(next) && unicode.IsLower(next)) {
			continue
		}
		if s := strings.TrimSpace(sb.String()); s != "" {
			out = append(out, s)
		}
		sb.Reset()
	}
	if s := strings.TrimSpace(sb.String()); s != "" {
		out = append(out, s)
	}
	return out
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '…', '。', '！', '？':
		return true
	}
	return false
}

func isClosing(r rune) bool {
	switch r {
	case '"', '\'', '”', '’', ')', ']', '»', '」', '』':
		return true
	}
	return false
}

func nextNonSpace(runes []rune, from int) rune {
	for i := from; i < len(runes); i++ {
		if !unicode.IsSpace(runes[i]) {
			return runes[i]
		}
	}
	return utf8.RuneError
}
