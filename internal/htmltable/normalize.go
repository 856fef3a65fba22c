package htmltable

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Normalize converts raw header text into a record key according to opts.
//
// It is a pure function. Whitespace means Unicode whitespace, so non-breaking
// spaces coming from "&nbsp;" are treated like ordinary spaces.
func Normalize(raw string, opts Options) string {
	s := raw

	if opts.TrimKeys {
		s = strings.TrimSpace(s)
	}
	if opts.LowercaseKeys {
		// A Caser keeps state, so each call gets its own.
		s = cases.Lower(language.Und).String(s)
	}
	if opts.CollapseWhitespace {
		s = collapseWhitespace(s)
	}
	if opts.ReplaceWhitespace {
		s = replaceWhitespace(s, opts.replacement())
	}
	return s
}

// collapseWhitespace replaces runs of 2+ whitespace runes with one ASCII space.
// A single whitespace rune is kept as is.
func collapseWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	runes := []rune(s)
	for i := 0; i < len(runes); {
		if !unicode.IsSpace(runes[i]) {
			b.WriteRune(runes[i])
			i++
			continue
		}
		j := i
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		if j-i >= 2 {
			b.WriteByte(' ')
		} else {
			b.WriteRune(runes[i])
		}
		i = j
	}
	return b.String()
}

func replaceWhitespace(s, repl string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			b.WriteString(repl)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
