package citation

import (
	"regexp"
	"sort"
	"strings"
)

// keyAlt enumerates the <KEY> alphabet (§4.6): the named legal-code
// shorthands, the year-qualified law/decree families, a bare DL<digits>
// form with no year suffix (§4.6's DL disambiguation path, resolved via
// resolver.go's dlNoYearRe), and a generic 2-10 uppercase-letter fallback
// for anything else. DL\d+\.\d{4} must precede the bare DL\d+ alternative
// so a year-qualified key like "DL824.1974" is matched whole rather than
// stopping at "DL824".
const keyAlt = `CCCH|CPCH|CTRIB|L\d{4,6}|DFL\d+\.\d{4}|DL\d+\.\d{4}|DL\d+|D\d+\.\d{4}|[A-Za-z]{2,10}`

// artidPattern matches <ARTID>: digits optionally followed by a single
// lowercase letter or one of the ordinal suffixes.
const artidPattern = `\d+(?:[a-z]|bis|ter|quater|quinquies|sexies|septies|octies|novies|decies)?`

var (
	// Code+article form: "<KEY>.Art.?<ARTID>", e.g. "CCCH.Art.1934" or
	// "L19886.Art12bis".
	codedCitationRe = regexp.MustCompile(`(?i)\b(` + keyAlt + `)\.Art\.?(` + artidPattern + `)\b`)

	// Legacy whitespace form: "<KEY> Art(ículo)? <ARTID>".
	legacyCitationRe = regexp.MustCompile(`(?i)\b(` + keyAlt + `)\s+Art(?:[ií]culo)?\.?\s+(` + artidPattern + `)\b`)
)

type match struct {
	start    int
	key, art string
}

// Extract returns the set of unique (key, article) citations found in text,
// preserving first-occurrence order (§4.6). Both accepted syntaxes are
// matched and merged by position before deduplication, so whichever form
// appears earliest in the text wins the "first occurrence" slot.
func Extract(text string) []Citation {
	var matches []match
	for _, m := range codedCitationRe.FindAllStringSubmatchIndex(text, -1) {
		matches = append(matches, match{start: m[0], key: text[m[2]:m[3]], art: text[m[4]:m[5]]})
	}
	for _, m := range legacyCitationRe.FindAllStringSubmatchIndex(text, -1) {
		matches = append(matches, match{start: m[0], key: text[m[2]:m[3]], art: text[m[4]:m[5]]})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].start < matches[j].start })

	var out []Citation
	seen := map[Citation]bool{}
	for _, m := range matches {
		c := Citation{Key: strings.ToUpper(m.key), Article: strings.ToLower(m.art)}
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// Render produces the canonical coded form of a citation, used by tests to
// assert the extraction round-trip property (§8.7).
func Render(c Citation) string {
	return strings.ToUpper(c.Key) + ".Art." + strings.ToLower(c.Article)
}
