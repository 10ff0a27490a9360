// Package urlvalidate implements the URL Validator (§4.5): it reconciles
// URLs cited in LLM output against URLs present in retrieval evidence,
// repairing incomplete citations and flagging inventions.
package urlvalidate

import (
	"net/url"
	"regexp"
	"strings"
)

// EvidenceChunk is one retrieval-evidence chunk (§3's Retrieval Evidence).
type EvidenceChunk struct {
	ID   string
	Body string
}

// Correction records a cited URL that was rewritten to a more complete form.
type Correction struct {
	Original  string `json:"original"`
	Corrected string `json:"corrected"`
}

// Warning flags a cited URL absent from the retrieval evidence.
type Warning struct {
	URL     string `json:"url"`
	Message string `json:"message"`
}

// Stats summarizes one validation run.
type Stats struct {
	URLsInEvidence  int `json:"urls_in_evidence"`
	ArticlesIndexed int `json:"articles_indexed"`
	URLsCorrected   int `json:"urls_corrected"`
	URLsWarned      int `json:"urls_warned"`
}

// Result is the outcome of Validate.
type Result struct {
	Text        string       `json:"text"`
	Corrections []Correction `json:"corrections"`
	Warnings    []Warning    `json:"warnings"`
	Stats       Stats        `json:"stats"`
}

// urlInfo is the per-URL metadata recovered from evidence (§4.5).
type urlInfo struct {
	ArticleNumber string
	NormName      string
	ChunkID       string
}

var (
	// Canonical domain URL: https?://(www.)?<site>/navigate?... with
	// idnorma=<digits> and optionally idparte=<digits> (§6.4).
	canonicalURLRe = regexp.MustCompile(`https?://(?:www\.)?[^\s/]+/navigate\?[^\s\]\)"'<>]+`)
	// Legacy metadata line (§6.4).
	legacyURLRe = regexp.MustCompile(`(?i)\*\*ulr parte norma especifica pdf\*\*:\s*(\S+)`)
	// Block markers (§6.4).
	blockURLRe = regexp.MustCompile(`>>>ulr_start<<<\s*(\S+?)\s*>>>ulr_end<<<`)

	idnormaRe = regexp.MustCompile(`idnorma=(\d+)`)
	idparteRe = regexp.MustCompile(`idparte=(\d+)`)

	// Leading "## <header>" line of an evidence chunk, e.g.
	// "## codigo civil - dfl 1 2000 articulo 12".
	chunkHeaderRe = regexp.MustCompile(`(?im)^##\s*(.+?)\s+art[íi]?culo\s+(\S+)\s*$`)
)

// extractURLs returns all unique URLs present in text across the three
// accepted syntaxes (§6.4), in first-occurrence order.
func extractURLs(text string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(u string) {
		u = strings.TrimSpace(u)
		u = strings.TrimRight(u, ".,;)")
		if u == "" || seen[u] {
			return
		}
		seen[u] = true
		out = append(out, u)
	}
	for _, m := range canonicalURLRe.FindAllString(text, -1) {
		add(m)
	}
	for _, m := range legacyURLRe.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	for _, m := range blockURLRe.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	return out
}

func hasIdparte(u string) bool { return idparteRe.MatchString(u) }

func isComplete(u string) bool { return idnormaRe.MatchString(u) && idparteRe.MatchString(u) }

// articleKey normalizes a (norm, article) pair for map lookups.
type articleKey struct {
	norm    string
	article string
}

func normalizeKey(norm, article string) articleKey {
	return articleKey{
		norm:    strings.ToLower(strings.TrimSpace(norm)),
		article: strings.ToLower(strings.TrimSpace(article)),
	}
}

// buildIndexes scans every evidence chunk, extracting its URLs and its
// leading "## <norm> articulo <n>" header, to build url_info and
// article_to_url (§4.5). url_info is keyed by idnorma (rather than the
// full URL string) so that a cited URL sharing the same idnorma as an
// evidence URL, but missing idparte, is still recognized as grounded —
// that's precisely the incomplete-citation case the validator exists to
// repair (§8.4).
func buildIndexes(evidence []EvidenceChunk) (map[string]urlInfo, map[articleKey]string) {
	urlInfoMap := map[string]urlInfo{}
	articleToURL := map[articleKey]string{}

	for _, chunk := range evidence {
		var norm, article string
		if m := chunkHeaderRe.FindStringSubmatch(chunk.Body); len(m) == 3 {
			norm, article = m[1], m[2]
		}

		for _, u := range extractURLs(chunk.Body) {
			if idn := idnormaOf(u); idn != "" {
				if _, ok := urlInfoMap[idn]; !ok {
					urlInfoMap[idn] = urlInfo{ArticleNumber: article, NormName: norm, ChunkID: chunk.ID}
				}
			}
			if norm == "" || article == "" {
				continue
			}
			key := normalizeKey(norm, article)
			existing, ok := articleToURL[key]
			if !ok {
				articleToURL[key] = u
				continue
			}
			// Prefer a URL carrying both idnorma and idparte over a partial one.
			if !isComplete(existing) && isComplete(u) {
				articleToURL[key] = u
			}
		}
	}
	return urlInfoMap, articleToURL
}

func idnormaOf(u string) string {
	m := idnormaRe.FindStringSubmatch(u)
	if len(m) != 2 {
		return ""
	}
	return m[1]
}

// Validate reconciles the cited URLs in text against evidence, per §4.5's
// four-step algorithm. It never introduces a URL absent from evidence; it
// only rewrites a cited URL to a more complete form of itself (§3, §8.6).
func Validate(text string, evidence []EvidenceChunk) Result {
	urlInfoMap, articleToURL := buildIndexes(evidence)

	result := Result{Text: text}
	result.Stats.URLsInEvidence = len(urlInfoMap)
	result.Stats.ArticlesIndexed = len(articleToURL)

	for _, cited := range extractURLs(text) {
		idn := idnormaOf(cited)
		info, known := urlInfoMap[idn]
		if idn == "" || !known {
			result.Warnings = append(result.Warnings, Warning{
				URL:     cited,
				Message: "URL not grounded in retrieval evidence",
			})
			continue
		}
		if hasIdparte(cited) {
			continue
		}
		key := normalizeKey(info.NormName, info.ArticleNumber)
		complete, ok := articleToURL[key]
		if !ok || complete == cited {
			continue
		}
		result.Text = strings.ReplaceAll(result.Text, cited, complete)
		result.Corrections = append(result.Corrections, Correction{Original: cited, Corrected: complete})
	}

	result.Stats.URLsCorrected = len(result.Corrections)
	result.Stats.URLsWarned = len(result.Warnings)
	return result
}

// ParseQuery is a small helper exposed for callers that need to inspect a
// cited URL's query parameters directly (e.g. debugging tools).
func ParseQuery(rawURL string) url.Values {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	return u.Query()
}
