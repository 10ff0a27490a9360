// Package markdown implements the Markdown Normalizer (§9 design note): a
// small pipeline of regex substitutions applied to final turn text before
// it reaches the client.
package markdown

import "regexp"

var (
	headingRe       = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	boldItalicRe    = regexp.MustCompile(`(\*\*\*|\*\*|\*|___|__|_)`)
	listBulletRe    = regexp.MustCompile(`(?m)^(\s*)\*(\s+)`)
	inlineCodeRe    = regexp.MustCompile("`([^`]*)`")
	codeFenceOpenRe = regexp.MustCompile("(?m)^```[a-zA-Z0-9_+-]*\\s*\\n")
	codeFenceEndRe  = regexp.MustCompile("(?m)^```\\s*$")
	linkRe          = regexp.MustCompile(`\[([^\]]*)\]\(([^)]*)\)`)
	imageRe         = regexp.MustCompile(`!\[([^\]]*)\]\(([^)]*)\)`)
	hruleRe         = regexp.MustCompile(`(?m)^\s*(-{3,}|\*{3,}|_{3,})\s*$`)
	blockquoteRe    = regexp.MustCompile(`(?m)^>\s?`)
	blankRunRe      = regexp.MustCompile(`\n{3,}`)
)

// Normalize strips markdown markup symbols from text, per §9's
// transformation table: strip headers, strip bold/italic markers, replace
// list bullets "*" with "-", strip inline code, strip block-code fences
// keeping the body, unwrap link and image syntax, drop horizontal rules
// and blockquote prefixes, collapse ≥3 consecutive blank lines to 2.
func Normalize(text string) string {
	// Images before links: both share the "[label](url)" shape, and image
	// syntax has a leading "!" that must be consumed first.
	text = imageRe.ReplaceAllString(text, "$1")
	text = linkRe.ReplaceAllString(text, "$1")

	text = codeFenceOpenRe.ReplaceAllString(text, "")
	text = codeFenceEndRe.ReplaceAllString(text, "")
	text = inlineCodeRe.ReplaceAllString(text, "$1")

	text = headingRe.ReplaceAllString(text, "")
	text = hruleRe.ReplaceAllString(text, "")
	text = blockquoteRe.ReplaceAllString(text, "")
	text = listBulletRe.ReplaceAllString(text, "$1-$2")
	text = boldItalicRe.ReplaceAllString(text, "")

	text = blankRunRe.ReplaceAllString(text, "\n\n")
	return text
}
