package markdown

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeStripsHeadersAndBold(t *testing.T) {
	out := Normalize("# Title\n\nThis is **bold** and *italic*.")
	require.NotContains(t, out, "#")
	require.NotContains(t, out, "*")
	require.Contains(t, out, "Title")
	require.Contains(t, out, "bold")
}

func TestNormalizeReplacesListBullets(t *testing.T) {
	out := Normalize("* first\n* second\n")
	require.Contains(t, out, "- first")
	require.Contains(t, out, "- second")
}

func TestNormalizeStripsInlineAndFencedCode(t *testing.T) {
	out := Normalize("Use `fmt.Println` like:\n```go\nfmt.Println(\"hi\")\n```\n")
	require.NotContains(t, out, "`")
	require.Contains(t, out, "fmt.Println")
}

func TestNormalizeUnwrapsLinksAndImages(t *testing.T) {
	out := Normalize("See [docs](https://example.com/docs) and ![alt](https://example.com/img.png).")
	require.Equal(t, "See docs and alt.", out)
}

func TestNormalizeDropsHorizontalRulesAndBlockquotes(t *testing.T) {
	out := Normalize("above\n\n---\n\n> quoted line\nbelow")
	require.NotContains(t, out, "---")
	require.NotContains(t, out, ">")
	require.Contains(t, out, "quoted line")
}

func TestNormalizeCollapsesBlankLines(t *testing.T) {
	out := Normalize("a\n\n\n\n\nb")
	require.Equal(t, "a\n\nb", out)
}
