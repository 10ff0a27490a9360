package urlvalidate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestValidateRepairsIncompleteURL mirrors spec scenario S4: evidence
// contains a complete canonical URL for (codigo civil - dfl 1 2000, 12);
// the model cites the same URL without idparte and it must be repaired.
func TestValidateRepairsIncompleteURL(t *testing.T) {
	evidence := []EvidenceChunk{
		{ID: "c1", Body: "## codigo civil - dfl 1 2000 articulo 12\nSome article text.\nhttps://site/navigate?idnorma=172986&idparte=8717776"},
	}
	text := "Según https://site/navigate?idnorma=172986 el artículo es claro."

	res := Validate(text, evidence)
	require.Len(t, res.Corrections, 1)
	require.Equal(t, "https://site/navigate?idnorma=172986", res.Corrections[0].Original)
	require.Equal(t, "https://site/navigate?idnorma=172986&idparte=8717776", res.Corrections[0].Corrected)
	require.Contains(t, res.Text, "idparte=8717776")
	require.Empty(t, res.Warnings)
}

func TestValidateWarnsOnUngroundedURL(t *testing.T) {
	res := Validate("See https://site/navigate?idnorma=1&idparte=2", nil)
	require.Empty(t, res.Corrections)
	require.Len(t, res.Warnings, 1)
	require.Equal(t, "https://site/navigate?idnorma=1&idparte=2", res.Warnings[0].URL)
}

func TestValidateNeverIntroducesUnseenURL(t *testing.T) {
	evidence := []EvidenceChunk{
		{ID: "c1", Body: "## codigo civil articulo 5\nhttps://site/navigate?idnorma=9&idparte=1"},
	}
	text := "Plain text citing nothing."
	res := Validate(text, evidence)
	require.Equal(t, text, res.Text)
	require.Empty(t, res.Corrections)
	require.Empty(t, res.Warnings)
}

func TestValidateLegacyAndBlockSyntaxes(t *testing.T) {
	evidence := []EvidenceChunk{
		{ID: "c1", Body: "## ley 20190 articulo 3\n**ulr parte norma especifica pdf**: https://site/navigate?idnorma=5&idparte=7"},
	}
	text := "Cita: >>>ulr_start<<< https://site/navigate?idnorma=5 >>>ulr_end<<<"
	res := Validate(text, evidence)
	require.Len(t, res.Corrections, 1)
	require.Contains(t, res.Text, "idparte=7")
}

func TestValidateStats(t *testing.T) {
	evidence := []EvidenceChunk{
		{ID: "c1", Body: "## ley 20190 articulo 3\nhttps://site/navigate?idnorma=5&idparte=7"},
	}
	text := "https://site/navigate?idnorma=5&idparte=7 y https://other/navigate?idnorma=1&idparte=1"
	res := Validate(text, evidence)
	require.Equal(t, 1, res.Stats.URLsInEvidence)
	require.Equal(t, 1, res.Stats.ArticlesIndexed)
	require.Equal(t, 0, res.Stats.URLsCorrected)
	require.Equal(t, 1, res.Stats.URLsWarned)
}
