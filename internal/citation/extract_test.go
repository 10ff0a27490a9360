package citation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractCodedForm(t *testing.T) {
	got := Extract("Véase CCCH.Art.1934 para más detalles.")
	require.Len(t, got, 1)
	require.Equal(t, Citation{Key: "CCCH", Article: "1934"}, got[0])
}

func TestExtractLegacyForm(t *testing.T) {
	got := Extract("CPCH Articulo 254 regula esto.")
	require.Len(t, got, 1)
	require.Equal(t, Citation{Key: "CPCH", Article: "254"}, got[0])
}

func TestExtractDeduplicatesAndPreservesFirstOccurrenceOrder(t *testing.T) {
	got := Extract("L19886.Art12bis ... L19886.Art12bis ... CCCH.Art.1934")
	require.Len(t, got, 2)
	require.Equal(t, "L19886", got[0].Key)
	require.Equal(t, "CCCH", got[1].Key)
}

func TestExtractBareDLKeyWithoutYear(t *testing.T) {
	got := Extract("Véase DL824.Art10")
	require.Len(t, got, 1, "a bare DL<digits> key with no year suffix must still be extracted (§4.6 DL disambiguation)")
	require.Equal(t, Citation{Key: "DL824", Article: "10"}, got[0])
}

func TestExtractYearQualifiedDLKeyStillMatchesWhole(t *testing.T) {
	got := Extract("Véase DL824.1974.Art.20")
	require.Len(t, got, 1)
	require.Equal(t, Citation{Key: "DL824.1974", Article: "20"}, got[0])
}

func TestExtractRoundTrip(t *testing.T) {
	c := Citation{Key: "CCCH", Article: "1934"}
	got := Extract(Render(c))
	require.Equal(t, []Citation{c}, got)
}
