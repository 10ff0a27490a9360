package citation

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory Store for testing the resolution strategy
// without a live Postgres connection.
type fakeStore struct {
	exact       map[string]Row // "key|article"
	nombreparte map[string]Row // "key|phrase"
	fuzzy       map[string]Row // "key|needle"
	keyVariants map[string][]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		exact:       map[string]Row{},
		nombreparte: map[string]Row{},
		fuzzy:       map[string]Row{},
		keyVariants: map[string][]string{},
	}
}

func ek(key, article string) string { return strings.ToLower(key) + "|" + strings.ToLower(article) }

func (f *fakeStore) ByExact(_ context.Context, key, article string) (Row, error) {
	if r, ok := f.exact[ek(key, article)]; ok {
		return r, nil
	}
	return Row{}, ErrNotFound
}

func (f *fakeStore) ByNombrepartNormalizado(_ context.Context, key, phrase string) (Row, error) {
	if r, ok := f.nombreparte[ek(key, phrase)]; ok {
		return r, nil
	}
	return Row{}, ErrNotFound
}

func (f *fakeStore) ByFuzzy(_ context.Context, key string, needles []string) (Row, error) {
	for _, n := range needles {
		if r, ok := f.fuzzy[ek(key, n)]; ok {
			return r, nil
		}
	}
	return Row{}, ErrNotFound
}

func (f *fakeStore) KeyVariants(_ context.Context, prefix string) ([]string, error) {
	return f.keyVariants[strings.ToLower(prefix)], nil
}

func TestExtractCitationRoundTrip(t *testing.T) {
	cases := []Citation{
		{Key: "CCCH", Article: "1934"},
		{Key: "L19886", Article: "12bis"},
		{Key: "DFL1.2006", Article: "5"},
	}
	for _, c := range cases {
		got := Extract(Render(c))
		require.Len(t, got, 1)
		require.Equal(t, c, got[0])
	}
}

func TestExtractDeduplicatesPreservingFirstOccurrence(t *testing.T) {
	text := "Ver CCCH.Art.1934 y luego CCCH Art. 1934 y también L20190.Art.3."
	got := Extract(text)
	require.Equal(t, []Citation{{Key: "CCCH", Article: "1934"}, {Key: "L20190", Article: "3"}}, got)
}

func TestProcessZeroCitationsReturnsNoResults(t *testing.T) {
	res, err := Process(context.Background(), "plain text, no citations here", newFakeStore(), ViewConfig{})
	require.NoError(t, err)
	require.False(t, res.HasResults)
	require.Empty(t, res.UserView)
}

func TestProcessResolvesExactMatch(t *testing.T) {
	store := newFakeStore()
	store.exact[ek("CCCH", "1934")] = Row{Clave: "CCCH", Norma: "Código Civil", Texto: "texto del articulo"}

	res, err := Process(context.Background(), "Según CCCH.Art.1934 corresponde...", store, ViewConfig{})
	require.NoError(t, err)
	require.True(t, res.HasResults)
	require.Len(t, res.UserView, 1)
	require.Equal(t, "CCCH", res.UserView[0].Key)
	require.Equal(t, "Código Civil", res.UserView[0].Norm)
}

func TestProcessFallsBackToNombrepartNormalizado(t *testing.T) {
	store := newFakeStore()
	store.nombreparte[ek("L20190", "articulo 3")] = Row{Clave: "L20190", Norma: "Ley 20190"}

	res, err := Process(context.Background(), "L20190.Art.3", store, ViewConfig{})
	require.NoError(t, err)
	require.Len(t, res.UserView, 1)
	require.Equal(t, "Ley 20190", res.UserView[0].Norm)
}

func TestProcessFallsBackToFuzzyMatch(t *testing.T) {
	store := newFakeStore()
	store.fuzzy[ek("CPCH", "art. 254")] = Row{Clave: "CPCH", Norma: "Código de Procedimiento Civil"}

	res, err := Process(context.Background(), "CPCH.Art.254", store, ViewConfig{})
	require.NoError(t, err)
	require.Len(t, res.UserView, 1)
}

func TestProcessDLDisambiguationResolvesUniqueVariant(t *testing.T) {
	store := newFakeStore()
	store.keyVariants["dl824"] = []string{"DL824.1974"}
	store.exact[ek("DL824.1974", "20")] = Row{Clave: "DL824.1974", Norma: "Ley sobre Impuesto a la Renta"}

	res, err := Process(context.Background(), "DL824.Art.20", store, ViewConfig{})
	require.NoError(t, err)
	require.Len(t, res.UserView, 1)
	require.Equal(t, "Ley sobre Impuesto a la Renta", res.UserView[0].Norm)
}

func TestProcessDLDisambiguationLeavesUnresolvedOnMultipleVariants(t *testing.T) {
	store := newFakeStore()
	store.keyVariants["dl824"] = []string{"DL824.1974", "DL824.1980"}
	store.exact[ek("DL824.1974", "20")] = Row{Clave: "DL824.1974"}
	store.exact[ek("DL824.1980", "20")] = Row{Clave: "DL824.1980"}

	res, err := Process(context.Background(), "DL824.Art.20", store, ViewConfig{})
	require.NoError(t, err)
	require.Empty(t, res.UserView)
}

func TestUserViewTruncatesTextAndRespectsWhitelist(t *testing.T) {
	store := newFakeStore()
	store.exact[ek("CCCH", "1")] = Row{Clave: "CCCH", Norma: "Código Civil", Texto: strings.Repeat("a", 600), URLNormaPDF: "https://example.com"}

	res, err := Process(context.Background(), "CCCH.Art.1", store, ViewConfig{UserViewFields: []string{"key", "text"}})
	require.NoError(t, err)
	require.Len(t, res.UserView[0].Text, TextTruncateLimit)
	require.Len(t, res.UserView[0].TextFull, 600)

	filtered := ViewConfig{UserViewFields: []string{"key", "text"}}.FilterFields(res.UserView[0])
	require.Equal(t, map[string]any{"key": "CCCH", "text": res.UserView[0].Text}, filtered)
}

func TestModelViewIncludesVerificationDirectiveAndFields(t *testing.T) {
	store := newFakeStore()
	store.exact[ek("CCCH", "1")] = Row{Clave: "CCCH", Norma: "Código Civil", Texto: "el texto"}

	res, err := Process(context.Background(), "CCCH.Art.1", store, ViewConfig{VerificationDirective: "Verifica cada cita."})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(res.ModelView, "Verifica cada cita."))
	require.Contains(t, res.ModelView, "el texto")
	require.Contains(t, res.ModelView, "Código Civil")
}
