// Package citation implements the Normative Citation Resolver (§4.6) and the
// read-only Normative Citation Store it resolves against (§6.3).
package citation

// Citation is a raw `(key, article)` tuple extracted from model output,
// before resolution.
type Citation struct {
	Key     string
	Article string
}

// Row is one resolved record from the Normative Citation Store (§6.3).
type Row struct {
	Clave                 string
	Norma                 string
	NormaTipo             string
	NormaOrganismo        string
	Nombreparte           string
	URLNormaPDF           string
	Texto                 string
	ClasificacionNorma    string
	Rutacompleta          string
	Materias              string
	BloqueJuridico        string
	NormaIDNorma          string
	MetadatosIdparte      string
	MetadatosFechaVersion string
}


// resolved pairs a Citation with the Row it resolved to.
type resolved struct {
	Citation
	Row
}

// UserViewEntry is one element of the clean, client-renderable annex
// (§4.6's "user view").
type UserViewEntry struct {
	Key      string `json:"key"`
	Norm     string `json:"norm"`
	Article  string `json:"article"`
	URL      string `json:"url"`
	Text     string `json:"text"`
	TextFull string `json:"text_full"`
}

// Result is the outcome of Process. HasResults is false iff zero citations
// were detected in the input text, in which case no annexes are produced
// (§4.6 edge case).
type Result struct {
	HasResults bool
	ModelView  string
	UserView   []UserViewEntry
}

// ViewConfig configures annex rendering.
type ViewConfig struct {
	// VerificationDirective is prefixed to the model view when non-empty.
	VerificationDirective string
	// UserViewFields whitelists which UserViewEntry fields are kept when
	// rendering the clean view via FilterFields. A nil/empty slice keeps
	// every field.
	UserViewFields []string
}

// TextTruncateLimit is the maximum length of UserViewEntry.Text (§4.6).
const TextTruncateLimit = 500

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// FilterFields renders e as a map restricted to ViewConfig.UserViewFields.
// An empty whitelist keeps every field.
func (c ViewConfig) FilterFields(e UserViewEntry) map[string]any {
	full := map[string]any{
		"key":       e.Key,
		"norm":      e.Norm,
		"article":   e.Article,
		"url":       e.URL,
		"text":      e.Text,
		"text_full": e.TextFull,
	}
	if len(c.UserViewFields) == 0 {
		return full
	}
	out := make(map[string]any, len(c.UserViewFields))
	for _, f := range c.UserViewFields {
		if v, ok := full[f]; ok {
			out[f] = v
		}
	}
	return out
}
