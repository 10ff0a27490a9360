package citation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// dlNoYearRe matches a DL key with no year suffix, e.g. "DL824" but not
// "DL824.1974" (§4.6 step 4).
var dlNoYearRe = regexp.MustCompile(`(?i)^DL\d+$`)

// resolveOne applies the four-step resolution strategy (§4.6) for one citation.
func resolveOne(ctx context.Context, store Store, c Citation) (Row, bool) {
	if r, err := store.ByExact(ctx, c.Key, c.Article); err == nil {
		return r, true
	} else if !errors.Is(err, ErrNotFound) {
		return Row{}, false
	}

	if r, err := store.ByNombrepartNormalizado(ctx, c.Key, "articulo "+c.Article); err == nil {
		return r, true
	} else if !errors.Is(err, ErrNotFound) {
		return Row{}, false
	}

	needles := []string{"articulo " + c.Article, "art. " + c.Article}
	if r, err := store.ByFuzzy(ctx, c.Key, needles); err == nil {
		return r, true
	} else if !errors.Is(err, ErrNotFound) {
		return Row{}, false
	}

	if dlNoYearRe.MatchString(c.Key) {
		variants, err := store.KeyVariants(ctx, c.Key)
		if err != nil {
			return Row{}, false
		}
		var hit Row
		hits := 0
		for _, v := range variants {
			if strings.EqualFold(v, c.Key) {
				continue
			}
			if r, err := store.ByExact(ctx, v, c.Article); err == nil {
				hit = r
				hits++
			} else if !errors.Is(err, ErrNotFound) {
				return Row{}, false
			}
		}
		if hits == 1 {
			return hit, true
		}
	}

	return Row{}, false
}

// Process extracts citations from text, resolves each against store, and
// renders the two annex views (§4.6). An input with zero detected citations
// returns {HasResults: false} and no annexes.
func Process(ctx context.Context, text string, store Store, cfg ViewConfig) (Result, error) {
	citations := Extract(text)
	if len(citations) == 0 {
		return Result{HasResults: false}, nil
	}

	var resolvedRows []resolved
	for _, c := range citations {
		row, ok := resolveOne(ctx, store, c)
		if !ok {
			continue
		}
		resolvedRows = append(resolvedRows, resolved{Citation: c, Row: row})
	}

	result := Result{HasResults: true}
	result.ModelView = renderModelView(cfg, resolvedRows)
	result.UserView = renderUserView(cfg, resolvedRows)
	return result, nil
}

func renderModelView(cfg ViewConfig, rows []resolved) string {
	var b strings.Builder
	if cfg.VerificationDirective != "" {
		b.WriteString(cfg.VerificationDirective)
		b.WriteString("\n\n")
	}
	for i, r := range rows {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Cita: %s.Art.%s\n", r.Key, r.Article)
		fmt.Fprintf(&b, "Norma: %s (%s, %s)\n", r.Norma, r.NormaTipo, r.NormaOrganismo)
		fmt.Fprintf(&b, "Parte: %s\n", r.Nombreparte)
		fmt.Fprintf(&b, "URL: %s\n", r.URLNormaPDF)
		fmt.Fprintf(&b, "Clasificación: %s\n", r.ClasificacionNorma)
		fmt.Fprintf(&b, "Fecha versión: %s\n", r.MetadatosFechaVersion)
		fmt.Fprintf(&b, "Ruta: %s\n", r.Rutacompleta)
		fmt.Fprintf(&b, "Materias: %s\n", r.Materias)
		fmt.Fprintf(&b, "Bloque jurídico: %s\n", r.BloqueJuridico)
		fmt.Fprintf(&b, "Norma idnorma: %s | idparte: %s\n", r.NormaIDNorma, r.MetadatosIdparte)
		fmt.Fprintf(&b, "Texto:\n%s", r.Texto)
	}
	return b.String()
}

func renderUserView(cfg ViewConfig, rows []resolved) []UserViewEntry {
	out := make([]UserViewEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, UserViewEntry{
			Key:      r.Key,
			Norm:     r.Norma,
			Article:  r.Article,
			URL:      r.URLNormaPDF,
			Text:     truncate(r.Texto, TextTruncateLimit),
			TextFull: r.Texto,
		})
	}
	return out
}
