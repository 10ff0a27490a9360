package citation

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgStore is the Postgres-backed implementation of Store, grounded on the
// legal-text database that backs normativa.* tables.
type pgStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing connection pool as a Store.
func NewPostgresStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

const rowColumns = `clave, norma, norma_tipo, norma_organismo, nombreparte, url_norma_pdf,
	texto, clasificacion_norma, rutacompleta, materias, bloque_juridico,
	norma_idnorma, metadatos_idparte, metadatos_fechaversion`

func (s *pgStore) scanRow(row pgx.Row) (Row, error) {
	var r Row
	err := row.Scan(&r.Clave, &r.Norma, &r.NormaTipo, &r.NormaOrganismo, &r.Nombreparte, &r.URLNormaPDF,
		&r.Texto, &r.ClasificacionNorma, &r.Rutacompleta, &r.Materias, &r.BloqueJuridico,
		&r.NormaIDNorma, &r.MetadatosIdparte, &r.MetadatosFechaVersion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Row{}, ErrNotFound
		}
		return Row{}, err
	}
	return r, nil
}

func (s *pgStore) ByExact(ctx context.Context, key, article string) (Row, error) {
	row := s.pool.QueryRow(ctx, `
SELECT `+rowColumns+`
FROM normativa
WHERE lower(clave) = lower($1) AND lower(numero_articulo) = lower($2)
LIMIT 1`, key, article)
	return s.scanRow(row)
}

func (s *pgStore) ByNombrepartNormalizado(ctx context.Context, key, phrase string) (Row, error) {
	row := s.pool.QueryRow(ctx, `
SELECT `+rowColumns+`
FROM normativa
WHERE lower(clave) = lower($1) AND lower(nombreparte_normalizado) = lower($2)
LIMIT 1`, key, phrase)
	return s.scanRow(row)
}

func (s *pgStore) ByFuzzy(ctx context.Context, key string, needles []string) (Row, error) {
	for _, needle := range needles {
		row := s.pool.QueryRow(ctx, `
SELECT `+rowColumns+`
FROM normativa
WHERE lower(clave) = lower($1) AND lower(nombreparte) LIKE lower($2)
LIMIT 1`, key, "%"+needle+"%")
		r, err := s.scanRow(row)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Row{}, err
		}
	}
	return Row{}, ErrNotFound
}

func (s *pgStore) KeyVariants(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
SELECT DISTINCT clave FROM normativa WHERE clave LIKE $1`, prefix+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var clave string
		if err := rows.Scan(&clave); err != nil {
			return nil, err
		}
		out = append(out, clave)
	}
	return out, rows.Err()
}
