package citation

import (
	"context"
	"errors"
)

// ErrNotFound indicates that no row matched the given lookup.
var ErrNotFound = errors.New("citation: no matching row")

// Store is the read-only keyed lookup into the pre-built legal database
// (§6.3). It is opened once per process and shared across goroutines (§5).
type Store interface {
	// ByExact matches on (clave = key, numero_articulo = article).
	ByExact(ctx context.Context, key, article string) (Row, error)
	// ByNombrepartNormalizado matches on (clave = key,
	// nombreparte_normalizado = phrase), e.g. phrase = "articulo 12".
	ByNombrepartNormalizado(ctx context.Context, key, phrase string) (Row, error)
	// ByFuzzy matches nombreparte LIKE "%<needle>%" for the given key,
	// trying each needle variant in order until one matches.
	ByFuzzy(ctx context.Context, key string, needles []string) (Row, error)
	// KeyVariants returns the distinct clave values matching "<prefix>%",
	// used by DL disambiguation (§4.6 step 4).
	KeyVariants(ctx context.Context, prefix string) ([]string, error)
}
