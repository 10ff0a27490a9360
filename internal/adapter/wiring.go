package adapter

import (
	"github.com/legitimus-pro/esqueleto-gateway/internal/persistence/databases"
	"github.com/legitimus-pro/esqueleto-gateway/internal/tenant"
	"github.com/legitimus-pro/esqueleto-gateway/internal/tools"
	"github.com/legitimus-pro/esqueleto-gateway/internal/tools/retrieval"
	"github.com/legitimus-pro/esqueleto-gateway/internal/tools/web"
	"github.com/legitimus-pro/esqueleto-gateway/internal/tools/websearch"
)

// Infra bundles the process-wide backends the tool-wiring rules (§4.4) may
// reach for. Any of these may be nil when the corresponding tenant flag is
// never set across the deployment; BuildRegistry only dereferences the ones
// a given tenant's flags require.
type Infra struct {
	VectorStore databases.VectorStore
	Embedder    retrieval.Embedder
	SearXNGURL  string
}

// UserTool is a tenant-declared function tool appended verbatim after the
// derived tool set (§4.4's "other user-declared tool entries").
type UserTool = tools.Tool

// BuildRegistry applies the Streaming LLM Adapter's deterministic
// tool-wiring rules (§4.4) for one tenant: retrieval, web-search,
// navigate_web, then any user-declared tools, in that order.
func BuildRegistry(cfg tenant.TenantConfig, infra Infra, userTools []UserTool) tools.Registry {
	reg := tools.NewRegistry()

	if cfg.Tools.RetrievalEnabled && infra.VectorStore != nil && infra.Embedder != nil {
		storeIDs := cfg.VectorStoreIDs
		reg.Register(retrieval.New(infra.VectorStore, infra.Embedder, func() retrieval.Config {
			return retrieval.Config{StoreIDs: storeIDs, TopK: 5}
		}))
	}

	if cfg.Tools.WebSearchEnabled && infra.SearXNGURL != "" {
		reg.Register(websearch.New(infra.SearXNGURL))
	}

	if cfg.Tools.WebFetchEnabled {
		nav := cfg.WebNavigation
		mode := web.ModeAllowlist
		if nav.Mode == "denylist" {
			mode = web.ModeDenylist
		}
		reg.Register(web.NewNavigateWebTool(func() web.NavigationConfig {
			return web.NavigationConfig{
				Enabled:      true,
				Mode:         mode,
				AllowDomains: nav.AllowDomains,
				DenyDomains:  nav.DenyDomains,
				MaxPages:     nav.MaxPages,
				MaxDepth:     nav.MaxDepth,
				Timeout:      nav.Timeout(),
				UserAgent:    nav.UserAgent,
			}
		}))
	}

	for _, t := range userTools {
		reg.Register(t)
	}

	return reg
}
