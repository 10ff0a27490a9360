// Package tenant models the per-tenant (per-instance) configuration record
// and data shapes shared by the Instance Registry, Context Injector, and
// Turn Orchestrator.
package tenant

import (
	"strings"
	"time"
)

// MemoryConfig tunes the rolling-window memory store and interaction limiter
// for a tenant.
type MemoryConfig struct {
	RollingWindowTurns int `yaml:"rolling_window_turns" json:"rolling_window_turns"`
	MaxInteractions    int `yaml:"max_interactions" json:"max_interactions"`
	WarningThreshold   int `yaml:"warning_threshold" json:"warning_threshold"`
}

// ToolsConfig selects which provider-side and function tools are available
// to this tenant.
type ToolsConfig struct {
	RetrievalEnabled bool `yaml:"retrieval_enabled" json:"retrieval_enabled"`
	WebSearchEnabled bool `yaml:"web_search_enabled" json:"web_search_enabled"`
	WebFetchEnabled  bool `yaml:"web_fetch_enabled" json:"web_fetch_enabled"`
	FunctionsEnabled bool `yaml:"functions_enabled" json:"functions_enabled"`
	URLValidation    bool `yaml:"url_validation" json:"url_validation"`
	CitationEnforced bool `yaml:"citation_enforced" json:"citation_enforced"`
}

// WebNavigationConfig is the tenant's restricted-crawl policy for the
// navigate_web function tool (§4.9).
type WebNavigationConfig struct {
	Mode         string   `yaml:"mode" json:"mode"` // "allowlist" | "denylist"
	AllowDomains []string `yaml:"allow_domains" json:"allow_domains"`
	DenyDomains  []string `yaml:"deny_domains" json:"deny_domains"`
	MaxPages     int      `yaml:"max_pages" json:"max_pages"`
	MaxDepth     int      `yaml:"max_depth" json:"max_depth"`
	TimeoutSecs  int      `yaml:"timeout_seconds" json:"timeout_seconds"`
	UserAgent    string   `yaml:"user_agent" json:"user_agent"`
}

// Timeout returns the configured per-request timeout, defaulting to 15s.
func (w WebNavigationConfig) Timeout() time.Duration {
	if w.TimeoutSecs <= 0 {
		return 15 * time.Second
	}
	return time.Duration(w.TimeoutSecs) * time.Second
}

// InstanceFilesConfig caps how much tenant knowledge-file content the
// Context Injector may fold into the prompt prefix.
type InstanceFilesConfig struct {
	MaxFileChars  int `yaml:"max_file_chars" json:"max_file_chars"`
	MaxTotalChars int `yaml:"max_total_chars" json:"max_total_chars"`
}

// ContextInjectionConfig toggles the optional Context Injector blocks (§4.2).
type ContextInjectionConfig struct {
	IncludeDateTime bool `yaml:"include_date_time" json:"include_date_time"`
	IncludeLocale   bool `yaml:"include_locale" json:"include_locale"`
}

// NormativeCitationConfig configures the Normative Citation Resolver's
// annex rendering for this tenant (§4.6).
type NormativeCitationConfig struct {
	VerificationDirective string   `yaml:"verification_directive" json:"verification_directive"`
	UserViewFields        []string `yaml:"user_view_fields" json:"user_view_fields"`
}

// CreditPolicy holds per-tenant credit-debit knobs. The pricing table itself
// (per-token USD rates, usd_per_credit) is process-wide and immutable
// (config.CreditConfig); CostFloor is the minimum debit a tenant's turns may
// incur, enforced by the orchestrator's pre-call credit check (§4.8 step 7).
type CreditPolicy struct {
	CostFloor int `yaml:"cost_floor" json:"cost_floor"`
}

// TenantConfig is immutable for a given process load (§3).
type TenantConfig struct {
	Model       string  `yaml:"model" json:"model"`
	APIMode     string  `yaml:"api_mode" json:"api_mode"` // "streaming" (default) | "buffered"
	Temperature float64 `yaml:"temperature" json:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens"`

	Memory MemoryConfig `yaml:"memory" json:"memory"`

	KnowledgeRoots []string                `yaml:"knowledge_roots" json:"knowledge_roots"`
	Tools          ToolsConfig             `yaml:"tools" json:"tools"`
	VectorStoreIDs []string                `yaml:"vector_store_ids" json:"vector_store_ids"`
	WebNavigation  WebNavigationConfig     `yaml:"web_navigation" json:"web_navigation"`
	InstanceFiles  InstanceFilesConfig     `yaml:"instance_files" json:"instance_files"`
	ContextInject  ContextInjectionConfig  `yaml:"context_injection" json:"context_injection"`
	Timezone       string                  `yaml:"timezone" json:"timezone"`
	Locale         string                  `yaml:"locale" json:"locale"`
	Country        string                  `yaml:"country" json:"country"`
	Credit         CreditPolicy            `yaml:"credit" json:"credit"`
	NormativeCite  NormativeCitationConfig `yaml:"normative_citation" json:"normative_citation"`
}

// IsStreaming reports whether this tenant runs the streaming path (§4.8
// step 3); the empty string defaults to streaming.
func (c TenantConfig) IsStreaming() bool {
	return c.APIMode == "" || strings.EqualFold(c.APIMode, "streaming")
}

// Tenant (Instance) is an immutable, fully-resolved on-disk tenant bundle
// (§3). Lifetime is at least the process's, reloaded only by an explicit
// Registry.load call.
type Tenant struct {
	ID                    string
	DisplayName           string
	Description           string
	InitialGreeting       string
	InitializationMessage string
	SystemPrompt          string
	SystemPromptHash      string // hex-encoded SHA-256 of SystemPrompt
	Config                TenantConfig
	KnowledgeFiles        []string // resolved absolute/relative paths under KnowledgeRoots
}

// TenantSummary is the cheap listing view returned by Registry.List.
type TenantSummary struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}
