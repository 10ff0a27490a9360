package config

import "github.com/legitimus-pro/esqueleto-gateway/internal/tenant"

// AnthropicPromptCacheConfig controls which parts of an Anthropic request are
// marked with cache_control breakpoints.
type AnthropicPromptCacheConfig struct {
	Enabled       bool `yaml:"enabled"`
	CacheSystem   bool `yaml:"cache_system"`
	CacheMessages bool `yaml:"cache_messages"`
	CacheTools    bool `yaml:"cache_tools"`
}

// AnthropicConfig configures the Anthropic streaming adapter.
type AnthropicConfig struct {
	APIKey      string                     `yaml:"api_key"`
	BaseURL     string                     `yaml:"base_url"`
	Model       string                     `yaml:"model"`
	ExtraParams map[string]any             `yaml:"extra_params"`
	PromptCache AnthropicPromptCacheConfig `yaml:"prompt_cache"`
}

// OpenAIConfig configures the OpenAI-compatible adapter (also used for
// self-hosted OpenAI-wire servers reached via BaseURL).
type OpenAIConfig struct {
	API         string         `yaml:"api"` // "completions" (default) or "responses"
	APIKey      string         `yaml:"api_key"`
	BaseURL     string         `yaml:"base_url"`
	Model       string         `yaml:"model"`
	ExtraParams map[string]any `yaml:"extra_params"`
	LogPayloads bool           `yaml:"log_payloads"`
}

// GoogleConfig configures the Gemini adapter.
type GoogleConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	Timeout int    `yaml:"timeout_seconds"`
}

// LLMClientConfig selects and configures the process-wide model provider.
// Exactly one tenant-independent credential set is held here; per-tenant
// model/temperature/max_tokens overrides live in TenantConfig instead.
type LLMClientConfig struct {
	Provider  string          `yaml:"provider"` // "openai" | "local" | "anthropic" | "google"
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	Google    GoogleConfig    `yaml:"google"`
}

// TelemetryConfig controls whether a TracerProvider is installed.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	Insecure    bool   `yaml:"insecure"`
	ServiceName string `yaml:"service_name"`
}

// CacheConfig configures the Response Cache backend (redis).
type CacheConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TTLSecs  int    `yaml:"ttl_seconds"`
}

// DatabaseConfig configures the Postgres database behind the Normative
// Citation Store and the credit ledger.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// ModelRateConfig is one model's per-1M-token pricing (§9: "externalize
// pricing to a configuration table rather than hard-code values").
type ModelRateConfig struct {
	CostPer1MIn       float64 `yaml:"cost_per_1m_in"`
	CostPer1MInCached float64 `yaml:"cost_per_1m_in_cached"`
	CostPer1MOut      float64 `yaml:"cost_per_1m_out"`
}

// CreditConfig holds the pricing-table parameters used by the credit debit
// step (turn orchestrator step 13c).
type CreditConfig struct {
	USDPerCredit float64                    `yaml:"usd_per_credit"`
	ModelRates   map[string]ModelRateConfig `yaml:"model_rates"`
}

// AuditConfig configures the ClickHouse-backed Turn Usage audit trail. An
// empty DSN disables auditing entirely.
type AuditConfig struct {
	DSN      string `yaml:"dsn"`
	Database string `yaml:"database"`
	Table    string `yaml:"table"`
}

// EventBusConfig configures the Kafka turn.completed publisher. Empty
// Brokers disables event publication.
type EventBusConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// VectorStoreConfig configures the Qdrant-backed vector store behind the
// retrieval_search tool (§4.4).
type VectorStoreConfig struct {
	DSN        string `yaml:"dsn"`
	Collection string `yaml:"collection"`
	Dimensions int    `yaml:"dimensions"`
	Metric     string `yaml:"metric"`
}

// EmbeddingConfig configures the embedding model used to vectorize
// retrieval_search queries.
type EmbeddingConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// WebSearchConfig configures the SearXNG instance backing the web_search
// tool (§4.4).
type WebSearchConfig struct {
	SearXNGURL string `yaml:"searxng_url"`
}

// S3Config configures the alternate object-storage backend for tenant
// knowledge files, used when a knowledge_roots entry names an s3:// URI
// instead of a local path. Empty Bucket leaves the backend unconfigured;
// loading an s3:// knowledge root then fails rather than falling back to
// the filesystem.
type S3Config struct {
	Region       string `yaml:"region"`
	Bucket       string `yaml:"bucket"`
	Endpoint     string `yaml:"endpoint"` // set for MinIO / S3-compatible services
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// Config is the process-wide configuration: a single set of model
// credentials and infrastructure endpoints shared by every tenant hosted by
// this process. Tenant-specific behavior (model choice, memory limits,
// tool enablement, knowledge roots) lives in TenantConfig and is loaded
// per-request from the tenant's on-disk layout.
type Config struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// TenantsRoot is the filesystem root under which each tenant's
	// directory (config record, prompts/, files/, historial/, conocimiento*)
	// is discovered.
	TenantsRoot string `yaml:"tenants_root"`

	// MemoryRoot is the filesystem root for the per-(user,chat) message
	// log and turn counter (§4.3).
	MemoryRoot string `yaml:"memory_root"`

	// TenantDefaults implements §6.5's "a process-wide configuration
	// record supplies per-tenant defaults and feature flags": loaded from
	// an optional YAML file (TenantDefaultsFile), it pre-populates every
	// field a tenant's own config.json record leaves unset. The per-tenant
	// JSON record (§6.2, spec-mandated format) always wins where it sets a
	// field explicitly.
	TenantDefaults     tenant.TenantConfig `yaml:"-"`
	TenantDefaultsFile string              `yaml:"-"`

	LLMClient   LLMClientConfig   `yaml:"llm_client"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Cache       CacheConfig       `yaml:"cache"`
	Database    DatabaseConfig    `yaml:"database"`
	Credit      CreditConfig      `yaml:"credit"`
	Audit       AuditConfig       `yaml:"audit"`
	Events      EventBusConfig    `yaml:"events"`
	S3          S3Config          `yaml:"s3"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	WebSearch   WebSearchConfig   `yaml:"web_search"`

	LogPath     string `yaml:"log_path"`
	LogLevel    string `yaml:"log_level"`
	LogPayloads bool   `yaml:"log_payloads"`
}
