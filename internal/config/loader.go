package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	yaml "gopkg.in/yaml.v3"

	"github.com/legitimus-pro/esqueleto-gateway/internal/tenant"
)

// Load reads process-wide configuration from the environment (optionally via
// a .env file). This process hosts many tenants; per-tenant behavior is
// loaded separately via tenant.Registry.Load from each tenant's on-disk
// config record, not from here.
func Load() (Config, error) {
	// Overload so a local .env deterministically controls development
	// behavior: values from .env replace variables the real environment
	// already set.
	_ = godotenv.Overload()

	cfg := Config{}

	cfg.Host = firstNonEmpty(strings.TrimSpace(os.Getenv("HOST")), "0.0.0.0")
	cfg.Port = intFromEnv("PORT", 8080)
	cfg.TenantsRoot = firstNonEmpty(strings.TrimSpace(os.Getenv("TENANTS_ROOT")), "./tenants")
	cfg.MemoryRoot = firstNonEmpty(strings.TrimSpace(os.Getenv("MEMORY_ROOT")), "./memory")

	cfg.LLMClient.Provider = strings.TrimSpace(os.Getenv("LLM_PROVIDER"))

	// A single process-wide API key variable covers whichever provider is
	// selected; per-provider overrides remain available for mixed fleets.
	apiKey := strings.TrimSpace(os.Getenv("LLM_API_KEY"))

	if v := firstNonEmpty(strings.TrimSpace(os.Getenv("OPENAI_API_KEY")), apiKey); v != "" {
		cfg.LLMClient.OpenAI.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("OPENAI_MODEL")); v != "" {
		cfg.LLMClient.OpenAI.Model = v
	}
	if v := firstNonEmpty(strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")), strings.TrimSpace(os.Getenv("OPENAI_API_BASE_URL"))); v != "" {
		cfg.LLMClient.OpenAI.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("OPENAI_API")); v != "" {
		cfg.LLMClient.OpenAI.API = v
	}

	if v := firstNonEmpty(strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")), apiKey); v != "" {
		cfg.LLMClient.Anthropic.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_MODEL")); v != "" {
		cfg.LLMClient.Anthropic.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_BASE_URL")); v != "" {
		cfg.LLMClient.Anthropic.BaseURL = v
	}
	cfg.LLMClient.Anthropic.PromptCache.Enabled = boolFromEnv("ANTHROPIC_PROMPT_CACHE", true)
	cfg.LLMClient.Anthropic.PromptCache.CacheSystem = boolFromEnv("ANTHROPIC_CACHE_SYSTEM", true)
	cfg.LLMClient.Anthropic.PromptCache.CacheMessages = boolFromEnv("ANTHROPIC_CACHE_MESSAGES", true)
	cfg.LLMClient.Anthropic.PromptCache.CacheTools = boolFromEnv("ANTHROPIC_CACHE_TOOLS", true)

	if v := firstNonEmpty(strings.TrimSpace(os.Getenv("GOOGLE_API_KEY")), apiKey); v != "" {
		cfg.LLMClient.Google.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("GOOGLE_MODEL")); v != "" {
		cfg.LLMClient.Google.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("GOOGLE_BASE_URL")); v != "" {
		cfg.LLMClient.Google.BaseURL = v
	}
	cfg.LLMClient.Google.Timeout = intFromEnv("GOOGLE_TIMEOUT_SECONDS", 60)

	if strings.TrimSpace(cfg.LLMClient.Provider) == "" {
		switch {
		case cfg.LLMClient.Anthropic.APIKey != "":
			cfg.LLMClient.Provider = "anthropic"
		case cfg.LLMClient.Google.APIKey != "":
			cfg.LLMClient.Provider = "google"
		default:
			cfg.LLMClient.Provider = "openai"
		}
	}

	cfg.Telemetry.Enabled = boolFromEnv("TELEMETRY_ENABLED", false)
	cfg.Telemetry.Endpoint = strings.TrimSpace(os.Getenv("TELEMETRY_ENDPOINT"))
	cfg.Telemetry.Insecure = boolFromEnv("TELEMETRY_INSECURE", true)
	cfg.Telemetry.ServiceName = firstNonEmpty(strings.TrimSpace(os.Getenv("TELEMETRY_SERVICE_NAME")), "turn-gateway")

	// Response Cache (§4.7) is optional: an empty address disables it and
	// every lookup is treated as a cache miss.
	cfg.Cache.Addr = strings.TrimSpace(os.Getenv("CACHE_ADDR"))
	cfg.Cache.Password = strings.TrimSpace(os.Getenv("CACHE_PASSWORD"))
	cfg.Cache.DB = intFromEnv("CACHE_DB", 0)
	cfg.Cache.TTLSecs = intFromEnv("CACHE_TTL_SECONDS", 3600)

	cfg.Database.DSN = strings.TrimSpace(os.Getenv("DATABASE_DSN"))

	cfg.Credit.USDPerCredit = floatFromEnv("USD_PER_CREDIT", 0.01)

	// Turn Usage audit trail (ClickHouse) and turn.completed events
	// (Kafka) are both optional: empty DSN/brokers disable them.
	cfg.Audit.DSN = strings.TrimSpace(os.Getenv("CLICKHOUSE_DSN"))
	cfg.Audit.Database = strings.TrimSpace(os.Getenv("CLICKHOUSE_DATABASE"))
	cfg.Audit.Table = strings.TrimSpace(os.Getenv("CLICKHOUSE_TABLE"))

	if brokersCSV := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); brokersCSV != "" {
		for _, b := range strings.Split(brokersCSV, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.Events.Brokers = append(cfg.Events.Brokers, b)
			}
		}
	}
	cfg.Events.Topic = strings.TrimSpace(os.Getenv("KAFKA_TURN_COMPLETED_TOPIC"))

	cfg.VectorStore.DSN = strings.TrimSpace(os.Getenv("QDRANT_DSN"))
	cfg.VectorStore.Collection = firstNonEmpty(strings.TrimSpace(os.Getenv("QDRANT_COLLECTION")), "knowledge")
	cfg.VectorStore.Dimensions = intFromEnv("QDRANT_DIMENSIONS", 1536)
	cfg.VectorStore.Metric = firstNonEmpty(strings.TrimSpace(os.Getenv("QDRANT_METRIC")), "cosine")

	cfg.Embedding.APIKey = firstNonEmpty(strings.TrimSpace(os.Getenv("EMBEDDING_API_KEY")), cfg.LLMClient.OpenAI.APIKey)
	cfg.Embedding.BaseURL = strings.TrimSpace(os.Getenv("EMBEDDING_BASE_URL"))
	cfg.Embedding.Model = firstNonEmpty(strings.TrimSpace(os.Getenv("EMBEDDING_MODEL")), "text-embedding-3-small")

	cfg.WebSearch.SearXNGURL = strings.TrimSpace(os.Getenv("SEARXNG_URL"))

	cfg.S3.Region = strings.TrimSpace(os.Getenv("S3_REGION"))
	cfg.S3.Bucket = strings.TrimSpace(os.Getenv("S3_BUCKET"))
	cfg.S3.Endpoint = strings.TrimSpace(os.Getenv("S3_ENDPOINT"))
	cfg.S3.AccessKey = strings.TrimSpace(os.Getenv("S3_ACCESS_KEY"))
	cfg.S3.SecretKey = strings.TrimSpace(os.Getenv("S3_SECRET_KEY"))
	cfg.S3.UsePathStyle = boolFromEnv("S3_USE_PATH_STYLE", false)

	cfg.LogPath = strings.TrimSpace(os.Getenv("LOG_PATH"))
	cfg.LogLevel = firstNonEmpty(strings.TrimSpace(os.Getenv("LOG_LEVEL")), "info")
	cfg.LogPayloads = boolFromEnv("LOG_PAYLOADS", false)
	cfg.LLMClient.OpenAI.LogPayloads = cfg.LogPayloads

	cfg.TenantDefaultsFile = firstNonEmpty(strings.TrimSpace(os.Getenv("TENANT_DEFAULTS_FILE")), "./tenant-defaults.yaml")
	defaults, err := loadTenantDefaults(cfg.TenantDefaultsFile)
	if err != nil {
		return cfg, fmt.Errorf("loading tenant defaults: %w", err)
	}
	cfg.TenantDefaults = defaults

	return cfg, nil
}

// loadTenantDefaults reads the process-wide per-tenant defaults record
// (§6.5) from a YAML file. A missing file is not an error: every tenant
// field then falls back to its Go zero value, same as today.
func loadTenantDefaults(path string) (tenant.TenantConfig, error) {
	var defaults tenant.TenantConfig
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaults, nil
		}
		return defaults, err
	}
	if err := yaml.Unmarshal(data, &defaults); err != nil {
		return defaults, err
	}
	return defaults, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func intFromEnv(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func floatFromEnv(key string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func boolFromEnv(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}
