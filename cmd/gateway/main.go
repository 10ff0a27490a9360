// Command gateway wires every collaborator named in §4.8's Turn
// Orchestrator and drives one turn per invocation from the command line.
// HTTP/SSE transport is out of scope (§1's Non-goals): this binary proves
// out the pipeline end to end without a server, the way cmd/agent-demo
// exercises the agent engine without one.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/legitimus-pro/esqueleto-gateway/internal/audit"
	"github.com/legitimus-pro/esqueleto-gateway/internal/citation"
	"github.com/legitimus-pro/esqueleto-gateway/internal/config"
	"github.com/legitimus-pro/esqueleto-gateway/internal/credit"
	"github.com/legitimus-pro/esqueleto-gateway/internal/eventbus"
	"github.com/legitimus-pro/esqueleto-gateway/internal/llm"
	"github.com/legitimus-pro/esqueleto-gateway/internal/llm/providers"
	"github.com/legitimus-pro/esqueleto-gateway/internal/memory"
	"github.com/legitimus-pro/esqueleto-gateway/internal/objectstore"
	"github.com/legitimus-pro/esqueleto-gateway/internal/observability"
	"github.com/legitimus-pro/esqueleto-gateway/internal/orchestrator"
	"github.com/legitimus-pro/esqueleto-gateway/internal/persistence/databases"
	"github.com/legitimus-pro/esqueleto-gateway/internal/respcache"
	"github.com/legitimus-pro/esqueleto-gateway/internal/tenant"
	"github.com/legitimus-pro/esqueleto-gateway/internal/tools/retrieval"

	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("gateway")
	}
}

func run() error {
	tenantID := flag.String("tenant", "", "tenant id to bind the turn to (defaults to $DEFAULT_TENANT_ID)")
	userID := flag.String("user", "cli-user", "user id for memory/credit/cache keys")
	chatID := flag.String("chat", "cli-chat", "chat id for memory/credit/cache keys")
	question := flag.String("q", "", "question text; reads stdin if empty")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	observability.InitLogger(cfg.LogPath, cfg.LogLevel)
	llm.ConfigureLogging(cfg.LogPayloads, 0)

	baseCtx := context.Background()
	shutdownOTel, err := observability.InitOTel(baseCtx, cfg.Telemetry)
	if err != nil {
		log.Warn().Err(err).Msg("otel init failed, continuing without observability")
		shutdownOTel = nil
	}
	if shutdownOTel != nil {
		defer func() { _ = shutdownOTel(context.Background()) }()
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         (&net.Dialer{Timeout: 7 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			ForceAttemptHTTP2:   true,
			TLSHandshakeTimeout: 7 * time.Second,
			MaxIdleConnsPerHost: 50,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	provider, err := providers.Build(cfg, httpClient)
	if err != nil {
		return fmt.Errorf("build llm provider: %w", err)
	}

	tenants := tenant.NewRegistry(cfg.TenantsRoot)
	tenants.Defaults = cfg.TenantDefaults

	o := &orchestrator.Orchestrator{
		Tenants:         tenants,
		Memory:          memory.NewStore(cfg.MemoryRoot),
		Provider:        provider,
		DefaultTenantID: firstNonEmpty(*tenantID, os.Getenv("DEFAULT_TENANT_ID")),
	}

	// Response Cache (§4.7): Redis-backed when configured, always-miss
	// otherwise.
	if cfg.Cache.Addr != "" {
		redisCache := respcache.NewRedisCache(redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		}))
		o.Cache = respcache.NewSingleflightCache(redisCache)
	} else {
		o.Cache = respcache.NoopCache{}
	}

	// Postgres-backed collaborators (Normative Citation Store, Credit
	// Manager): both optional, degrading gracefully when no DSN is set.
	if cfg.Database.DSN != "" {
		pool, err := databases.OpenPool(baseCtx, cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("open postgres pool: %w", err)
		}
		defer pool.Close()
		o.CitationDB = citation.NewPostgresStore(pool)
		o.Credit = credit.NewPostgresManager(pool, credit.NewPricingTable(cfg.Credit))
	} else {
		log.Warn().Msg("no DATABASE_DSN configured; citation resolution and credit debit are disabled")
	}

	// Vector store + embedder behind retrieval_search, and the SearXNG
	// endpoint behind web_search (§4.4): both optional per-tool infra.
	if cfg.VectorStore.DSN != "" {
		vs, err := databases.NewQdrantVector(cfg.VectorStore.DSN, cfg.VectorStore.Collection, cfg.VectorStore.Dimensions, cfg.VectorStore.Metric)
		if err != nil {
			return fmt.Errorf("init qdrant vector store: %w", err)
		}
		o.Infra.VectorStore = vs
		o.Infra.Embedder = retrieval.NewOpenAIEmbedder(cfg.Embedding.APIKey, cfg.Embedding.BaseURL, cfg.Embedding.Model, httpClient)
	}
	o.Infra.SearXNGURL = cfg.WebSearch.SearXNGURL

	// Turn Usage audit trail (ClickHouse) and turn.completed events
	// (Kafka): both fire-and-forget, both optional.
	trail, err := audit.Open(baseCtx, audit.Config{DSN: cfg.Audit.DSN, Database: cfg.Audit.Database, Table: cfg.Audit.Table})
	if err != nil {
		return fmt.Errorf("open audit trail: %w", err)
	}
	if trail != nil {
		defer trail.Close()
	}
	o.Audit = trail
	if len(cfg.Events.Brokers) > 0 {
		pub := eventbus.NewPublisher(cfg.Events.Brokers, cfg.Events.Topic)
		defer pub.Close()
		o.Events = pub
	}

	// Alternate S3 backend for s3:// knowledge_roots entries (§6.2).
	if cfg.S3.Bucket != "" {
		s3store, err := objectstore.NewS3Store(baseCtx, cfg.S3)
		if err != nil {
			return fmt.Errorf("init s3 knowledge store: %w", err)
		}
		o.KnowledgeStore = s3store
	}

	q := *question
	if q == "" {
		scanner := bufio.NewScanner(os.Stdin)
		var b strings.Builder
		for scanner.Scan() {
			b.WriteString(scanner.Text())
			b.WriteString("\n")
		}
		q = strings.TrimSpace(b.String())
	}
	if q == "" {
		return fmt.Errorf("no question given: pass -q or pipe text on stdin")
	}

	done := make(chan struct{})
	o.RunStream(baseCtx, orchestrator.Request{
		Question:        q,
		UserID:          *userID,
		ChatID:          *chatID,
		InstanceBinding: o.DefaultTenantID,
	}, orchestrator.Callbacks{
		OnDelta: func(delta string) { fmt.Print(delta) },
		OnComplete: func(b orchestrator.Bundle) {
			fmt.Println()
			log.Info().
				Int("input_tokens", b.Usage.InputTokens).
				Int("output_tokens", b.Usage.OutputTokens).
				Bool("from_cache", b.FromCache).
				Int("credits_debited", b.CreditDebit.Credits).
				Msg("turn complete")
			close(done)
		},
		OnError: func(err error) {
			log.Error().Err(err).Msg("turn failed")
			close(done)
		},
	})
	<-done

	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
