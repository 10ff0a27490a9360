package orchestrator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/legitimus-pro/esqueleto-gateway/internal/credit"
	"github.com/legitimus-pro/esqueleto-gateway/internal/llm"
	"github.com/legitimus-pro/esqueleto-gateway/internal/memory"
	"github.com/legitimus-pro/esqueleto-gateway/internal/objectstore"
	"github.com/legitimus-pro/esqueleto-gateway/internal/respcache"
	"github.com/legitimus-pro/esqueleto-gateway/internal/tenant"
)

type fakeTenantLoader struct {
	t   tenant.Tenant
	err error
}

func (f fakeTenantLoader) Load(id string) (tenant.Tenant, error) { return f.t, f.err }

type fakeCredit struct {
	balance int
	debited []credit.UsageRequest
}

func (f *fakeCredit) Balance(ctx context.Context, userID string) (int, error) { return f.balance, nil }
func (f *fakeCredit) Debit(ctx context.Context, userID, chatID string, usage credit.UsageRequest) (credit.DebitRecord, error) {
	f.debited = append(f.debited, usage)
	return credit.DebitRecord{Credits: 1, CostUSD: 0.001, NewBalance: f.balance - 1}, nil
}

type fakeCache struct {
	store map[string]respcache.CachedTurn
}

func (f *fakeCache) Get(ctx context.Context, question, userID string, key respcache.ConfigKey) (respcache.CachedTurn, bool) {
	if f.store == nil {
		return respcache.CachedTurn{}, false
	}
	v, ok := f.store[question]
	return v, ok
}

func (f *fakeCache) Set(ctx context.Context, question, userID string, key respcache.ConfigKey, turn respcache.CachedTurn, ttl time.Duration) error {
	if f.store == nil {
		f.store = make(map[string]respcache.CachedTurn)
	}
	f.store[question] = turn
	return nil
}

// echoProvider streams back a fixed reply with no tool calls.
type echoProvider struct{ reply string }

func (p echoProvider) Chat(ctx context.Context, msgs []llm.Message, tools []llm.ToolSchema, model string) (llm.Message, error) {
	return llm.Message{Role: "assistant", Content: p.reply}, nil
}

func (p echoProvider) ChatStream(ctx context.Context, msgs []llm.Message, tools []llm.ToolSchema, model string, h llm.StreamHandler) error {
	h.OnDelta(p.reply)
	if ur, ok := h.(llm.UsageReporter); ok {
		ur.OnUsage(llm.Usage{InputTokens: 3, OutputTokens: 2, TotalTokens: 5})
	}
	return nil
}

func newTestTenant() tenant.Tenant {
	return tenant.Tenant{
		ID:           "acme",
		SystemPrompt: "You are a helpful assistant.",
		Config: tenant.TenantConfig{
			Model:   "test-model",
			APIMode: "streaming",
			Memory:  tenant.MemoryConfig{RollingWindowTurns: 5, MaxInteractions: 10, WarningThreshold: 2},
			Credit:  tenant.CreditPolicy{CostFloor: 1},
		},
	}
}

func TestRunStreamHappyPath(t *testing.T) {
	memStore := memory.NewStore(t.TempDir())
	o := &Orchestrator{
		Tenants: fakeTenantLoader{t: newTestTenant()},
		Memory:  memStore,
		Credit:  &fakeCredit{balance: 100},
		Provider: echoProvider{reply: "hello there"},
	}

	var gotBundle Bundle
	var gotDeltas []string
	o.RunStream(context.Background(), Request{
		Question: "hi",
		UserID:   "u1",
		ChatID:   "c1",
	}, Callbacks{
		OnDelta:    func(d string) { gotDeltas = append(gotDeltas, d) },
		OnComplete: func(b Bundle) { gotBundle = b },
		OnError:    func(err error) { t.Fatalf("unexpected error: %v", err) },
	})

	if gotBundle.Text != "hello there" {
		t.Fatalf("expected final text %q, got %q", "hello there", gotBundle.Text)
	}
	if len(gotDeltas) != 1 || gotDeltas[0] != "hello there" {
		t.Fatalf("unexpected deltas: %v", gotDeltas)
	}

	history, err := memStore.LoadContext("u1", "c1")
	if err != nil || len(history) != 2 {
		t.Fatalf("expected turn to be persisted, got %v %v", history, err)
	}
}

func TestRunStreamInsufficientCredits(t *testing.T) {
	memStore := memory.NewStore(t.TempDir())
	o := &Orchestrator{
		Tenants:  fakeTenantLoader{t: newTestTenant()},
		Memory:   memStore,
		Credit:   &fakeCredit{balance: 0},
		Provider: echoProvider{reply: "should not be called"},
	}

	var gotErr error
	o.RunStream(context.Background(), Request{Question: "hi", UserID: "u2", ChatID: "c2"}, Callbacks{
		OnDelta:    func(string) {},
		OnComplete: func(Bundle) { t.Fatalf("onComplete should not fire") },
		OnError:    func(err error) { gotErr = err },
	})

	if gotErr == nil {
		t.Fatalf("expected insufficient-credits error")
	}
}

func TestRunStreamCacheHitSkipsProviderAndDebit(t *testing.T) {
	memStore := memory.NewStore(t.TempDir())
	creditMgr := &fakeCredit{balance: 100}
	cache := &fakeCache{store: map[string]respcache.CachedTurn{
		"hi": {Text: "cached answer"},
	}}
	o := &Orchestrator{
		Tenants:  fakeTenantLoader{t: newTestTenant()},
		Memory:   memStore,
		Credit:   creditMgr,
		Cache:    cache,
		Provider: echoProvider{reply: "should not be called"},
	}

	var gotBundle Bundle
	o.RunStream(context.Background(), Request{Question: "hi", UserID: "u4", ChatID: "c4"}, Callbacks{
		OnDelta:    func(string) {},
		OnComplete: func(b Bundle) { gotBundle = b },
		OnError:    func(err error) { t.Fatalf("unexpected error: %v", err) },
	})

	if !gotBundle.FromCache || gotBundle.Text != "cached answer" {
		t.Fatalf("expected cache-hit bundle, got %+v", gotBundle)
	}
	if len(creditMgr.debited) != 0 {
		t.Fatalf("expected no debit on cache hit, got %v", creditMgr.debited)
	}
}

func TestRunStreamInteractionLimitReached(t *testing.T) {
	memStore := memory.NewStore(t.TempDir())
	if err := memStore.SaveTurnCount("u3", "c3", 10); err != nil {
		t.Fatalf("seeding turn count: %v", err)
	}
	o := &Orchestrator{
		Tenants:  fakeTenantLoader{t: newTestTenant()},
		Memory:   memStore,
		Credit:   &fakeCredit{balance: 100},
		Provider: echoProvider{reply: "should not be called"},
	}

	var gotBundle Bundle
	var gotDeltas []string
	o.RunStream(context.Background(), Request{Question: "hi", UserID: "u3", ChatID: "c3"}, Callbacks{
		OnDelta:    func(d string) { gotDeltas = append(gotDeltas, d) },
		OnComplete: func(b Bundle) { gotBundle = b },
		OnError:    func(err error) { t.Fatalf("unexpected error: %v", err) },
	})

	if !gotBundle.InteractionStatus.LimitReached {
		t.Fatalf("expected limit-reached bundle, got %+v", gotBundle)
	}
	if len(gotDeltas) != 1 {
		t.Fatalf("expected exactly one delta (S2), got %v", gotDeltas)
	}
	if !strings.Contains(gotDeltas[0], "límite máximo de interacciones") {
		t.Fatalf("expected delta to contain the literal spec string %q, got %q", "límite máximo de interacciones", gotDeltas[0])
	}
}

func TestReadKnowledgeFileS3(t *testing.T) {
	store := objectstore.NewMemoryStore()
	store.Put("tenants/acme/files/policy.md", []byte("be kind"))
	o := &Orchestrator{KnowledgeStore: store}

	b, name, err := o.readKnowledgeFile(context.Background(), "s3://acme-bucket/tenants/acme/files/policy.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(b) != "be kind" {
		t.Fatalf("unexpected content: %q", b)
	}
	if name != "policy.md" {
		t.Fatalf("unexpected name: %q", name)
	}
}

func TestReadKnowledgeFileS3NoStoreConfigured(t *testing.T) {
	o := &Orchestrator{}
	if _, _, err := o.readKnowledgeFile(context.Background(), "s3://acme-bucket/missing.md"); err == nil {
		t.Fatalf("expected error when no KnowledgeStore is configured")
	}
}
