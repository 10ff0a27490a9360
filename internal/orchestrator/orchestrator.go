// Package orchestrator implements the Turn Orchestrator (§4.8): the
// end-to-end pipeline for one user turn, from tenant resolution through
// streaming delivery, post-processing, memory persistence, and credit
// debit.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/legitimus-pro/esqueleto-gateway/internal/adapter"
	"github.com/legitimus-pro/esqueleto-gateway/internal/audit"
	"github.com/legitimus-pro/esqueleto-gateway/internal/citation"
	"github.com/legitimus-pro/esqueleto-gateway/internal/contextinject"
	"github.com/legitimus-pro/esqueleto-gateway/internal/credit"
	"github.com/legitimus-pro/esqueleto-gateway/internal/eventbus"
	"github.com/legitimus-pro/esqueleto-gateway/internal/llm"
	"github.com/legitimus-pro/esqueleto-gateway/internal/memory"
	"github.com/legitimus-pro/esqueleto-gateway/internal/objectstore"
	"github.com/legitimus-pro/esqueleto-gateway/internal/respcache"
	"github.com/legitimus-pro/esqueleto-gateway/internal/tenant"
	"github.com/legitimus-pro/esqueleto-gateway/internal/turnerr"
)

// UserProfile is the subset of the (out-of-scope) user-profile store the
// Context Injector needs (§4.2, §4.8 step 4). User-profile CRUD itself is
// an external collaborator per §1's Non-goals; Orchestrator only reads.
type UserProfile struct {
	DisplayName    string
	GeneralContext string
}

// UserProfileReader is the read-only boundary into the user-profile store.
type UserProfileReader interface {
	GetUserProfile(ctx context.Context, userID string) (UserProfile, error)
}

// noopProfileReader is used when the caller wires no profile store; every
// lookup returns a zero-value profile rather than failing the turn.
type noopProfileReader struct{}

func (noopProfileReader) GetUserProfile(context.Context, string) (UserProfile, error) {
	return UserProfile{}, nil
}

// Attachment is one per-turn upload (§4.8 step 8). Document-to-text
// conversion is out of scope (§1); Content is already-extracted text for
// text-like MIME types, or empty for anything else (reference-marker only).
type Attachment struct {
	Name     string
	MIMEType string
	Content  string
}

func (a Attachment) isTextLike() bool {
	return strings.HasPrefix(a.MIMEType, "text/") ||
		a.MIMEType == "application/json" ||
		a.MIMEType == ""
}

const attachmentPreviewChars = 500

// AttachmentIndexer forwards text-like attachment content to the per-user
// temporary retrieval store (§4.8 step 8), asynchronously and without
// blocking prompt assembly. A nil Indexer on Orchestrator skips indexing
// entirely — attachments still get previewed and referenced in the prompt.
type AttachmentIndexer interface {
	IndexAsync(ctx context.Context, userID string, att Attachment)
}

// Callbacks are the three hooks run_stream drives (§4.8 steps 12-14).
type Callbacks struct {
	OnDelta    func(delta string)
	OnComplete func(Bundle)
	OnError    func(err error)
}

// Bundle is the on_complete payload assembled at step 13 (§4.8).
type Bundle struct {
	Text              string
	Usage             llm.Usage
	InteractionStatus memory.InteractionStatus
	CreditDebit       respcache.CreditAnnotation
	AnnexUserView     []citation.UserViewEntry
	FromCache         bool
}

// Request is run_stream's argument bundle (§4.8's
// run_stream(question, user_id, attachments, chat_id, instance_binding, callbacks)).
type Request struct {
	Question        string
	UserID          string
	ChatID          string
	InstanceBinding string // tenant id; empty uses DefaultTenantID
	Attachments     []Attachment
}

// TenantLoader resolves a tenant id to its fully-loaded bundle (§4.8 step
// 1's "Instance.load(id)"). *tenant.Registry satisfies this directly.
type TenantLoader interface {
	Load(instanceID string) (tenant.Tenant, error)
}

// Orchestrator wires every collaborator named in §4.8's algorithm.
type Orchestrator struct {
	Tenants     TenantLoader
	Memory      *memory.Store
	Cache       respcache.Cache
	Credit      credit.Manager
	CitationDB  citation.Store
	Provider    llm.Provider
	Infra       adapter.Infra
	UserProfile UserProfileReader
	Indexer     AttachmentIndexer
	Audit       *audit.Trail
	Events      *eventbus.Publisher

	// KnowledgeStore is the alternate backend for knowledge files named by
	// an s3:// knowledge_roots entry (§6.2). Nil means only local-path
	// knowledge files can be loaded.
	KnowledgeStore objectstore.Store

	DefaultTenantID string
}

func (o *Orchestrator) profileReader() UserProfileReader {
	if o.UserProfile != nil {
		return o.UserProfile
	}
	return noopProfileReader{}
}

// RunStream executes the full pipeline for one turn (§4.8). It blocks until
// a terminal callback (OnComplete or OnError) has fired.
func (o *Orchestrator) RunStream(ctx context.Context, req Request, cb Callbacks) {
	// Step 1: resolve tenant.
	tenantID := req.InstanceBinding
	if tenantID == "" {
		tenantID = o.DefaultTenantID
	}
	t, err := o.Tenants.Load(tenantID)
	if err != nil {
		cb.OnError(turnerr.Wrap(turnerr.CodeOf(err), "loading tenant", err))
		return
	}

	// Step 2: concurrency gate.
	unlock := o.Memory.Lock(req.UserID, req.ChatID)
	defer unlock()

	// Step 3: streaming vs buffered mode. Both paths share every other step;
	// buffered mode only changes how deltas reach the caller, so it is
	// folded into the same RunStream by buffering deltas before forwarding
	// them, rather than duplicating the pipeline (§4.8 step 3's "degenerate
	// case" framing).
	onDelta := cb.OnDelta
	var buffered strings.Builder
	if !t.Config.IsStreaming() {
		onDelta = func(d string) { buffered.WriteString(d) }
	}

	// Step 4: build system prompt.
	profile, _ := o.profileReader().GetUserProfile(ctx, req.UserID)
	knowledgeFiles := o.loadKnowledgeFiles(ctx, t)
	contextPrefix := contextinject.Build(contextinject.Input{
		TenantConfig:   t.Config,
		User:           contextinject.User{ID: req.UserID, DisplayName: profile.DisplayName, GeneralContext: profile.GeneralContext},
		KnowledgeFiles: knowledgeFiles,
		Now:            time.Now(),
	})
	systemPrompt := t.SystemPrompt
	if contextPrefix != "" {
		systemPrompt = systemPrompt + "\n\n" + contextPrefix
	}

	// Step 5: load memory, trim to the rolling window.
	history, err := o.Memory.LoadContext(req.UserID, req.ChatID)
	if err != nil {
		cb.OnError(turnerr.Wrap(turnerr.CodePersistenceFailed, "loading memory", err))
		return
	}
	if t.Config.Memory.RollingWindowTurns > 0 {
		limit := 2 * t.Config.Memory.RollingWindowTurns
		if len(history) > limit {
			history = history[len(history)-limit:]
		}
	}

	// Step 6: interaction limit.
	status, err := o.Memory.GetInteractionStatus(req.UserID, req.ChatID, t.Config.Memory.MaxInteractions, t.Config.Memory.WarningThreshold)
	if err != nil {
		cb.OnError(turnerr.Wrap(turnerr.CodePersistenceFailed, "reading interaction status", err))
		return
	}
	if status.LimitReached {
		onDelta("Has alcanzado el límite máximo de interacciones para esta conversación.")
		if !t.Config.IsStreaming() {
			cb.OnDelta(buffered.String())
		}
		cb.OnComplete(Bundle{Text: "limit reached", InteractionStatus: status})
		return
	}

	// Step 7: credit balance floor check.
	floor := t.Config.Credit.CostFloor
	if floor <= 0 {
		floor = 1
	}
	balance, err := o.Credit.Balance(ctx, req.UserID)
	if err != nil {
		cb.OnError(turnerr.Wrap(turnerr.CodeInternalError, "checking credit balance", err))
		return
	}
	if balance < floor {
		cb.OnError(turnerr.New(turnerr.CodeInsufficientCredits, "balance below cost floor"))
		return
	}

	// Step 8: attachment handling — never blocks prompt assembly.
	attachmentBlock := o.handleAttachments(ctx, req.UserID, t.Config, req.Attachments)

	// Step 9: cache probe.
	cacheKey := respcache.ConfigKey{
		Model:            t.Config.Model,
		APIMode:          t.Config.APIMode,
		RetrievalEnabled: t.Config.Tools.RetrievalEnabled,
		WebSearchEnabled: t.Config.Tools.WebSearchEnabled,
	}
	if o.Cache != nil {
		if cached, ok := o.Cache.Get(ctx, req.Question, req.UserID, cacheKey); ok {
			onDelta(cached.Text)
			if !t.Config.IsStreaming() {
				cb.OnDelta(buffered.String())
			}
			cb.OnComplete(Bundle{
				Text:        cached.Text,
				CreditDebit: respcache.CreditAnnotation{FromCache: true},
				FromCache:   true,
			})
			return
		}
	}

	// Step 10: assemble input_text.
	inputText := assembleInputText(systemPrompt, history, req.Question, attachmentBlock)

	// Step 11-13: stream via the adapter, with the three step-14/step-13
	// terminal callbacks.
	a := adapter.New(o.Provider, adapter.BuildRegistry(t.Config, o.Infra, nil), t.Config)

	llmHistory := convertHistory(history)

	a.Stream(ctx, inputText, llmHistory, adapter.Callbacks{
		OnDelta: onDelta,
		OnComplete: func(r adapter.Result) {
			o.onAdapterComplete(ctx, req, t, status, r, buffered.String(), cb)
		},
		OnError: func(err error) {
			// Step 14: release (deferred unlock), forward unchanged, persist
			// nothing, debit nothing.
			cb.OnError(err)
		},
	})
}

// onAdapterComplete implements §4.8 step 13: citation resolution, memory
// persistence, credit debit, cache population, and the final onComplete.
func (o *Orchestrator) onAdapterComplete(ctx context.Context, req Request, t tenant.Tenant, status memory.InteractionStatus, r adapter.Result, bufferedText string, cb Callbacks) {
	// 13a: normative citation resolution.
	var annexUserView []citation.UserViewEntry
	var citationResult citation.Result
	if o.CitationDB != nil {
		res, err := citation.Process(ctx, r.Text, o.CitationDB, citation.ViewConfig{
			VerificationDirective: t.Config.NormativeCite.VerificationDirective,
			UserViewFields:        t.Config.NormativeCite.UserViewFields,
		})
		if err == nil && res.HasResults {
			citationResult = res
			annexUserView = res.UserView
		}
	}

	// 13b: persist turn and bump the interaction counter.
	turnUsage := memory.TurnUsage{InputTokens: r.Usage.InputTokens, OutputTokens: r.Usage.OutputTokens, TotalTokens: r.Usage.TotalTokens}
	var annex any
	if len(annexUserView) > 0 {
		annex = annexUserView
	}
	if err := o.Memory.SaveTurn(req.UserID, req.ChatID, req.Question, r.Text, turnUsage, annex, t.Config.Memory.RollingWindowTurns); err != nil {
		cb.OnError(turnerr.Wrap(turnerr.CodePersistenceFailed, "saving turn", err))
		return
	}
	newCount := status.Current + 1
	_ = o.Memory.SaveTurnCount(req.UserID, req.ChatID, newCount)
	if updated, err := o.Memory.GetInteractionStatus(req.UserID, req.ChatID, t.Config.Memory.MaxInteractions, t.Config.Memory.WarningThreshold); err == nil {
		status = updated
	} else {
		status.Current = newCount
	}

	// 13c: credit debit. Pre-checked at step 7, so a failure here is
	// unexpected, not a reason to discard the already-persisted turn.
	var debit respcache.CreditAnnotation
	if o.Credit != nil {
		rec, err := o.Credit.Debit(ctx, req.UserID, req.ChatID, credit.UsageRequest{
			Model:             t.Config.Model,
			InputTokens:       r.Usage.InputTokens,
			CachedInputTokens: r.Usage.CachedInputTokens,
			OutputTokens:      r.Usage.OutputTokens,
		})
		if err != nil {
			debit = respcache.CreditAnnotation{FromCache: false}
		} else {
			debit = respcache.CreditAnnotation{Credits: rec.Credits, CostUSD: rec.CostUSD}
		}
	}

	// 13d: cache set.
	if o.Cache != nil {
		cacheKey := respcache.ConfigKey{
			Model:            t.Config.Model,
			APIMode:          t.Config.APIMode,
			RetrievalEnabled: t.Config.Tools.RetrievalEnabled,
			WebSearchEnabled: t.Config.Tools.WebSearchEnabled,
		}
		_ = o.Cache.Set(ctx, req.Question, req.UserID, cacheKey, respcache.CachedTurn{
			Text:              r.Text,
			Usage:             r.Usage,
			InteractionStatus: status,
			CreditDebit:       debit,
			Annex:             annex,
		}, respcache.DefaultTTL)
	}

	// Audit trail and turn.completed event: both are fire-and-forget,
	// independent of the hot path (domain-stack wiring for ClickHouse /
	// Kafka). Neither failure nor latency here may affect the turn.
	if o.Audit != nil {
		go func() {
			_ = o.Audit.Record(context.Background(), audit.TurnRecord{
				Timestamp:         time.Now(),
				UserID:            req.UserID,
				ChatID:            req.ChatID,
				TenantID:          t.ID,
				Model:             t.Config.Model,
				InputTokens:       r.Usage.InputTokens,
				CachedInputTokens: r.Usage.CachedInputTokens,
				OutputTokens:      r.Usage.OutputTokens,
				Credits:           debit.Credits,
				CostUSD:           debit.CostUSD,
			})
		}()
	}
	if o.Events != nil {
		go func() {
			_ = o.Events.Publish(context.Background(), eventbus.TurnCompleted{
				UserID:      req.UserID,
				ChatID:      req.ChatID,
				TenantID:    t.ID,
				Model:       t.Config.Model,
				Credits:     debit.Credits,
				CostUSD:     debit.CostUSD,
				CompletedAt: time.Now(),
			})
		}()
	}

	if !t.Config.IsStreaming() {
		cb.OnDelta(bufferedText)
	}

	// 13e: final onComplete.
	cb.OnComplete(Bundle{
		Text:              r.Text,
		Usage:             r.Usage,
		InteractionStatus: status,
		CreditDebit:       debit,
		AnnexUserView:     citationResult.UserView,
	})
}

func (o *Orchestrator) handleAttachments(ctx context.Context, userID string, cfg tenant.TenantConfig, attachments []Attachment) string {
	if len(attachments) == 0 {
		return ""
	}
	var b strings.Builder
	for _, att := range attachments {
		if cfg.Tools.RetrievalEnabled && att.isTextLike() && att.Content != "" {
			if o.Indexer != nil {
				go o.Indexer.IndexAsync(ctx, userID, att)
			}
			preview := att.Content
			if len(preview) > attachmentPreviewChars {
				preview = preview[:attachmentPreviewChars]
			}
			fmt.Fprintf(&b, "[attachment:%s]\n%s\n", att.Name, preview)
		} else {
			fmt.Fprintf(&b, "[attachment reference: %s]\n", att.Name)
		}
	}
	return b.String()
}

// loadKnowledgeFiles reads each of the tenant's resolved knowledge-file
// paths, capping per-file and total content per tenant.InstanceFilesConfig
// (§4.2). A file that fails to read is skipped, not fatal to the turn. A
// path naming an s3:// URI is read through o.KnowledgeStore instead of the
// local filesystem (§6.2); if no KnowledgeStore is wired, s3:// entries are
// skipped like any other unreadable file.
func (o *Orchestrator) loadKnowledgeFiles(ctx context.Context, t tenant.Tenant) []contextinject.KnowledgeFile {
	maxFile := t.Config.InstanceFiles.MaxFileChars
	maxTotal := t.Config.InstanceFiles.MaxTotalChars
	var total int
	out := make([]contextinject.KnowledgeFile, 0, len(t.KnowledgeFiles))
	for _, p := range t.KnowledgeFiles {
		b, name, err := o.readKnowledgeFile(ctx, p)
		if err != nil {
			continue
		}
		content := string(b)
		if maxFile > 0 && len(content) > maxFile {
			content = content[:maxFile]
		}
		if maxTotal > 0 {
			if total >= maxTotal {
				break
			}
			if total+len(content) > maxTotal {
				content = content[:maxTotal-total]
			}
			total += len(content)
		}
		out = append(out, contextinject.KnowledgeFile{Name: name, Content: content})
	}
	return out
}

// readKnowledgeFile reads one knowledge-file path, dispatching to
// o.KnowledgeStore for s3:// URIs and the local filesystem otherwise. The
// bucket named in an s3:// URI is informational only: the configured
// KnowledgeStore is already bound to a single bucket (config.S3Config), so
// only the key (everything after the bucket segment) is used.
func (o *Orchestrator) readKnowledgeFile(ctx context.Context, p string) ([]byte, string, error) {
	if rest, ok := strings.CutPrefix(p, "s3://"); ok {
		key := rest
		if idx := strings.Index(rest, "/"); idx >= 0 {
			key = rest[idx+1:]
		}
		if o.KnowledgeStore == nil {
			return nil, "", fmt.Errorf("no object store configured for %s", p)
		}
		r, _, err := o.KnowledgeStore.Get(ctx, key)
		if err != nil {
			return nil, "", err
		}
		defer r.Close()
		b, err := io.ReadAll(r)
		if err != nil {
			return nil, "", err
		}
		return b, filepath.Base(key), nil
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, "", err
	}
	return b, filepath.Base(p), nil
}

func assembleInputText(systemPrompt string, history []memory.Message, question, attachmentBlock string) string {
	var b strings.Builder
	b.WriteString("[system]\n")
	b.WriteString(systemPrompt)
	b.WriteString("\n")
	for _, m := range history {
		b.WriteString("[")
		b.WriteString(m.Role)
		b.WriteString("]\n")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	b.WriteString("[user]\n")
	b.WriteString(question)
	if attachmentBlock != "" {
		b.WriteString("\n")
		b.WriteString(attachmentBlock)
	}
	return b.String()
}

func convertHistory(history []memory.Message) []llm.Message {
	out := make([]llm.Message, 0, len(history))
	for _, m := range history {
		role := m.Role
		switch role {
		case memory.RoleSystemAnnex, memory.RoleSystemInit:
			continue
		}
		out = append(out, llm.Message{Role: role, Content: m.Content})
	}
	return out
}
