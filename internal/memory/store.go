// Package memory implements the Memory Store & Interaction Counter (§4.3):
// a file-based, per-(user, chat) append-only message log and turn counter,
// serialized per key via a bounded sharded mutex (§9).
package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Role values for a Message entry (§3's Chat attribute: "role ∈ {user,
// assistant, system-annex, system-init}").
const (
	RoleUser        = "user"
	RoleAssistant   = "assistant"
	RoleSystemAnnex = "system-annex"
	RoleSystemInit  = "system-init"
)

// TurnUsage is the token-usage record optionally carried by a Message.
type TurnUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Message is one append-only log entry (§3).
type Message struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Usage     *TurnUsage `json:"usage,omitempty"`
	Annex     any        `json:"annex,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// InteractionStatus reports a chat's position against its tenant's
// interaction limit (§4.3).
type InteractionStatus struct {
	Current      int  `json:"current"`
	Max          int  `json:"max"`
	Remaining    int  `json:"remaining"`
	LimitReached bool `json:"limit_reached"`
	NearLimit    bool `json:"near_limit"`
}

// Store implements the file-based memory log described in §4.3's Directory
// layout: <root>/<user_id>/<chat_id>.json for the log,
// <root>/<user_id>/<chat_id>_turns.json for the counter.
type Store struct {
	root  string
	locks keyedMutex
}

// NewStore constructs a Store rooted at root.
func NewStore(root string) *Store {
	return &Store{root: root}
}

func (s *Store) logPath(user, chat string) string {
	return filepath.Join(s.root, user, chat+".json")
}

func (s *Store) countPath(user, chat string) string {
	return filepath.Join(s.root, user, chat+"_turns.json")
}

func lockKey(user, chat string) string { return user + "\x00" + chat }

// Lock acquires the per-(user, chat) mutex and returns the unlock function.
// Callers (notably the Turn Orchestrator) hold this from prompt assembly
// through memory persistence and credit debit (§5).
func (s *Store) Lock(user, chat string) func() {
	return s.locks.lock(lockKey(user, chat))
}

// LoadContext returns all stored messages in insertion order; an empty list
// (not an error) on a missing file, per §4.3's non-fatal read-error policy.
func (s *Store) LoadContext(user, chat string) ([]Message, error) {
	b, err := os.ReadFile(s.logPath(user, chat))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, nil // non-fatal: any read failure degrades to empty history
	}
	var msgs []Message
	if err := json.Unmarshal(b, &msgs); err != nil {
		return nil, nil
	}
	return msgs, nil
}

// SaveTurn appends a user message and an assistant message, and — if annex
// is non-nil — a system-annex entry serializing it, then truncates the log
// from the front to at most 2*maxHistory entries. Write failures are
// surfaced; the caller (orchestrator) must not debit credits on error.
func (s *Store) SaveTurn(user, chat, question, answer string, usage TurnUsage, annex any, maxHistory int) error {
	existing, err := s.LoadContext(user, chat)
	if err != nil {
		return err
	}

	now := time.Now()
	existing = append(existing,
		Message{Role: RoleUser, Content: question, Timestamp: now},
		Message{Role: RoleAssistant, Content: answer, Usage: &usage, Timestamp: now},
	)
	if annex != nil {
		if hasAnnexContent(annex) {
			existing = append(existing, Message{Role: RoleSystemAnnex, Content: "", Annex: annex, Timestamp: now})
		}
	}

	if maxHistory > 0 {
		limit := 2 * maxHistory
		if len(existing) > limit {
			existing = existing[len(existing)-limit:]
		}
	}

	return s.writeLog(user, chat, existing)
}

func hasAnnexContent(annex any) bool {
	switch v := annex.(type) {
	case nil:
		return false
	case []any:
		return len(v) > 0
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return false
		}
		s := string(b)
		return s != "null" && s != "[]" && s != "{}"
	}
}

func (s *Store) writeLog(user, chat string, msgs []Message) error {
	dir := filepath.Join(s.root, user)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating memory directory for %s: %w", user, err)
	}
	b, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("encoding memory log for %s/%s: %w", user, chat, err)
	}
	if err := os.WriteFile(s.logPath(user, chat), b, 0o644); err != nil {
		return fmt.Errorf("writing memory log for %s/%s: %w", user, chat, err)
	}
	return nil
}

// LoadTurnCount returns the chat's current turn count; 0 on a missing file.
func (s *Store) LoadTurnCount(user, chat string) (int, error) {
	b, err := os.ReadFile(s.countPath(user, chat))
	if err != nil {
		return 0, nil
	}
	var payload struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(b, &payload); err != nil {
		return 0, nil
	}
	return payload.Count, nil
}

// SaveTurnCount persists the chat's turn count.
func (s *Store) SaveTurnCount(user, chat string, n int) error {
	dir := filepath.Join(s.root, user)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating memory directory for %s: %w", user, err)
	}
	payload := struct {
		Count int `json:"count"`
	}{Count: n}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding turn count for %s/%s: %w", user, chat, err)
	}
	if err := os.WriteFile(s.countPath(user, chat), b, 0o644); err != nil {
		return fmt.Errorf("writing turn count for %s/%s: %w", user, chat, err)
	}
	return nil
}

// GetInteractionStatus reports current/max/remaining and the two
// threshold flags for a chat.
func (s *Store) GetInteractionStatus(user, chat string, max, warningThreshold int) (InteractionStatus, error) {
	current, err := s.LoadTurnCount(user, chat)
	if err != nil {
		return InteractionStatus{}, err
	}
	remaining := max - current
	if remaining < 0 {
		remaining = 0
	}
	return InteractionStatus{
		Current:      current,
		Max:          max,
		Remaining:    remaining,
		LimitReached: current >= max,
		NearLimit:    remaining <= warningThreshold,
	}, nil
}
