package tenant

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/legitimus-pro/esqueleto-gateway/internal/turnerr"
)

const (
	configRecordFile  = "config.json"
	builderRecordFile = "builder.json"

	greetingFile    = "initial_greeting.txt"
	initMessageFile = "initialization_message.txt"
	descriptionFile = "instance_description.txt"
	promptsSubdir   = "prompts"
)

// Registry discovers tenants under a root directory and materializes their
// system prompts (§4.1).
type Registry struct {
	root string

	// Defaults implements §6.5's "a process-wide configuration record
	// supplies per-tenant defaults and feature flags": every field left
	// unset by a tenant's own config.json record falls back to this value.
	// The zero value (the default when unset) preserves prior behavior:
	// every tenant field defaults to its Go zero value.
	Defaults TenantConfig
}

// NewRegistry constructs a Registry rooted at root (config.Config.TenantsRoot).
func NewRegistry(root string) *Registry {
	return &Registry{root: root}
}

// List scans the root directory; a subdirectory qualifies iff it contains
// both a config record and a builder record. Results are sorted by id.
func (r *Registry) List() ([]TenantSummary, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, turnerr.Wrap(turnerr.CodeConfigurationError, "reading tenants root", err)
	}

	var ids []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(r.root, e.Name())
		if !hasFile(dir, configRecordFile) || !hasFile(dir, builderRecordFile) {
			continue
		}
		ids = append(ids, e.Name())
	}
	sort.Strings(ids)

	summaries := make([]TenantSummary, 0, len(ids))
	for _, id := range ids {
		cfg, err := readConfigRecord(filepath.Join(r.root, id), r.Defaults)
		if err != nil {
			continue
		}
		summaries = append(summaries, TenantSummary{
			ID:          id,
			DisplayName: cfg.DisplayName,
			Description: cfg.Description,
		})
	}
	return summaries, nil
}

// Validate is a cheap existence check for gatekeeping.
func (r *Registry) Validate(instanceID string) bool {
	dir := filepath.Join(r.root, instanceID)
	return hasFile(dir, configRecordFile) && hasFile(dir, builderRecordFile)
}

// Load reads config and builder records for instanceID, resolves the
// builder's layered fragments in fixed order, computes the prompt hash, and
// returns an immutable Tenant.
func (r *Registry) Load(instanceID string) (Tenant, error) {
	dir := filepath.Join(r.root, instanceID)
	if !hasFile(dir, configRecordFile) || !hasFile(dir, builderRecordFile) {
		return Tenant{}, turnerr.ErrTenantNotFound
	}

	cfgRec, err := readConfigRecord(dir, r.Defaults)
	if err != nil {
		return Tenant{}, turnerr.Wrap(turnerr.CodeTenantInvalid, "reading config record for "+instanceID, err)
	}
	builder, err := readBuilderRecord(dir)
	if err != nil {
		return Tenant{}, turnerr.Wrap(turnerr.CodeTenantInvalid, "reading builder record for "+instanceID, err)
	}

	sections := []struct {
		header   string
		fragment PromptFragment
		optional bool
	}{
		{"Initial Instructions", builder.InitialInstructions, false},
		{"Base Configuration", builder.BaseConfiguration, false},
		{"Functional Configuration", builder.FunctionalConfiguration, false},
		{"Citation Configuration", builder.CitationConfiguration, true},
	}

	var prompt strings.Builder
	for _, s := range sections {
		content, err := r.resolveFragment(s.fragment, dir)
		if err != nil {
			if s.optional && s.fragment.Inline == "" && s.fragment.Path == "" {
				continue
			}
			return Tenant{}, turnerr.Wrap(turnerr.CodeTenantInvalid, fmt.Sprintf("resolving fragment %q for %s", s.header, instanceID), err)
		}
		if content == "" {
			if s.optional {
				continue
			}
		}
		if prompt.Len() > 0 {
			prompt.WriteString("\n\n")
		}
		prompt.WriteString("## ")
		prompt.WriteString(s.header)
		prompt.WriteString("\n")
		prompt.WriteString(content)
	}

	systemPrompt := prompt.String()
	sum := sha256.Sum256([]byte(systemPrompt))

	description := cfgRec.Description
	if description == "" {
		if txt, err := readSiblingText(dir, descriptionFile); err == nil {
			description = txt
		}
	}

	greeting := builder.InitialGreeting
	if txt, err := readSiblingText(dir, greetingFile); err == nil {
		greeting = txt
	}

	initMsg := builder.InitializationMessage
	if txt, err := readSiblingText(dir, initMessageFile); err == nil {
		initMsg = txt
	}

	knowledgeFiles, err := collectKnowledgeFiles(dir, cfgRec.Config.KnowledgeRoots)
	if err != nil {
		return Tenant{}, turnerr.Wrap(turnerr.CodeTenantInvalid, "collecting knowledge files for "+instanceID, err)
	}

	return Tenant{
		ID:                    instanceID,
		DisplayName:           cfgRec.DisplayName,
		Description:           description,
		InitialGreeting:       greeting,
		InitializationMessage: initMsg,
		SystemPrompt:          systemPrompt,
		SystemPromptHash:      hex.EncodeToString(sum[:]),
		Config:                cfgRec.Config,
		KnowledgeFiles:        knowledgeFiles,
	}, nil
}

// resolveFragment returns the literal text for a fragment: Inline verbatim,
// or the UTF-8 contents of the file at Path resolved per the path-resolution
// rule.
func (r *Registry) resolveFragment(f PromptFragment, tenantDir string) (string, error) {
	if f.Path == "" {
		return f.Inline, nil
	}
	resolved, err := r.resolveFragmentPath(f.Path, tenantDir)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(resolved)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// resolveFragmentPath implements §4.1's path-resolution rule: a path
// containing the registry root's own directory segment is taken literally
// from the process working directory; a path beginning with "./" is
// resolved relative to the tenant's own directory; any other form is a
// configuration error.
func (r *Registry) resolveFragmentPath(path string, tenantDir string) (string, error) {
	rootSegment := filepath.Base(filepath.Clean(r.root))
	slashPath := filepath.ToSlash(path)
	for _, seg := range strings.Split(slashPath, "/") {
		if seg == rootSegment {
			return path, nil
		}
	}
	if strings.HasPrefix(path, "./") {
		return filepath.Join(tenantDir, path), nil
	}
	return "", fmt.Errorf("fragment path %q is neither rooted at %q nor relative (./...)", path, rootSegment)
}

// readConfigRecord reads a tenant's config.json record, pre-populated with
// the process-wide defaults (§6.5) so any field the record omits retains its
// configured default rather than falling back to the Go zero value: JSON
// unmarshaling into an already-populated struct only overwrites fields the
// document actually sets.
func readConfigRecord(dir string, defaults TenantConfig) (configRecord, error) {
	rec := configRecord{Config: defaults}
	b, err := os.ReadFile(filepath.Join(dir, configRecordFile))
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(b, &rec); err != nil {
		return rec, err
	}
	return rec, nil
}

func readBuilderRecord(dir string) (builderRecord, error) {
	var rec builderRecord
	b, err := os.ReadFile(filepath.Join(dir, builderRecordFile))
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(b, &rec); err != nil {
		return rec, err
	}
	return rec, nil
}

func readSiblingText(dir, name string) (string, error) {
	b, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func hasFile(dir, name string) bool {
	info, err := os.Stat(filepath.Join(dir, name))
	return err == nil && !info.IsDir()
}

// collectKnowledgeFiles walks each configured knowledge root (resolved
// relative to the tenant directory unless absolute) and returns the paths
// of regular files found directly within it. Missing roots are skipped;
// they are optional. A root naming an s3:// URI is passed through
// verbatim as a single knowledge file: listing S3 prefixes would require
// a network call this synchronous, context-less loader cannot make, so
// §6.2's object-storage knowledge roots name individual objects rather
// than prefixes.
func collectKnowledgeFiles(tenantDir string, roots []string) ([]string, error) {
	var files []string
	for _, root := range roots {
		if strings.HasPrefix(root, "s3://") {
			files = append(files, root)
			continue
		}
		dir := root
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(tenantDir, root)
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

// PromptsDir returns the conventional prompts/ subdirectory for a tenant,
// used by callers constructing fragment paths relative to the tenant.
func PromptsDir(tenantDir string) string {
	return filepath.Join(tenantDir, promptsSubdir)
}
