package tenant

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/legitimus-pro/esqueleto-gateway/internal/turnerr"
)

func writeTenant(t *testing.T, root, id string, cfg configRecord, builder builderRecord) string {
	t.Helper()
	dir := filepath.Join(root, id)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	writeJSON(t, filepath.Join(dir, configRecordFile), cfg)
	writeJSON(t, filepath.Join(dir, builderRecordFile), builder)
	return dir
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	b, err := json.MarshalIndent(v, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o644))
}

func TestRegistryListSortedAndFiltered(t *testing.T) {
	root := t.TempDir()
	writeTenant(t, root, "zeta", configRecord{DisplayName: "Zeta"}, builderRecord{})
	writeTenant(t, root, "alpha", configRecord{DisplayName: "Alpha"}, builderRecord{})
	// Not a qualifying tenant: missing builder record.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "incomplete"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "incomplete", configRecordFile), []byte(`{}`), 0o644))

	reg := NewRegistry(root)
	summaries, err := reg.List()
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	require.Equal(t, "alpha", summaries[0].ID)
	require.Equal(t, "zeta", summaries[1].ID)
}

func TestRegistryLoadAssemblesPromptAndHash(t *testing.T) {
	root := t.TempDir()
	dir := writeTenant(t, root, "general", configRecord{
		DisplayName: "General Assistant",
		Config: TenantConfig{
			Model:       "gpt-5",
			Temperature: 0.7,
		},
	}, builderRecord{
		InitialInstructions:     PromptFragment{Inline: "You are helpful."},
		BaseConfiguration:       PromptFragment{Inline: "Always answer in Spanish."},
		FunctionalConfiguration: PromptFragment{Inline: "Use markdown sparingly."},
	})
	require.NoError(t, os.WriteFile(filepath.Join(dir, greetingFile), []byte("¡Hola!"), 0o644))

	reg := NewRegistry(root)
	ten, err := reg.Load("general")
	require.NoError(t, err)
	require.Equal(t, "General Assistant", ten.DisplayName)
	require.Equal(t, "¡Hola!", ten.InitialGreeting)
	require.Contains(t, ten.SystemPrompt, "## Initial Instructions")
	require.Contains(t, ten.SystemPrompt, "You are helpful.")
	require.Contains(t, ten.SystemPrompt, "## Base Configuration")
	require.Contains(t, ten.SystemPrompt, "## Functional Configuration")
	require.NotContains(t, ten.SystemPrompt, "Citation Configuration")
	require.Len(t, ten.SystemPromptHash, 64)

	ten2, err := reg.Load("general")
	require.NoError(t, err)
	require.Equal(t, ten.SystemPromptHash, ten2.SystemPromptHash, "hash must be a deterministic function of on-disk state")
}

func TestRegistryLoadResolvesFragmentPathRelativeToTenant(t *testing.T) {
	root := t.TempDir()
	dir := writeTenant(t, root, "acme", configRecord{DisplayName: "Acme"}, builderRecord{
		InitialInstructions:     PromptFragment{Path: "./prompts/initial.txt"},
		BaseConfiguration:       PromptFragment{Inline: "base"},
		FunctionalConfiguration: PromptFragment{Inline: "functional"},
	})
	require.NoError(t, os.MkdirAll(PromptsDir(dir), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(PromptsDir(dir), "initial.txt"), []byte("fragment from tenant dir"), 0o644))

	reg := NewRegistry(root)
	ten, err := reg.Load("acme")
	require.NoError(t, err)
	require.Contains(t, ten.SystemPrompt, "fragment from tenant dir")
}

func TestRegistryLoadRejectsUnresolvableFragmentPath(t *testing.T) {
	root := t.TempDir()
	writeTenant(t, root, "bad", configRecord{DisplayName: "Bad"}, builderRecord{
		InitialInstructions:     PromptFragment{Path: "/etc/not/a/fragment.txt"},
		BaseConfiguration:       PromptFragment{Inline: "base"},
		FunctionalConfiguration: PromptFragment{Inline: "functional"},
	})

	reg := NewRegistry(root)
	_, err := reg.Load("bad")
	require.Error(t, err)
	require.Equal(t, turnerr.CodeTenantInvalid, turnerr.CodeOf(err))
}

func TestRegistryLoadUnknownTenant(t *testing.T) {
	reg := NewRegistry(t.TempDir())
	_, err := reg.Load("does-not-exist")
	require.ErrorIs(t, err, turnerr.ErrTenantNotFound)
}

func TestRegistryLoadAppliesProcessWideDefaults(t *testing.T) {
	root := t.TempDir()
	dir := writeTenant(t, root, "partial", configRecord{
		DisplayName: "Partial",
		Config: TenantConfig{
			Model: "gpt-5", // only Model is set by this tenant's own record
		},
	}, builderRecord{})
	// A marshaled configRecord spells out every field, zero values
	// included; rewrite the record so it really sets only the model.
	require.NoError(t, os.WriteFile(filepath.Join(dir, configRecordFile),
		[]byte(`{"display_name":"Partial","config":{"model":"gpt-5"}}`), 0o644))

	reg := NewRegistry(root)
	reg.Defaults = TenantConfig{
		Model:     "default-model",
		MaxTokens: 4096,
		Tools:     ToolsConfig{WebSearchEnabled: true},
	}

	ten, err := reg.Load("partial")
	require.NoError(t, err)
	require.Equal(t, "gpt-5", ten.Config.Model, "tenant's own record overrides the default")
	require.Equal(t, 4096, ten.Config.MaxTokens, "unset field falls back to the process-wide default")
	require.True(t, ten.Config.Tools.WebSearchEnabled, "unset nested field falls back to the process-wide default")
}

func TestRegistryValidate(t *testing.T) {
	root := t.TempDir()
	writeTenant(t, root, "ok", configRecord{}, builderRecord{})
	reg := NewRegistry(root)
	require.True(t, reg.Validate("ok"))
	require.False(t, reg.Validate("missing"))
}
