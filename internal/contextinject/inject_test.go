package contextinject

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/legitimus-pro/esqueleto-gateway/internal/tenant"
)

func TestBuildOmitsAllBlocksWhenInputsAbsent(t *testing.T) {
	out := Build(Input{})
	require.Empty(t, out)
}

func TestBuildSystemContextBlock(t *testing.T) {
	now := time.Date(2026, 7, 30, 14, 30, 0, 0, time.UTC)
	out := Build(Input{
		TenantConfig: tenant.TenantConfig{
			ContextInject: tenant.ContextInjectionConfig{IncludeDateTime: true, IncludeLocale: true},
			Timezone:      "UTC",
			Locale:        "es-CL",
			Country:       "Chile",
		},
		Now: now,
	})
	require.Contains(t, out, "Thursday")
	require.Contains(t, out, "2026-07-30")
	require.Contains(t, out, "14:30:00")
	require.Contains(t, out, "Chile")
	require.Contains(t, out, "es-CL")
}

func TestBuildUserAndGeneralContextBlocks(t *testing.T) {
	out := Build(Input{
		User: User{DisplayName: "Ada", GeneralContext: "Prefers concise answers."},
	})
	require.Contains(t, out, "Ada")
	require.Contains(t, out, "Prefers concise answers.")
}

func TestBuildInstanceFilesBlockRespectsCaps(t *testing.T) {
	out := Build(Input{
		TenantConfig: tenant.TenantConfig{
			InstanceFiles: tenant.InstanceFilesConfig{MaxFileChars: 5, MaxTotalChars: 8},
		},
		KnowledgeFiles: []KnowledgeFile{
			{Name: "a.txt", Content: "0123456789"},
			{Name: "b.txt", Content: "zzzzzzzzzz"},
		},
	})
	require.Contains(t, out, "a.txt")
	require.Contains(t, out, "01234")
	require.NotContains(t, out, "56789")
}

func TestBuildJoinsBlocksWithBlankLine(t *testing.T) {
	out := Build(Input{User: User{DisplayName: "Ada", GeneralContext: "hi"}})
	require.Contains(t, out, "\n\n")
}
