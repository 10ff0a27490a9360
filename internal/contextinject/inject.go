// Package contextinject builds the dynamic context prefix prepended to a
// tenant's system prompt for a single turn (§4.2). It is a pure function of
// its inputs and the wall clock; it performs no I/O.
package contextinject

import (
	"fmt"
	"strings"
	"time"

	"github.com/legitimus-pro/esqueleto-gateway/internal/tenant"
)

// User captures the subset of user-profile fields the injector may surface.
type User struct {
	ID             string
	DisplayName    string
	GeneralContext string // free-text, ≤ 2,000 chars per §3
}

// KnowledgeFile is one pre-loaded tenant knowledge-file, read and capped by
// the caller before Build is invoked.
type KnowledgeFile struct {
	Name    string
	Content string
}

// Input bundles everything Build needs to assemble the context prefix.
type Input struct {
	TenantConfig   tenant.TenantConfig
	User           User
	KnowledgeFiles []KnowledgeFile
	Now            time.Time // if zero, time.Now() is used
}

// Build produces the context prefix: plain UTF-8 text, blocks joined with
// blank lines, any block whose inputs are absent omitted entirely.
func Build(in Input) string {
	var blocks []string

	if b := systemContextBlock(in); b != "" {
		blocks = append(blocks, b)
	}
	if b := userContextBlock(in.User); b != "" {
		blocks = append(blocks, b)
	}
	if b := generalContextBlock(in.User); b != "" {
		blocks = append(blocks, b)
	}
	if b := instanceFilesBlock(in); b != "" {
		blocks = append(blocks, b)
	}

	return strings.Join(blocks, "\n\n")
}

func systemContextBlock(in Input) string {
	cfg := in.TenantConfig.ContextInject
	if !cfg.IncludeDateTime {
		return ""
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	if tz := strings.TrimSpace(in.TenantConfig.Timezone); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			now = now.In(loc)
		}
	}

	var sb strings.Builder
	sb.WriteString("Current context:\n")
	sb.WriteString(fmt.Sprintf("- Day: %s\n", now.Weekday().String()))
	sb.WriteString(fmt.Sprintf("- Date: %s\n", now.Format("2006-01-02")))
	sb.WriteString(fmt.Sprintf("- Time: %s\n", now.Format("15:04:05")))
	zoneName, _ := now.Zone()
	sb.WriteString(fmt.Sprintf("- Timezone: %s\n", zoneName))
	sb.WriteString(fmt.Sprintf("- Unix timestamp: %d\n", now.Unix()))

	if cfg.IncludeLocale {
		if country := strings.TrimSpace(in.TenantConfig.Country); country != "" {
			sb.WriteString(fmt.Sprintf("- Country: %s\n", country))
		}
		if locale := strings.TrimSpace(in.TenantConfig.Locale); locale != "" {
			sb.WriteString(fmt.Sprintf("- Locale: %s\n", locale))
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}

func userContextBlock(u User) string {
	name := strings.TrimSpace(u.DisplayName)
	if name == "" {
		return ""
	}
	return fmt.Sprintf("You are speaking with %s. Address them by name when natural, but do not overuse it.", name)
}

func generalContextBlock(u User) string {
	ctx := strings.TrimSpace(u.GeneralContext)
	if ctx == "" {
		return ""
	}
	return "User-provided context:\n" + ctx
}

func instanceFilesBlock(in Input) string {
	if len(in.KnowledgeFiles) == 0 {
		return ""
	}
	limits := in.TenantConfig.InstanceFiles

	var sb strings.Builder
	sb.WriteString("Reference material:\n")
	total := 0
	for _, f := range in.KnowledgeFiles {
		content := f.Content
		if limits.MaxFileChars > 0 && len(content) > limits.MaxFileChars {
			content = content[:limits.MaxFileChars]
		}
		if limits.MaxTotalChars > 0 && total+len(content) > limits.MaxTotalChars {
			remaining := limits.MaxTotalChars - total
			if remaining <= 0 {
				break
			}
			content = content[:remaining]
		}
		total += len(content)
		sb.WriteString(fmt.Sprintf("--- %s ---\n%s\n", f.Name, content))
		if limits.MaxTotalChars > 0 && total >= limits.MaxTotalChars {
			break
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
