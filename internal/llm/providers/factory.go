package providers

import (
	"fmt"
	"net/http"

	"github.com/legitimus-pro/esqueleto-gateway/internal/config"
	"github.com/legitimus-pro/esqueleto-gateway/internal/llm"
	"github.com/legitimus-pro/esqueleto-gateway/internal/llm/anthropic"
	"github.com/legitimus-pro/esqueleto-gateway/internal/llm/google"
	openaillm "github.com/legitimus-pro/esqueleto-gateway/internal/llm/openai"
)

// Build constructs an llm.Provider based on cfg.LLMClient.Provider:
//   - "openai" (default): the OpenAI-wire client, also reused for any
//     self-hosted OpenAI-compatible server via BaseURL
//   - "local": same client forced onto the completions API, for servers
//     that don't implement the responses API
//   - "anthropic", "google": their respective clients
func Build(cfg config.Config, httpClient *http.Client) (llm.Provider, error) {
	switch cfg.LLMClient.Provider {
	case "", "openai":
		return openaillm.New(cfg.LLMClient.OpenAI, httpClient), nil
	case "local":
		oc := cfg.LLMClient.OpenAI
		oc.API = "completions"
		return openaillm.New(oc, httpClient), nil
	case "anthropic":
		return anthropic.New(cfg.LLMClient.Anthropic, httpClient), nil
	case "google":
		return google.New(cfg.LLMClient.Google, httpClient)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.LLMClient.Provider)
	}
}
