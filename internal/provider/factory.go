package provider

import (
	"fmt"

	"github.com/jeanpaul/secexpert/internal/apperr"
	"github.com/jeanpaul/secexpert/internal/config"
)

// New builds the named provider from configuration. model overrides the
// provider's configured model when set.
func New(name string, pc config.ProviderConfig, model string) (Provider, error) {
	if model == "" {
		model = pc.Model
	}
	switch pc.Type {
	case "google":
		if pc.APIKey == "" {
			return nil, apperr.Configuration("provider "+name, fmt.Errorf("api_key is required"))
		}
		return NewGoogle(pc.BaseURL, pc.APIKey, model), nil
	case "anthropic":
		if pc.APIKey == "" {
			return nil, apperr.Configuration("provider "+name, fmt.Errorf("api_key is required"))
		}
		return NewAnthropic(pc.BaseURL, pc.APIKey, model), nil
	case "openai":
		return NewOpenAI(name, pc.BaseURL, pc.APIKey, model), nil
	}
	return nil, apperr.Configuration("provider "+name, fmt.Errorf("unknown provider type %q", pc.Type))
}

// FromConfig builds the configured default provider.
func FromConfig(cfg *config.Config) (Provider, error) {
	pc, ok := cfg.ProviderFor(cfg.DefaultProvider)
	if !ok {
		return nil, apperr.Configuration("provider", fmt.Errorf("provider %q not configured", cfg.DefaultProvider))
	}
	return New(cfg.DefaultProvider, pc, cfg.DefaultModel)
}
