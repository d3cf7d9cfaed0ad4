package llm

import (
	"time"

	"srg/internal/config"
)

// New selects and constructs a Provider from cfg. Strategy selection is
// configuration-driven and fixed at startup — no runtime mutation of the
// selection (spec.md §9).
func New(cfg config.LLMConfig) Provider {
	switch cfg.Provider {
	case "inprocess":
		return NewInProcessProvider(0, cfg.ModelName)
	default:
		return NewHTTPProvider(HTTPProviderConfig{
			Host:             cfg.Host,
			Model:            cfg.ModelName,
			VisionModel:      cfg.VisionModel,
			Timeout:          cfg.Timeout,
			FailureThreshold: cfg.FailureThreshold,
			Cooldown:         time.Duration(cfg.CooldownSeconds) * time.Second,
			MaxRetries:       cfg.MaxRetries,
			RetryDelay:       cfg.RetryDelay,
			RetryMultiplier:  cfg.RetryMultiplier,
		})
	}
}
