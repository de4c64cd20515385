package answer

import (
	"github.com/kailas-cloud/mailrag/internal/retry"
)

// Config tunes prompt assembly and model retries.
type Config struct {
	// SystemPrompt replaces DefaultSystemPrompt when set.
	SystemPrompt string
	// MaxPromptTokens bounds the estimated prompt size. Zero disables the bound.
	MaxPromptTokens int
	Retry           retry.Policy
}

func (c Config) withDefaults() Config {
	if c.SystemPrompt == "" {
		c.SystemPrompt = DefaultSystemPrompt
	}
	return c
}
