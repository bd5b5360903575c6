// internal/workers/conversation/extract-requirements/config.go
package extractrequirements

import "time"

type Config struct {
	Timeout    time.Duration
	LLMTimeout time.Duration
	// LLMEnabled gates the model call; extraction degrades to patterns only.
	LLMEnabled bool
}

func LoadConfig() *Config {
	return &Config{
		Timeout:    30 * time.Second,
		LLMTimeout: 8 * time.Second,
		LLMEnabled: true,
	}
}
