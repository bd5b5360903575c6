// internal/workers/conversation/phrase-response/config.go
package phraseresponse

import "time"

type Config struct {
	Timeout    time.Duration
	LLMTimeout time.Duration
	LLMEnabled bool
	MaxRetries int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:    30 * time.Second,
		LLMTimeout: 5 * time.Second,
		LLMEnabled: true,
		MaxRetries: 1,
	}
}
