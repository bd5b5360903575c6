// internal/workers/conversation/load-conversation/config.go
package loadconversation

import "time"

type Config struct {
	Timeout     time.Duration
	CacheTTL    time.Duration
	MaxMessages int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:     10 * time.Second,
		CacheTTL:    5 * time.Minute,
		MaxMessages: 50,
	}
}
