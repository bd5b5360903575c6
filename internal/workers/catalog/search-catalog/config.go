// internal/workers/catalog/search-catalog/config.go
package searchcatalog

import "time"

type Config struct {
	Timeout   time.Duration
	IndexName string
	MaxHits   int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:   10 * time.Second,
		IndexName: "pump-catalog",
		MaxHits:   10,
	}
}
